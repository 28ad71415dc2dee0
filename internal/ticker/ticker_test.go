package ticker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalize verifies the resolution precedence of Normalize.
//
// WHY: market data lookups fail silently on a wrong suffix, so the order in
// which hints are consulted must be stable and the fallback must never be empty.
func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		hints  Hints
		want   string
	}{
		{"unknown symbol falls back to US", "ZZZZ9", Hints{}, "ZZZZ9.US"},
		{"already suffixed passes through", "MC.PA", Hints{Exchange: "XLON"}, "MC.PA"},
		{"lowercase suffix is recognised", "vod.l", Hints{}, "vod.l"},
		{"static table wins over hints", "NESN", Hints{Exchange: "NYSE"}, "NESN.SW"},
		{"exchange suffix hint", "ABC", Hints{Exchange: "de"}, "ABC.DE"},
		{"exchange MIC hint", "ABC", Hints{Exchange: "XAMS"}, "ABC.AS"},
		{"exchange hint beats country", "ABC", Hints{Exchange: "LSE", Country: "FR"}, "ABC.L"},
		{"country hint", "ABC", Hints{Country: "IT"}, "ABC.MI"},
		{"currency hint", "ABC", Hints{Currency: "CHF"}, "ABC.SW"},
		{"unknown hints fall back", "ABC", Hints{Exchange: "MOON", Country: "ZZ", Currency: "XXX"}, "ABC.US"},
		{"symbol is upper-cased", "abc", Hints{Country: "JP"}, "ABC.T"},
		{"empty symbol", "  ", Hints{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.symbol, tt.hints))
		})
	}
}

func TestCurrencyForExchange(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PA", "EUR"},
		{"l", "GBP"},
		{"SW", "CHF"},
		{"T", "JPY"},
		{"MC.PA", "EUR"},
		{"", "USD"},
		{"MOON", "USD"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrencyForExchange(tt.in))
		})
	}
}

func TestFromOpenFIGIExchange(t *testing.T) {
	assert.Equal(t, "US", FromOpenFIGIExchange("UW"))
	assert.Equal(t, "PA", FromOpenFIGIExchange("fp"))
	assert.Equal(t, "DE", FromOpenFIGIExchange("GY"))
	assert.Equal(t, "", FromOpenFIGIExchange("ZZ"))
}

func TestCountryFromISIN(t *testing.T) {
	assert.Equal(t, "FR", CountryFromISIN("fr0000121014"))
	assert.Equal(t, "", CountryFromISIN("F"))
}
