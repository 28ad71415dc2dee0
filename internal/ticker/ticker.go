// Package ticker maps raw instrument symbols to the canonical SYMBOL.EXCHANGE
// form used when querying market data, and infers the settlement currency of
// an exchange suffix. Every function here is total: unknown input degrades to
// a documented default instead of failing.
package ticker

import "strings"

// DefaultSuffix is used when nothing else identifies the listing venue.
const DefaultSuffix = "US"

// DefaultCurrency is returned for suffixes with no known currency.
const DefaultCurrency = "USD"

// Hints carries optional context about where a symbol trades.
type Hints struct {
	// Exchange may be a suffix ("PA"), a MIC ("XPAR") or a common venue name ("EURONEXT PARIS").
	Exchange string
	// Country is an ISO 3166 alpha-2 code, often the first two letters of an ISIN.
	Country string
	// Currency is the ISO 4217 alpha code the instrument is quoted in.
	Currency string
}

// suffixCurrency is keyed by every suffix this package emits.
var suffixCurrency = map[string]string{
	"US": "USD",
	"L":  "GBP",
	"PA": "EUR",
	"DE": "EUR",
	"F":  "EUR",
	"AS": "EUR",
	"BR": "EUR",
	"LS": "EUR",
	"MI": "EUR",
	"MC": "EUR",
	"HE": "EUR",
	"VI": "EUR",
	"IR": "EUR",
	"SW": "CHF",
	"ST": "SEK",
	"CO": "DKK",
	"OL": "NOK",
	"HK": "HKD",
	"T":  "JPY",
	"TO": "CAD",
	"AX": "AUD",
	"SI": "SGD",
}

// knownTickers pins listings that the other heuristics get wrong.
var knownTickers = map[string]string{
	"AAPL":  "US",
	"MSFT":  "US",
	"AMZN":  "US",
	"GOOGL": "US",
	"NVDA":  "US",
	"NESN":  "SW",
	"NOVN":  "SW",
	"ROG":   "SW",
	"UBSG":  "SW",
	"MC":    "PA",
	"OR":    "PA",
	"AIR":   "PA",
	"TTE":   "PA",
	"BNP":   "PA",
	"SAP":   "DE",
	"SIE":   "DE",
	"ALV":   "DE",
	"ASML":  "AS",
	"INGA":  "AS",
	"HSBA":  "L",
	"BP":    "L",
	"VOD":   "L",
	"ULVR":  "L",
	"ENI":   "MI",
	"ISP":   "MI",
	"IBE":   "MC",
	"ITX":   "MC",
	"7203":  "T",
	"0700":  "HK",
}

// exchangeAliases maps venue names and MIC codes to suffixes.
var exchangeAliases = map[string]string{
	"NYSE":           "US",
	"NASDAQ":         "US",
	"XNYS":           "US",
	"XNAS":           "US",
	"LSE":            "L",
	"LONDON":         "L",
	"XLON":           "L",
	"XETRA":          "DE",
	"XETR":           "DE",
	"FRANKFURT":      "F",
	"XFRA":           "F",
	"PAR":            "PA",
	"EURONEXT PARIS": "PA",
	"XPAR":           "PA",
	"AMS":            "AS",
	"AMSTERDAM":      "AS",
	"XAMS":           "AS",
	"XBRU":           "BR",
	"XLIS":           "LS",
	"MIL":            "MI",
	"BORSA ITALIANA": "MI",
	"XMIL":           "MI",
	"BME":            "MC",
	"XMAD":           "MC",
	"SIX":            "SW",
	"XSWX":           "SW",
	"XSTO":           "ST",
	"XCSE":           "CO",
	"XOSL":           "OL",
	"XHEL":           "HE",
	"XWBO":           "VI",
	"XDUB":           "IR",
	"HKG":            "HK",
	"XHKG":           "HK",
	"TYO":            "T",
	"XTKS":           "T",
	"TSX":            "TO",
	"XTSE":           "TO",
	"ASX":            "AX",
	"XASX":           "AX",
	"SGX":            "SI",
	"XSES":           "SI",
}

var countryExchange = map[string]string{
	"US": "US",
	"GB": "L",
	"FR": "PA",
	"DE": "DE",
	"NL": "AS",
	"BE": "BR",
	"PT": "LS",
	"IT": "MI",
	"ES": "MC",
	"FI": "HE",
	"AT": "VI",
	"IE": "IR",
	"CH": "SW",
	"SE": "ST",
	"DK": "CO",
	"NO": "OL",
	"HK": "HK",
	"JP": "T",
	"CA": "TO",
	"AU": "AX",
	"SG": "SI",
}

var currencyExchange = map[string]string{
	"USD": "US",
	"GBP": "L",
	"GBX": "L",
	"EUR": "PA",
	"CHF": "SW",
	"SEK": "ST",
	"DKK": "CO",
	"NOK": "OL",
	"HKD": "HK",
	"JPY": "T",
	"CAD": "TO",
	"AUD": "AX",
	"SGD": "SI",
}

// openFIGIExchange maps Bloomberg exchange codes, as returned by OpenFIGI, to suffixes.
var openFIGIExchange = map[string]string{
	"US": "US", "UN": "US", "UW": "US", "UQ": "US", "UA": "US",
	"LN": "L",
	"FP": "PA",
	"GR": "DE", "GY": "DE",
	"GF": "F",
	"NA": "AS",
	"BB": "BR",
	"PL": "LS",
	"IM": "MI",
	"SM": "MC",
	"FH": "HE",
	"AV": "VI",
	"ID": "IR",
	"SW": "SW", "SE": "SW",
	"SS": "ST",
	"DC": "CO",
	"NO": "OL",
	"HK": "HK",
	"JT": "T", "JP": "T",
	"CT": "TO", "CN": "TO",
	"AU": "AX", "AT": "AX",
	"SP": "SI",
}

// Normalize returns symbol in SYMBOL.EXCHANGE form.
//
// Precedence: a symbol that already carries a known suffix is returned as is;
// then the static ticker table; then the exchange hint; then the country
// hint; then the currency hint; finally DefaultSuffix. An empty symbol yields "".
func Normalize(symbol string, hints Hints) string {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return ""
	}
	if HasKnownSuffix(symbol) {
		return symbol
	}

	base := strings.ToUpper(symbol)
	if suffix, ok := knownTickers[base]; ok {
		return base + "." + suffix
	}
	if suffix := ExchangeSuffix(hints.Exchange); suffix != "" {
		return base + "." + suffix
	}
	if suffix, ok := countryExchange[strings.ToUpper(strings.TrimSpace(hints.Country))]; ok {
		return base + "." + suffix
	}
	if suffix, ok := currencyExchange[strings.ToUpper(strings.TrimSpace(hints.Currency))]; ok {
		return base + "." + suffix
	}
	return base + "." + DefaultSuffix
}

// HasKnownSuffix reports whether symbol ends in ".<suffix>" for a suffix this package knows.
func HasKnownSuffix(symbol string) bool {
	i := strings.LastIndexByte(symbol, '.')
	if i <= 0 || i == len(symbol)-1 {
		return false
	}
	_, ok := suffixCurrency[strings.ToUpper(symbol[i+1:])]
	return ok
}

// ExchangeSuffix resolves an exchange hint to a suffix, or "" when unknown.
func ExchangeSuffix(exchange string) string {
	e := strings.ToUpper(strings.TrimSpace(exchange))
	if e == "" {
		return ""
	}
	if _, ok := suffixCurrency[e]; ok {
		return e
	}
	return exchangeAliases[e]
}

// CurrencyForExchange infers the settlement currency from an exchange suffix.
// It accepts either a bare suffix ("PA") or a full symbol ("MC.PA").
func CurrencyForExchange(suffix string) string {
	s := strings.ToUpper(strings.TrimSpace(suffix))
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	if ccy, ok := suffixCurrency[s]; ok {
		return ccy
	}
	return DefaultCurrency
}

// FromOpenFIGIExchange maps a Bloomberg exchange code to a suffix, or "" when unknown.
func FromOpenFIGIExchange(code string) string {
	return openFIGIExchange[strings.ToUpper(strings.TrimSpace(code))]
}

// CountryFromISIN returns the ISO country prefix of an ISIN, or "".
func CountryFromISIN(isin string) string {
	isin = strings.TrimSpace(isin)
	if len(isin) < 2 {
		return ""
	}
	return strings.ToUpper(isin[:2])
}
