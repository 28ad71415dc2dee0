package enrichment

import (
	"strings"
	"time"

	"github.com/ndewijer/custody-ingest/internal/model"
	"github.com/ndewijer/custody-ingest/internal/openfigi"
	"github.com/ndewijer/custody-ingest/internal/ticker"
)

// SourceOpenFIGI tags classifications learned from OpenFIGI.
const SourceOpenFIGI = "openfigi"

var fundTypes = map[string]bool{
	"OPEN-END FUND":   true,
	"CLOSED-END FUND": true,
	"MUTUAL FUND":     true,
	"FUND OF FUNDS":   true,
	"UNIT TRUST":      true,
	"SICAV":           true,
	"FCP":             true,
	"UNIT INV TRUST":  true,
}

var equityTypes = map[string]bool{
	"COMMON STOCK":       true,
	"PREFERENCE":         true,
	"PREFERRED":          true,
	"ADR":                true,
	"GDR":                true,
	"DEPOSITARY RECEIPT": true,
	"REIT":               true,
	"RECEIPT":            true,
	"SAVINGS SHARE":      true,
	"LTD PART":           true,
	"DUTCH CERT":         true,
}

// SecurityTypeOf maps an OpenFIGI instrument description to a SecurityType.
// Unrecognised descriptions yield UNKNOWN.
func SecurityTypeOf(r openfigi.MappingResult) model.SecurityType {
	sector := strings.ToUpper(strings.TrimSpace(r.MarketSector))
	st := strings.ToUpper(strings.TrimSpace(r.SecurityType))
	st2 := strings.ToUpper(strings.TrimSpace(r.SecurityType2))

	switch {
	case st == "ETP" || st2 == "ETP" || st == "ETF" || strings.Contains(st, "EXCHANGE TRADED"):
		return model.SecurityTypeETF
	case fundTypes[st] || fundTypes[st2]:
		return model.SecurityTypeFund
	case strings.Contains(st, "STRUCTURED") || strings.Contains(st2, "STRUCTURED"):
		return model.SecurityTypeStructuredProduct
	case strings.Contains(st, "CERTIFICATE") || st2 == "WARRANT" || strings.Contains(st, "WARRANT"):
		return model.SecurityTypeCertificate
	case sector == "CORP" || sector == "GOVT" || sector == "MUNI" || sector == "MTGE" || sector == "M-MKT":
		return model.SecurityTypeBond
	case equityTypes[st] || equityTypes[st2] || (sector == "EQUITY" && st != ""):
		return model.SecurityTypeEquity
	default:
		return model.SecurityTypeUnknown
	}
}

// pickListing chooses the listing in the ISIN's home market when there is
// one, then any listing on a known exchange, then the first result.
func pickListing(isin string, data []openfigi.MappingResult) openfigi.MappingResult {
	home := homeSuffix(isin)
	for _, r := range data {
		if s := ticker.FromOpenFIGIExchange(r.ExchCode); s != "" && s == home {
			return r
		}
	}
	for _, r := range data {
		if ticker.FromOpenFIGIExchange(r.ExchCode) != "" {
			return r
		}
	}
	return data[0]
}

func homeSuffix(isin string) string {
	sym := ticker.Normalize("ZZZZ", ticker.Hints{Country: ticker.CountryFromISIN(isin)})
	return sym[strings.LastIndexByte(sym, '.')+1:]
}

// FromMapping builds the classification of isin from an OpenFIGI answer.
// An error answer, an empty answer or an unrecognised instrument type yields
// an UNCLASSIFIED record carrying the reason.
func FromMapping(isin string, resp openfigi.MappingResponse, now time.Time) model.SecurityClassification {
	c := model.SecurityClassification{
		ISIN:         isin,
		SecurityType: model.SecurityTypeUnknown,
		Source:       SourceOpenFIGI,
		Status:       model.ClassificationUnclassified,
		UpdatedAt:    now.UTC(),
	}
	if resp.Error != "" {
		c.Error = resp.Error
		return c
	}
	if len(resp.Data) == 0 {
		c.Error = "no instrument found"
		return c
	}

	r := pickListing(isin, resp.Data)
	c.Ticker = r.Ticker
	c.Exchange = r.ExchCode
	c.Name = r.Name
	if suffix := ticker.FromOpenFIGIExchange(r.ExchCode); suffix != "" && r.Ticker != "" {
		c.Symbol = ticker.Normalize(r.Ticker, ticker.Hints{Exchange: suffix})
		c.Currency = ticker.CurrencyForExchange(suffix)
	}

	c.SecurityType = SecurityTypeOf(r)
	if c.SecurityType == model.SecurityTypeUnknown {
		c.Error = "unrecognised instrument type: " + strings.TrimSpace(r.MarketSector+" "+r.SecurityType)
		return c
	}
	c.Status = model.ClassificationClassified
	return c
}

// Failed builds an UNCLASSIFIED record for a lookup that errored.
func Failed(isin string, err error, now time.Time) model.SecurityClassification {
	return model.SecurityClassification{
		ISIN:         isin,
		SecurityType: model.SecurityTypeUnknown,
		Source:       SourceOpenFIGI,
		Status:       model.ClassificationUnclassified,
		Error:        err.Error(),
		UpdatedAt:    now.UTC(),
	}
}
