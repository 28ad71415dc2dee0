// Package banks assembles the parser registry for every supported custodian.
package banks

import (
	"github.com/ndewijer/custody-ingest/internal/parsers"
	"github.com/ndewijer/custody-ingest/internal/parsers/cfm"
	"github.com/ndewijer/custody-ingest/internal/parsers/edr"
)

// Registry returns a router over all bank parsers. File name patterns do not
// overlap, so the order only matters for speed.
func Registry() *parsers.Registry {
	return parsers.NewRegistry(
		edr.NewPositionsParser(),
		edr.NewOperationsParser(),
		cfm.NewPositionsParser(),
		cfm.NewCashOperationsParser(),
		cfm.NewSecurityOperationsParser(),
	)
}
