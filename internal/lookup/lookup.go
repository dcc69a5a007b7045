// Package lookup resolves customers, addresses and tours against the Primex
// customer master, the ILN mapping workbook, the Kunden_Bulgarien export, the
// Lieferlogik tour schedule and the Zubehör catalog. Tables load lazily and
// exactly once; a table that fails to load logs the failure and behaves as
// empty, since every lookup here is advisory enrichment.
package lookup

import (
	"sync"

	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/normalize"
)

// Paths locates the lookup source files. Empty paths disable their table.
type Paths struct {
	Primex          string
	ILNMap          string
	KundenBulgarien string
	Lieferlogik     string
	ZBCatalog       string
}

// Tables implements normalize.Lookup and normalize.DeliveryWeek over the
// customer-master files.
type Tables struct {
	paths Paths

	primexOnce sync.Once
	customers  []customerRow
	byKdnr     map[string]*customerRow

	ilnOnce sync.Once
	ilnRows []ilnRow
	byILN   map[string]*ilnRow

	bgOnce sync.Once
	bgRows []bgCustomerRow

	tourOnce sync.Once
	tours    []tourRow
	byTour   map[string][]*tourRow

	zbOnce  sync.Once
	zbIndex map[string]string
}

var (
	_ normalize.Lookup       = (*Tables)(nil)
	_ normalize.DeliveryWeek = (*Tables)(nil)
)

// New creates the lookup tables. Nothing is read until first use.
func New(paths Paths) *Tables {
	return &Tables{paths: paths}
}

func logLoadFailure(table, path string, err error) {
	zap.L().Warn("lookup table unavailable",
		zap.String("table", table),
		zap.String("path", path),
		zap.Error(err))
}
