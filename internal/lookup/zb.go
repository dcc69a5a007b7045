package lookup

import (
	"fmt"
	"strings"

	"github.com/furnbridge/orderdesk/internal/model"
)

// DerivedZBCatalogLookup tags modellnummer values filled from the Zubehör
// catalog.
const DerivedZBCatalogLookup = "zb_catalog_lookup"

// ensureZB loads the Zubehör accessory catalog.
// CSV columns (semicolon separated, header row): Modellname | C6MDNP
// (modellnummer) | C6ARTP (artikelnummer). Both the raw artikelnummer and its
// leading-zero-stripped form are indexed.
func (t *Tables) ensureZB() {
	t.zbOnce.Do(func() {
		t.zbIndex = make(map[string]string)
		if t.paths.ZBCatalog == "" {
			return
		}
		rows, err := readSemicolonCSV(t.paths.ZBCatalog)
		if err != nil {
			logLoadFailure("zb_catalog", t.paths.ZBCatalog, err)
			return
		}
		for i, cells := range rows {
			if i == 0 {
				continue
			}
			modellnummer := cellAt(cells, 1)
			artikelnummer := cellAt(cells, 2)
			if modellnummer == "" || artikelnummer == "" {
				continue
			}
			t.zbIndex[artikelnummer] = modellnummer
			if stripped := stripLeadingZeros(artikelnummer); stripped != artikelnummer {
				t.zbIndex[stripped] = modellnummer
			}
		}
	})
}

// ZBModellnummerByArtikelnummer resolves an accessory artikelnummer to its
// ZB modellnummer, or "" when the catalog has no entry.
func (t *Tables) ZBModellnummerByArtikelnummer(artikelnummer string) string {
	t.ensureZB()
	key := strings.TrimSpace(artikelnummer)
	if v, ok := t.zbIndex[key]; ok {
		return v
	}
	return t.zbIndex[stripLeadingZeros(key)]
}

// ApplyZBModellnummerLookup fills empty item modellnummer fields from the
// Zubehör catalog and reports whether anything changed. One warning is
// appended per filled line.
func (t *Tables) ApplyZBModellnummerLookup(order *model.Order) bool {
	changed := false
	for _, it := range order.Items {
		if it.Text(model.FieldModellnummer) != "" {
			continue
		}
		artikelnummer := it.Text(model.FieldArtikelnummer)
		if artikelnummer == "" {
			continue
		}
		found := t.ZBModellnummerByArtikelnummer(artikelnummer)
		if found == "" {
			continue
		}
		it.Ensure(model.FieldModellnummer).SetDerived(model.StringValue(found), 1.0, DerivedZBCatalogLookup)
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"modellnummer for artikelnummer '%s' (line %d) filled from Zubehör catalog: '%s'",
			artikelnummer, it.LineNo, found))
		changed = true
	}
	return changed
}
