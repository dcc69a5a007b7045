package lookup

import (
	"fmt"
	"strings"

	"github.com/furnbridge/orderdesk/internal/fetcher"
	"github.com/furnbridge/orderdesk/internal/normalize"
)

// ilnRow is one ILN mapping row.
// Workbook columns: ILN | Firma | Filiale | Strasse | PLZ | Ort, first row is
// the header.
type ilnRow struct {
	ILN     string
	Company string
	Filiale string
	Street  string
	PLZ     string
	City    string
}

func (r *ilnRow) formattedAddress() string {
	street := strings.TrimSpace(r.Street)
	cityLine := strings.TrimSpace(strings.TrimSpace(r.PLZ) + " " + strings.TrimSpace(r.City))
	switch {
	case street == "":
		return cityLine
	case cityLine == "":
		return street
	default:
		return fmt.Sprintf("%s\n%s", street, cityLine)
	}
}

func (t *Tables) ensureILN() {
	t.ilnOnce.Do(func() {
		t.byILN = make(map[string]*ilnRow)
		if t.paths.ILNMap == "" {
			return
		}
		rows, err := fetcher.ReadXLSX(t.paths.ILNMap, fetcher.XLSXOptions{SkipRows: 1})
		if err != nil {
			logLoadFailure("iln_map", t.paths.ILNMap, err)
			return
		}
		for _, cells := range rows {
			row := ilnRow{
				ILN:     cellAt(cells, 0),
				Company: cellAt(cells, 1),
				Filiale: cellAt(cells, 2),
				Street:  cellAt(cells, 3),
				PLZ:     cellAt(cells, 4),
				City:    cellAt(cells, 5),
			}
			if row.ILN == "" {
				continue
			}
			t.ilnRows = append(t.ilnRows, row)
		}
		for i := range t.ilnRows {
			t.byILN[t.ilnRows[i].ILN] = &t.ilnRows[i]
		}
	})
}

// AddressByILN resolves an ILN location code to its registered address.
func (t *Tables) AddressByILN(iln string) *normalize.AddressInfo {
	t.ensureILN()
	row := t.byILN[strings.TrimSpace(iln)]
	if row == nil {
		return nil
	}
	return &normalize.AddressInfo{
		FormattedAddress: row.formattedAddress(),
		Company:          row.Company,
		FilialeHint:      row.Filiale,
	}
}

// ILNByAddress finds the ILN whose postcode and street both appear in the
// given address text. The first matching row in workbook order wins.
func (t *Tables) ILNByAddress(address string) string {
	t.ensureILN()
	if strings.TrimSpace(address) == "" {
		return ""
	}
	plz := extractPLZ(address)
	tokens := tokenSet(address)
	for i := range t.ilnRows {
		row := &t.ilnRows[i]
		if row.PLZ == "" || row.PLZ != plz {
			continue
		}
		if containsAllTokens(tokens, row.Street) {
			return row.ILN
		}
	}
	return ""
}
