package lookup

import (
	"strings"

	"github.com/furnbridge/orderdesk/internal/fetcher"
	"github.com/furnbridge/orderdesk/internal/normalize"
)

// customerRow is one Primex customer-master row.
// Workbook columns: Kundennummer | Adressnummer | Firma | Strasse | PLZ |
// Ort | Tour | ILN, first row is the header.
type customerRow struct {
	Kundennummer string
	Adressnummer string
	Company      string
	Street       string
	PLZ          string
	City         string
	Tour         string
	ILN          string
}

func (t *Tables) ensurePrimex() {
	t.primexOnce.Do(func() {
		t.byKdnr = make(map[string]*customerRow)
		if t.paths.Primex == "" {
			return
		}
		rows, err := fetcher.ReadXLSX(t.paths.Primex, fetcher.XLSXOptions{SkipRows: 1})
		if err != nil {
			logLoadFailure("primex", t.paths.Primex, err)
			return
		}
		for _, cells := range rows {
			row := customerRow{
				Kundennummer: cellAt(cells, 0),
				Adressnummer: cellAt(cells, 1),
				Company:      cellAt(cells, 2),
				Street:       cellAt(cells, 3),
				PLZ:          cellAt(cells, 4),
				City:         cellAt(cells, 5),
				Tour:         cellAt(cells, 6),
				ILN:          cellAt(cells, 7),
			}
			if row.Kundennummer == "" {
				continue
			}
			t.customers = append(t.customers, row)
		}
		for i := range t.customers {
			row := &t.customers[i]
			t.byKdnr[stripLeadingZeros(row.Kundennummer)] = row
		}
	})
}

func cellAt(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func matchOf(row *customerRow) *normalize.CustomerMatch {
	return &normalize.CustomerMatch{
		Kundennummer: row.Kundennummer,
		Adressnummer: row.Adressnummer,
		Tour:         row.Tour,
	}
}

// CustomerByKundennummer resolves a customer by its number, tolerating
// leading zeros on either side.
func (t *Tables) CustomerByKundennummer(kundennummer string) *normalize.CustomerMatch {
	t.ensurePrimex()
	row := t.byKdnr[stripLeadingZeros(kundennummer)]
	if row == nil {
		return nil
	}
	return matchOf(row)
}

// KundennummerByILN returns the customer number registered for an ILN.
func (t *Tables) KundennummerByILN(iln string) string {
	t.ensurePrimex()
	iln = strings.TrimSpace(iln)
	if iln == "" {
		return ""
	}
	for i := range t.customers {
		if t.customers[i].ILN == iln {
			return t.customers[i].Kundennummer
		}
	}
	return ""
}

// CustomerByAddress finds the customer whose postcode and street appear in
// the query address, using company hints to break ties between branches that
// share a postcode. Ambiguous matches return nil with an advisory note.
func (t *Tables) CustomerByAddress(q normalize.CustomerQuery) (*normalize.CustomerMatch, []string) {
	t.ensurePrimex()
	if strings.TrimSpace(q.Address) == "" || len(t.customers) == 0 {
		return nil, nil
	}

	queryPLZ := extractPLZ(q.Address)
	queryTokens := tokenSet(q.Address)
	hintTokens := tokenSet(strings.Join([]string{q.KomName, q.ILNCompany, q.ILNFilialeHint, q.ClientHint}, " "))

	type scored struct {
		row   *customerRow
		score int
	}
	var candidates []scored
	for i := range t.customers {
		row := &t.customers[i]
		if queryPLZ != "" && row.PLZ != "" && row.PLZ != queryPLZ {
			continue
		}
		score := 0
		if queryPLZ != "" && row.PLZ == queryPLZ {
			score += 2
		}
		if containsAllTokens(queryTokens, row.Street) {
			score += 3
		}
		if containsAllTokens(queryTokens, row.City) {
			score++
		}
		score += overlapCount(hintTokens, row.Company)
		if q.IsJoop && strings.Contains(strings.ToLower(row.Company), "joop") {
			score += 2
		}
		if score < 3 {
			continue
		}
		candidates = append(candidates, scored{row: row, score: score})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best := candidates[0]
	tied := false
	for _, c := range candidates[1:] {
		switch {
		case c.score > best.score:
			best = c
			tied = false
		case c.score == best.score && c.row.Kundennummer != best.row.Kundennummer:
			tied = true
		}
	}
	if tied {
		return nil, []string{"Multiple Primex customers match the address; please verify."}
	}
	return matchOf(best.row), nil
}
