package lookup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/furnbridge/orderdesk/internal/fetcher"
	"github.com/furnbridge/orderdesk/internal/normalize"
)

// bgCustomerRow is one Kunden_Bulgarien row.
// CSV columns (semicolon separated, header row):
// Kundennummer;Adressnummer;Brand;Filiale;Strasse;Ort;Tour
type bgCustomerRow struct {
	Kundennummer string
	Adressnummer string
	Brand        string
	Filiale      string
	Street       string
	City         string
	Tour         string
}

var bgBrands = []string{"MOEMAX", "MOMAX", "AIKO"}

func (t *Tables) ensureBulgarien() {
	t.bgOnce.Do(func() {
		if t.paths.KundenBulgarien == "" {
			return
		}
		rows, err := readSemicolonCSV(t.paths.KundenBulgarien)
		if err != nil {
			logLoadFailure("kunden_bulgarien", t.paths.KundenBulgarien, err)
			return
		}
		for i, cells := range rows {
			if i == 0 {
				continue
			}
			row := bgCustomerRow{
				Kundennummer: cellAt(cells, 0),
				Adressnummer: cellAt(cells, 1),
				Brand:        strings.ToUpper(cellAt(cells, 2)),
				Filiale:      cellAt(cells, 3),
				Street:       cellAt(cells, 4),
				City:         cellAt(cells, 5),
				Tour:         cellAt(cells, 6),
			}
			if row.Kundennummer == "" {
				continue
			}
			t.bgRows = append(t.bgRows, row)
		}
	})
}

// readSemicolonCSV reads a semicolon-delimited CSV file, tolerating a UTF-8
// BOM and falling back to Windows-1251 for legacy Bulgarian exports.
func readSemicolonCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "lookup: read csv")
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
		if err != nil {
			return nil, eris.Wrap(err, "lookup: decode csv")
		}
		data = decoded
	}

	rows, err := fetcher.ReadCSV(context.Background(), bytes.NewReader(data), fetcher.CSVOptions{
		Delimiter: ';',
	})
	if err != nil {
		return nil, eris.Wrap(err, "lookup: parse csv")
	}
	return rows, nil
}

// detectBGBrand picks the MOMAX/MOEMAX/AIKO brand mentioned in the texts.
// MOEMAX is probed before MOMAX because every MOEMAX mention contains no
// MOMAX substring but OCR output sometimes mixes both spellings on one page.
func detectBGBrand(texts ...string) string {
	for _, brand := range bgBrands {
		for _, text := range texts {
			if strings.Contains(strings.ToUpper(text), brand) {
				return brand
			}
		}
	}
	return ""
}

// MomaxBGCustomerByAddress matches a Bulgarian store against the
// Kunden_Bulgarien export. Matching is brand-aware: when the store name or
// address names a brand, only that brand's rows are considered. The store is
// then located by street tokens, falling back to a unique city match.
func (t *Tables) MomaxBGCustomerByAddress(address, storeName string) (*normalize.CustomerMatch, []string) {
	t.ensureBulgarien()
	if strings.TrimSpace(address) == "" || len(t.bgRows) == 0 {
		return nil, nil
	}

	brand := detectBGBrand(storeName, address)
	addressTokens := tokenSet(address + " " + storeName)

	var candidates []*bgCustomerRow
	for i := range t.bgRows {
		row := &t.bgRows[i]
		if brand != "" && row.Brand != "" && row.Brand != brand {
			continue
		}
		candidates = append(candidates, row)
	}

	var streetMatches []*bgCustomerRow
	for _, row := range candidates {
		if containsAllTokens(addressTokens, row.Street) {
			streetMatches = append(streetMatches, row)
		}
	}
	if len(streetMatches) == 1 {
		return bgMatchOf(streetMatches[0]), nil
	}
	if len(streetMatches) > 1 {
		return nil, []string{"MOMAX BG: multiple Kunden_Bulgarien rows match the street; please verify."}
	}

	var cityMatches []*bgCustomerRow
	for _, row := range candidates {
		if containsAllTokens(addressTokens, row.City) || containsAllTokens(addressTokens, row.Filiale) {
			cityMatches = append(cityMatches, row)
		}
	}
	if len(cityMatches) == 1 {
		return bgMatchOf(cityMatches[0]), []string{fmt.Sprintf(
			"MOMAX BG store matched by city '%s' only; please verify.", cityMatches[0].City)}
	}
	if len(cityMatches) > 1 {
		return nil, []string{"MOMAX BG: multiple Kunden_Bulgarien rows match the city; please verify."}
	}
	return nil, nil
}

func bgMatchOf(row *bgCustomerRow) *normalize.CustomerMatch {
	return &normalize.CustomerMatch{
		Kundennummer: row.Kundennummer,
		Adressnummer: row.Adressnummer,
		Tour:         row.Tour,
	}
}
