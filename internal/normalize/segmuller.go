package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/furnbridge/orderdesk/internal/model"
)

// Segmüller order PDFs print the commission as "<Filialnummer> <Name>" and
// sometimes glue model and article into one hyphenated token. Both repairs
// run only for the segmuller branch.

var (
	segmullerKomNamePrefixRe = regexp.MustCompile(`^\s*\d{3,6}\s+(\S.*)$`)
	segmullerArticleTailRe   = regexp.MustCompile(`^\d{5}[A-Z]?$`)
	segmullerModelHeadRe     = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

func applySegmullerKomNameCleanup(header model.Header) {
	entry := header.Get(model.FieldKomName)
	if entry == nil {
		return
	}
	m := segmullerKomNamePrefixRe.FindStringSubmatch(entry.Text())
	if m == nil {
		return
	}
	entry.SetDerived(model.StringValue(strings.TrimSpace(m[1])), entry.Confidence, "segmuller_kom_name_cleanup")
}

// applySegmullerItemCodeSplit splits a hyphenated MODEL-ARTICLE modellnummer
// into its two fields when the artikelnummer carries no usable value. The
// split only fires when the tail has article shape, so already-split items
// pass through untouched.
func applySegmullerItemCodeSplit(items []*model.Item, warnings []string) []string {
	for i, it := range items {
		if it == nil {
			continue
		}
		modellEntry := it.Ensure(model.FieldModellnummer)
		modell := modellEntry.Text()
		artikel := it.Text(model.FieldArtikelnummer)
		if artikel != "" && artikel != "-" {
			continue
		}
		cut := strings.LastIndex(modell, "-")
		if cut <= 0 || cut == len(modell)-1 {
			continue
		}
		head, tail := modell[:cut], modell[cut+1:]
		if !segmullerModelHeadRe.MatchString(head) || !segmullerArticleTailRe.MatchString(tail) {
			continue
		}
		modellEntry.SetDerived(model.StringValue(head), modellEntry.Confidence, "segmuller_item_code_split")
		it.Ensure(model.FieldArtikelnummer).
			SetDerived(model.StringValue(tail), modellEntry.Confidence, "segmuller_item_code_split")
		lineNo := it.LineNo
		if lineNo <= 0 {
			lineNo = i + 1
		}
		warnings = append(warnings, fmt.Sprintf(
			"Segmüller item code split: item line %d '%s' -> modellnummer '%s', artikelnummer '%s'.",
			lineNo, modell, head, tail))
	}
	return warnings
}
