package branch

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/furnbridge/orderdesk/internal/model"
)

// BG order ids appear as "<digits>/<dd.mm.yy>" on the first page.
var (
	bgKomWithDateRe    = regexp.MustCompile(`(^|[^0-9])(\d{3,12})/(\d{2}\.\d{2}\.\d{2})([^0-9]|$)`)
	bgWrappedArticleRe = regexp.MustCompile(`(?:[A-Za-z0-9]+/){2,}[A-Za-z0-9]+/(\d{2,5})\s+(\d{2})([^0-9]|$)`)
	bgBrandRe          = regexp.MustCompile(`\b(?:moe?max|aiko)(?:\s+bulgaria)?\b`)
	bgOrderTitleRe     = regexp.MustCompile(`\b(?:momax|moemax|aiko)\s*[-–—]\s*order\b`)
	bgTermRe           = regexp.MustCompile(`\bterm\s+(?:for|of)\s+delivery\b`)
)

var foldDiacritics = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// CombinedFirstPageText joins the first-page text of every PDF attachment.
// Unreadable PDFs contribute nothing.
func CombinedFirstPageText(attachments []model.Attachment, pdf PDFText) string {
	var parts []string
	for _, a := range attachments {
		if !a.IsPDF() {
			continue
		}
		text, err := pdf.FirstPageText(a.Data)
		if err != nil {
			continue
		}
		parts = append(parts, text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

type bgOrderCandidate struct {
	kom  string
	date string
}

func extractBGOrderCandidates(attachments []model.Attachment, pdf PDFText) []bgOrderCandidate {
	combined := CombinedFirstPageText(attachments, pdf)
	if combined == "" {
		return nil
	}
	var out []bgOrderCandidate
	for _, m := range bgKomWithDateRe.FindAllStringSubmatch(combined, -1) {
		out = append(out, bgOrderCandidate{kom: m[2], date: m[3]})
	}
	return out
}

// ExtractMomaxBGKomNr returns the numeric BG order id, preferring the longest
// candidate ("88801711" over "1711"). Empty when none found.
func ExtractMomaxBGKomNr(attachments []model.Attachment, pdf PDFText) string {
	candidates := extractBGOrderCandidates(attachments, pdf)
	var koms []string
	for _, c := range candidates {
		if k := strings.TrimSpace(c.kom); k != "" {
			koms = append(koms, k)
		}
	}
	if len(koms) == 0 {
		return ""
	}
	sort.Slice(koms, func(i, j int) bool {
		if len(koms[i]) != len(koms[j]) {
			return len(koms[i]) > len(koms[j])
		}
		return koms[i] > koms[j]
	})
	return koms[0]
}

// ExtractMomaxBGOrderDate returns the dd.mm.yy suffix paired with the
// preferred order id.
func ExtractMomaxBGOrderDate(attachments []model.Attachment, pdf PDFText) string {
	candidates := extractBGOrderCandidates(attachments, pdf)
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if len(a.kom) != len(b.kom) {
			return len(a.kom) > len(b.kom)
		}
		if a.kom != b.kom {
			return a.kom > b.kom
		}
		return a.date > b.date
	})
	return strings.TrimSpace(candidates[0].date)
}

// ExtractMomaxBGWrappedArticleMap finds Code/Type article endings split by a
// line break ("SN/SN/71/SP/91/180 98" means article "18098") and maps the
// truncated base to the full article number.
func ExtractMomaxBGWrappedArticleMap(attachments []model.Attachment, pdf PDFText) map[string]string {
	combined := CombinedFirstPageText(attachments, pdf)
	if combined == "" {
		return map[string]string{}
	}

	mapping := make(map[string]string)
	for _, m := range bgWrappedArticleRe.FindAllStringSubmatch(combined, -1) {
		base := strings.TrimSpace(m[1])
		suffix := strings.TrimSpace(m[2])
		if base == "" || suffix == "" {
			continue
		}
		full := base + suffix
		if len(full) <= len(base) {
			continue
		}
		mapping[base] = full
	}
	return mapping
}

// IsMomaxBGTwoPDFCase detects the BG split-order format used by
// MOMAX/MOEMAX/AIKO documents. Fails closed: any error or mismatch is false.
func IsMomaxBGTwoPDFCase(attachments []model.Attachment, pdf PDFText) bool {
	combined := CombinedFirstPageText(attachments, pdf)
	if combined == "" {
		return false
	}

	lowered := strings.ToLower(combined)
	if folded, _, err := transform.String(foldDiacritics, lowered); err == nil {
		lowered = folded
	}

	hasBrand := bgBrandRe.MatchString(lowered)
	hasOrder := bgOrderTitleRe.MatchString(lowered)
	hasTerm := bgTermRe.MatchString(lowered)
	hasKom := ExtractMomaxBGKomNr(attachments, pdf) != ""

	return hasBrand && hasOrder && hasTerm && hasKom
}
