package porta

import (
	"strings"
	"unicode"

	"github.com/furnbridge/orderdesk/internal/model"
)

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// cleanKomName validates a kommission name candidate. Pure numbers and lines
// carrying other header labels are rejected.
func cleanKomName(value string) string {
	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(value, " "))
	if text == "" || isAllDigits(text) {
		return ""
	}
	if komNameRejectRe.MatchString(text) {
		return ""
	}
	return text
}

// KomNameFromPDFTexts scans the ordered page texts for a kommission name,
// either after a "Kommissionsname:" label or trailing the number on a
// "Kommission"/"Komm" line (falling back to the next line).
func KomNameFromPDFTexts(pageTexts map[string]string) string {
	for _, page := range OrderedPages(pageTexts) {
		lines := nonBlankLines(page.Text)
		for index, line := range lines {
			if komNameLabelRe.MatchString(line) {
				parts := labelSplitRe.Split(line, 2)
				if len(parts) > 1 {
					if candidate := cleanKomName(parts[1]); candidate != "" {
						return candidate
					}
				}
			}
			if !komLineRe.MatchString(line) {
				continue
			}
			after := line
			if parts := labelSplitRe.Split(line, 2); len(parts) > 1 {
				after = parts[1]
			}
			loc := komNumberRe.FindStringIndex(after)
			if loc == nil {
				continue
			}
			if candidate := cleanKomName(strings.Trim(after[loc[1]:], " :,-")); candidate != "" {
				return candidate
			}
			if index+1 < len(lines) {
				if candidate := cleanKomName(lines[index+1]); candidate != "" {
					return candidate
				}
			}
		}
	}
	return ""
}

// cleanStoreName validates a Verkaufshaus store-name candidate. The name must
// mention porta and must not be an address or boilerplate line.
func cleanStoreName(value string) string {
	text := strings.Trim(whitespaceRe.ReplaceAllString(value, " "), " :,-")
	if text == "" {
		return ""
	}
	text = strings.Trim(storeNamePrefixRe.ReplaceAllString(text, ""), " :,-")
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "porta") {
		return ""
	}
	if storeNameRejectRe.MatchString(text) {
		return ""
	}
	if plzTokenRe.MatchString(text) {
		// Store name must not include address lines.
		return ""
	}
	if streetTokenRe.MatchString(text) {
		return ""
	}
	return text
}

// StoreNameFromPDFTexts picks the best Verkaufshaus legal-name candidate
// across the page texts, scoring legal-form tokens and Verkaufshaus context.
func StoreNameFromPDFTexts(pageTexts map[string]string) string {
	best := ""
	bestScore := -1
	for _, page := range OrderedPages(pageTexts) {
		lines := nonBlankLines(page.Text)
		for index, line := range lines {
			candidate := cleanStoreName(line)
			if candidate == "" {
				continue
			}
			score := 0
			if storeNameLegalTokenRe.MatchString(candidate) {
				score += 4
			}
			if strings.Contains(strings.ToLower(candidate), "porta moebel") ||
				strings.Contains(strings.ToLower(candidate), "porta möbel") {
				score++
			}
			if index > 0 && verkaufshausRe.MatchString(lines[index-1]) {
				score += 2
			}
			if verkaufshausRe.MatchString(line) {
				score += 2
			}
			if score > bestScore || (score == bestScore && len(candidate) > len(best)) {
				best = candidate
				bestScore = score
			}
		}
	}
	return best
}

// ApplyStoreNameFromPDF overrides the extracted store_name with the full
// legal Verkaufshaus name from the PDF when the PDF name is better: the
// extracted one is empty, lacks a legal-form token, or is shorter.
func ApplyStoreNameFromPDF(order *model.Order, pageTexts map[string]string) {
	fromPDF := StoreNameFromPDFTexts(pageTexts)
	if fromPDF == "" {
		return
	}
	existing := order.Header.Text(model.FieldStoreName)

	override := false
	if existing == "" {
		override = true
	} else {
		existingHasLegal := storeNameLegalTokenRe.MatchString(existing)
		pdfHasLegal := storeNameLegalTokenRe.MatchString(fromPDF)
		if pdfHasLegal && (!existingHasLegal || len(fromPDF) > len(existing)) {
			override = true
		}
	}
	if !override {
		return
	}

	entry := order.Header.Ensure(model.FieldStoreName)
	entry.Value = model.StringValue(fromPDF)
	entry.Source = model.SourcePDF
	entry.Confidence = 0.98
	entry.DerivedFrom = DerivedPDFStoreName

	if existing != "" && existing != fromPDF {
		order.Warnings = append(order.Warnings,
			"Porta: store_name replaced by full legal Verkaufshaus name from PDF.")
	} else if existing == "" {
		order.Warnings = append(order.Warnings,
			"Porta: store_name filled from PDF Verkaufshaus legal name.")
	}
}

// TrimKomNrSuffix drops the "/NN" position suffix Porta appends to kom_nr.
func TrimKomNrSuffix(order *model.Order) {
	val := order.Header.Text(model.FieldKomNr)
	if val == "" {
		return
	}
	trimmed := strings.TrimSpace(komNrSuffixRe.ReplaceAllString(val, ""))
	if trimmed == val {
		return
	}
	entry := order.Header.Ensure(model.FieldKomNr)
	entry.Value = model.StringValue(trimmed)
	entry.DerivedFrom = DerivedKomNrSuffixTrim
}

// ApplyKomNameFallback fills an empty kom_name from the PDF kommission line,
// or failing that from a porta-mentioning store_name.
func ApplyKomNameFallback(order *model.Order, pageTexts map[string]string) {
	if order.Header.Text(model.FieldKomName) != "" {
		return
	}

	if fromPDF := KomNameFromPDFTexts(pageTexts); fromPDF != "" {
		entry := order.Header.Ensure(model.FieldKomName)
		entry.Value = model.StringValue(fromPDF)
		entry.Source = model.SourcePDF
		entry.Confidence = 0.95
		entry.DerivedFrom = DerivedPDFKomName
		order.Warnings = append(order.Warnings,
			"Porta: kom_name filled from PDF kommission line.")
		return
	}

	storeEntry := order.Header.Get(model.FieldStoreName)
	storeVal := storeEntry.Text()
	if storeVal == "" || !portaWordRe.MatchString(storeVal) {
		return
	}
	source := model.SourceDerived
	confidence := 0.0
	if storeEntry != nil {
		if storeEntry.Source.Valid() {
			source = storeEntry.Source
		}
		confidence = storeEntry.Confidence
	}
	if confidence <= 0 {
		confidence = 0.9
	}
	entry := order.Header.Ensure(model.FieldKomName)
	entry.Value = model.StringValue(storeVal)
	entry.Source = source
	entry.Confidence = confidence
	entry.DerivedFrom = DerivedStoreNameFallback
	order.Warnings = append(order.Warnings,
		"Porta: kom_name filled from store_name fallback.")
}
