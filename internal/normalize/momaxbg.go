package normalize

import (
	"regexp"
	"strings"

	"github.com/furnbridge/orderdesk/internal/model"
)

// Provenance tags recorded on MOMAX BG item-code corrections.
const (
	DerivedMomaxBGSuffixRelocation  = "momax_bg_suffix_relocation"
	DerivedMomaxBGStrictCodeParser  = "momax_bg_strict_code_parser"
	DerivedMomaxBGCodeNormalization = "momax_bg_code_normalization"
)

var (
	bgModelSepRe      = regexp.MustCompile(`[/\s]+`)
	bgDigitGroupsRe   = regexp.MustCompile(`^\d+(?:\s+\d+)+$`)
	bgAlphaTokenRe    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
	bgHasAlphaRe      = regexp.MustCompile(`[A-Za-z]`)
	bgDigitsOnlyRe    = regexp.MustCompile(`^\d+$`)
	bgNumericAlphaRe  = regexp.MustCompile(`^(\d{2,12})\s+([A-Za-z][A-Za-z0-9]*)$`)
	bgSuffixOnlyRe    = regexp.MustCompile(`(?i)^(XB|XP)$`)
	bgArtikelStrictRe = regexp.MustCompile(`^\d{5}[A-Z]?$`)

	bgArtikelTrailingSuffixRe     = regexp.MustCompile(`(?i)^(\d{5})(XB|XP)$`)
	bgArtikelLikeWithSuffixRe     = regexp.MustCompile(`(?i)^(\d{5}[A-Z]?)(XB|XP)?$`)
	bgModelLikeRe                 = regexp.MustCompile(`(?i)^(?:CQ|OJ|0J)[A-Z0-9]+$`)
	bgShortNumericRe              = regexp.MustCompile(`^\d{1,4}$`)
	bgLeadingArtikelSuffixModelRe = regexp.MustCompile(`(?i)^(\d{5})(XB|XP)([A-Z0-9]+)$`)
	bgModelTailArticleRe          = regexp.MustCompile(`^(.+?)(\d{5})$`)
)

// NormalizeMomaxBGModell compacts a MOMAX BG model code: slash separators and
// internal whitespace are removed.
func NormalizeMomaxBGModell(value string) string {
	text := CleanString(value)
	if text == "" {
		return ""
	}
	return bgModelSepRe.ReplaceAllString(text, "")
}

// NormalizeMomaxBGArtikel collapses wrapped digit groups such as "180 98"
// back into a single article token. Mixed text is left untouched.
func NormalizeMomaxBGArtikel(value string) string {
	text := CleanString(value)
	if text == "" {
		return ""
	}
	if bgDigitGroupsRe.MatchString(text) {
		return anySpaceRe.ReplaceAllString(text, "")
	}
	return text
}

// splitMomaxBGCode splits a combined code into (artikel, modell).
// Slash codes put the last segment into artikel and compact the rest into
// modell. Hyphen codes are MODEL-ARTICLE, except reversed NUMERIC-ALPHA
// accessory codes. A plain "NUMERIC ALPHA" pair splits the same way.
func splitMomaxBGCode(raw string) (artikel, modell string, ok bool) {
	text := CleanString(raw)
	if text == "" {
		return "", "", false
	}

	if strings.Contains(text, "/") {
		var parts []string
		for _, seg := range strings.Split(text, "/") {
			if s := strings.TrimSpace(seg); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) >= 2 {
			return parts[len(parts)-1], strings.Join(parts[:len(parts)-1], ""), true
		}
	}

	if idx := strings.LastIndex(text, "-"); idx >= 0 {
		left := strings.TrimSpace(text[:idx])
		right := strings.TrimSpace(text[idx+1:])
		if left != "" && right != "" {
			if bgDigitsOnlyRe.MatchString(left) && bgAlphaTokenRe.MatchString(right) {
				return left, right, true
			}
			return right, left, true
		}
	}

	if m := bgNumericAlphaRe.FindStringSubmatch(text); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

func appendUniqueSuffix(modell, suffix string) string {
	base := NormalizeMomaxBGModell(modell)
	suffix = strings.ToUpper(suffix)
	if suffix == "" {
		return base
	}
	if strings.HasSuffix(strings.ToUpper(base), suffix) {
		return base
	}
	return base + suffix
}

func isMomaxBGModelLike(value string) bool {
	return bgModelLikeRe.MatchString(NormalizeMomaxBGModell(value))
}

func extractArtikelAndSuffix(value string) (artikel, suffix string, ok bool) {
	text := strings.ToUpper(NormalizeMomaxBGArtikel(value))
	m := bgArtikelLikeWithSuffixRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.ToUpper(m[2]), true
}

// buildMomaxBGCodesFromSlashTokens rebuilds (artikel, modell) from explicit
// slash token lists. The first strict 5-digit article token is pulled out, a
// lone XB/XP token becomes the model suffix, and the remaining tokens are
// compacted alpha-first into the model.
func buildMomaxBGCodesFromSlashTokens(artikel, modell string) (newArtikel, newModell string, ok bool) {
	cleanModell := CleanString(modell)
	cleanArtikel := CleanString(artikel)
	if !strings.Contains(cleanModell, "/") && !strings.Contains(cleanArtikel, "/") {
		return "", "", false
	}

	var tokens []string
	if cleanModell != "" {
		for _, tok := range strings.Split(cleanModell, "/") {
			if cleaned := NormalizeMomaxBGArtikel(tok); cleaned != "" {
				tokens = append(tokens, cleaned)
			}
		}
	}
	if cleanArtikel != "" {
		if strings.Contains(cleanArtikel, "/") {
			for _, tok := range strings.Split(cleanArtikel, "/") {
				if cleaned := NormalizeMomaxBGArtikel(tok); cleaned != "" {
					tokens = append(tokens, cleaned)
				}
			}
		} else {
			tokens = append(tokens, NormalizeMomaxBGArtikel(cleanArtikel))
		}
	}
	if len(tokens) < 2 {
		return "", "", false
	}

	articleIdx := -1
	articleToken := ""
	for idx, tok := range tokens {
		candidate := strings.ToUpper(tok)
		if bgArtikelStrictRe.MatchString(candidate) {
			articleIdx = idx
			articleToken = candidate
			break
		}
	}
	if articleIdx < 0 || articleToken == "" {
		return "", "", false
	}

	suffixToken := ""
	var modelTokens []string
	for idx, tok := range tokens {
		if idx == articleIdx {
			continue
		}
		upper := strings.ToUpper(tok)
		if suffixToken == "" && bgSuffixOnlyRe.MatchString(upper) {
			suffixToken = upper
			continue
		}
		modelTokens = append(modelTokens, tok)
	}

	var alpha, numeric []string
	for _, tok := range modelTokens {
		if bgHasAlphaRe.MatchString(tok) {
			alpha = append(alpha, tok)
		} else {
			numeric = append(numeric, tok)
		}
	}
	modelText := NormalizeMomaxBGModell(strings.Join(append(alpha, numeric...), ""))
	if suffixToken != "" {
		modelText = appendUniqueSuffix(modelText, suffixToken)
	}
	return articleToken, modelText, true
}

// applyMomaxBGStrictItemCodeCorrection runs the deterministic article/model
// correction cascade on one line. Exactly one rule may fire per line; the
// first applicable rule wins. Reports whether any value changed.
func applyMomaxBGStrictItemCodeCorrection(it *model.Item) bool {
	artikelEntry := it.Ensure(model.FieldArtikelnummer)
	modellEntry := it.Ensure(model.FieldModellnummer)

	oldArtikel := CleanText(artikelEntry.Value)
	oldModell := CleanText(modellEntry.Value)
	artikel := NormalizeMomaxBGArtikel(oldArtikel)
	modell := oldModell

	derivedFrom := ""
	upperArtikel := strings.ToUpper(NormalizeMomaxBGArtikel(artikel))

	// Rule A: article token carries an XB/XP suffix that belongs to the model.
	if m := bgArtikelTrailingSuffixRe.FindStringSubmatch(upperArtikel); m != nil {
		artikel = m[1]
		modell = appendUniqueSuffix(modell, strings.ToUpper(m[2]))
		derivedFrom = DerivedMomaxBGSuffixRelocation
	}

	// Rule B: swapped model/article values, optionally with a model suffix
	// stuck on the article token.
	if derivedFrom == "" {
		if newArtikel, suffix, ok := extractArtikelAndSuffix(modell); ok && isMomaxBGModelLike(artikel) {
			newModell := NormalizeMomaxBGModell(artikel)
			if suffix != "" {
				newModell = appendUniqueSuffix(newModell, suffix)
				derivedFrom = DerivedMomaxBGSuffixRelocation
			} else {
				derivedFrom = DerivedMomaxBGStrictCodeParser
			}
			artikel = newArtikel
			modell = newModell
		}
	}

	// Rule C: standalone XP/XB article; extract the trailing strict article
	// out of the model.
	if derivedFrom == "" {
		if m := bgSuffixOnlyRe.FindStringSubmatch(upperArtikel); m != nil {
			compactModel := NormalizeMomaxBGModell(modell)
			if tail := bgModelTailArticleRe.FindStringSubmatch(compactModel); tail != nil {
				artikel = tail[2]
				modell = appendUniqueSuffix(tail[1], strings.ToUpper(m[1]))
				derivedFrom = DerivedMomaxBGSuffixRelocation
			}
		}
	}

	// Rule D: short numeric article that was wrapped off the model tail.
	if derivedFrom == "" {
		compactArtikel := NormalizeMomaxBGArtikel(artikel)
		compactModel := NormalizeMomaxBGModell(modell)
		m := bgLeadingArtikelSuffixModelRe.FindStringSubmatch(compactModel)
		if m != nil && bgShortNumericRe.MatchString(compactArtikel) && len(compactArtikel) < 5 {
			artikel = m[1]
			modell = appendUniqueSuffix(m[3]+compactArtikel, strings.ToUpper(m[2]))
			derivedFrom = DerivedMomaxBGSuffixRelocation
		}
	}

	// Rule E: explicit slash tokens; pick the strict article token and
	// rebuild the model from the rest.
	if derivedFrom == "" {
		if newArtikel, newModell, ok := buildMomaxBGCodesFromSlashTokens(artikel, modell); ok {
			artikel, modell = newArtikel, newModell
			derivedFrom = DerivedMomaxBGStrictCodeParser
		}
	}

	if derivedFrom == "" {
		return false
	}

	newArtikel := NormalizeMomaxBGArtikel(artikel)
	newModell := NormalizeMomaxBGModell(modell)
	changed := false
	if newArtikel != oldArtikel {
		artikelEntry.SetDerived(model.StringValue(newArtikel), 1.0, derivedFrom)
		changed = true
	}
	if newModell != oldModell {
		modellEntry.SetDerived(model.StringValue(newModell), 1.0, derivedFrom)
		changed = true
	}
	return changed
}

// ApplyMomaxBGStrictItemCodeCorrections applies the deterministic MOMAX BG
// article/model correction rules to every item line and returns the number
// of lines that changed.
func ApplyMomaxBGStrictItemCodeCorrections(order *model.Order) int {
	if order == nil || len(order.Items) == 0 {
		return 0
	}
	corrected := 0
	for idx, it := range order.Items {
		if it == nil {
			continue
		}
		if it.LineNo == 0 {
			it.LineNo = idx + 1
		}
		if applyMomaxBGStrictItemCodeCorrection(it) {
			corrected++
		}
	}
	return corrected
}

// normalizeMomaxBGItemCodes runs the loose split pass used during initial
// normalization: compact the article token, then split combined codes found
// in artikelnummer (or in modellnummer when artikelnummer is missing or a
// duplicate).
func normalizeMomaxBGItemCodes(it *model.Item) {
	artikelEntry := it.Ensure(model.FieldArtikelnummer)
	modellEntry := it.Ensure(model.FieldModellnummer)

	artikelValue := NormalizeMomaxBGArtikel(CleanText(artikelEntry.Value))
	modellValue := CleanText(modellEntry.Value)
	if artikelValue != CleanText(artikelEntry.Value) {
		artikelEntry.SetDerived(model.StringValue(artikelValue), 1.0, DerivedMomaxBGCodeNormalization)
	}

	newArtikel, newModell, ok := splitMomaxBGCode(artikelValue)
	if !ok && (artikelValue == "" || artikelValue == modellValue) {
		newArtikel, newModell, ok = splitMomaxBGCode(modellValue)
	}

	if ok {
		newModell = NormalizeMomaxBGModell(newModell)
		if newArtikel != artikelValue {
			artikelEntry.SetDerived(model.StringValue(newArtikel), 1.0, DerivedMomaxBGCodeNormalization)
		}
		if newModell != modellValue {
			modellEntry.SetDerived(model.StringValue(newModell), 1.0, DerivedMomaxBGCodeNormalization)
		}
		return
	}

	if compact := NormalizeMomaxBGModell(modellValue); compact != modellValue {
		modellEntry.Value = model.StringValue(compact)
	}
}
