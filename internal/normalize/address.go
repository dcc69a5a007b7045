package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const streetPattern = `(?:\b(?:[A-Za-z0-9][A-Za-z0-9.\-]*\s+){0,4}` +
	`(?:Str\.?|Strasse|Straße|Weg|Platz|Allee|Chaussee|Ring|Gasse|Damm|Ufer|Pfad|Steig|Kai|Markt|Berg|Stieg)\s+` +
	`\d{1,4}[A-Za-z]?(?:\s*[-/]\s*\d{1,4}[A-Za-z]?)?\b)` +
	`|` +
	`(?:\b[A-Za-z0-9][A-Za-z0-9.\-]*` +
	`(?:str\.?|strasse|straße|weg|platz|allee|chaussee|ring|gasse|damm|ufer|pfad|steig|kai|markt|berg|stieg)\s+` +
	`\d{1,4}[A-Za-z]?(?:\s*[-/]\s*\d{1,4}[A-Za-z]?)?\b)`

var (
	plzRe      = regexp.MustCompile(`\b\d{5}\b`)
	gluePlzRe  = regexp.MustCompile(`(\d{1,4}[A-Za-z]?)(\d{5})\b`)
	ilnTokenRe = regexp.MustCompile(`\b\d{13}\b`)
	ilnLabelRe = regexp.MustCompile(`(?i)\b(?:iln|gln)\b`)
	nonDigitRe = regexp.MustCompile(`\D`)

	streetRe            = regexp.MustCompile(`(?i)` + streetPattern)
	companyLegalRe      = regexp.MustCompile(`(?i)^(?:&|co\.?kg|co\.?|kg|gmbh|mbh|ag|ohg|ek|e\.k\.)$`)
	streetKeywordLeadRe = regexp.MustCompile(`(?i)^(?:Str\.?|Strasse|Straße|Weg|Platz|Allee|Chaussee|Ring|Gasse|Damm|Ufer|Pfad|Steig|Kai|Markt|Berg|Stieg)\b`)

	legalGlueRe       = regexp.MustCompile(`\b(Co\.?KG|GmbH|mbH|AG|OHG|KG)([A-ZÄÖÜ][a-zäöü])`)
	camelGlueRe       = regexp.MustCompile(`([a-zäöüß])([A-ZÄÖÜ])`)
	streetDigitGlueRe = regexp.MustCompile(`(?i)\b((?:str\.?|strasse|straße|weg|platz|allee|chaussee|ring|gasse|damm|ufer|pfad|steig|kai|markt|berg|stieg))(\d)`)

	lineBreakRe   = regexp.MustCompile(`\s*\n\s*`)
	aroundBreakRe = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	anySpaceRe    = regexp.MustCompile(`\s+`)
)

// FormatGermanAddress enforces the 2-line German address format
// "Street HouseNo\nPLZ City". Text without a 5-digit PLZ is left as is.
func FormatGermanAddress(value string) string {
	if value == "" {
		return value
	}
	s := strings.TrimSpace(normalizeNewlines(value))
	if !plzRe.MatchString(s) {
		return s
	}
	s = lineBreakRe.ReplaceAllString(s, " ")
	s = gluePlzRe.ReplaceAllString(s, "$1 $2")
	if loc := plzRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]] + "\n" + s[loc[0]:]
	}
	return aroundBreakRe.ReplaceAllString(s, "\n")
}

// FormatDeliveryAddress preserves multi-line delivery addresses while still
// forcing a line break before the PLZ. Standalone or labeled ILN/GLN lines
// are removed, and a company prefix glued onto the street is split onto its
// own line.
func FormatDeliveryAddress(value string) string {
	if value == "" {
		return value
	}
	s := strings.TrimSpace(normalizeNewlines(value))
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		cleaned := strings.TrimSpace(intraSpaceRe.ReplaceAllString(line, " "))
		if cleaned == "" {
			continue
		}
		// OCR sometimes glues legal form and street start ("Co.KGDelitzscher").
		cleaned = legalGlueRe.ReplaceAllString(cleaned, "$1 $2")
		if isILNLine(cleaned) {
			continue
		}
		lines = append(lines, cleaned)
	}
	if len(lines) == 0 {
		return ""
	}
	hasPLZ := false
	for _, line := range lines {
		if plzRe.MatchString(line) {
			hasPLZ = true
			break
		}
	}
	if !hasPLZ {
		return strings.Join(lines, "\n")
	}

	if len(lines) == 1 {
		oneLine := ilnTokenRe.ReplaceAllString(lines[0], " ")
		oneLine = strings.TrimSpace(anySpaceRe.ReplaceAllString(oneLine, " "))
		loc := plzRe.FindStringIndex(oneLine)
		if loc == nil {
			return oneLine
		}
		left := strings.Trim(oneLine[:loc[0]], " ,")
		plzCity := strings.TrimSpace(oneLine[loc[0]:])
		if company, street, ok := splitCompanyStreet(left); ok {
			return company + "\n" + street + "\n" + plzCity
		}
		if left == "" {
			return plzCity
		}
		return left + "\n" + plzCity
	}

	plzIdx := 0
	for i, line := range lines {
		if plzRe.MatchString(line) {
			plzIdx = i
			break
		}
	}
	formatted := FormatGermanAddress(lines[plzIdx])
	if !strings.Contains(formatted, "\n") {
		return strings.Join(lines, "\n")
	}
	parts := strings.SplitN(formatted, "\n", 2)
	street, plzCity := parts[0], parts[1]
	prefix := strings.TrimSpace(strings.Join(lines[:plzIdx], " "))
	var newLines []string
	if company, streetLine, ok := splitCompanyStreet(prefix); prefix != "" && ok {
		newLines = append([]string{company, streetLine, plzCity}, lines[plzIdx+1:]...)
	} else if strings.TrimSpace(street) != "" {
		newLines = append(append(append([]string{}, lines[:plzIdx]...), street, plzCity), lines[plzIdx+1:]...)
	} else {
		newLines = append(append(append([]string{}, lines[:plzIdx]...), plzCity), lines[plzIdx+1:]...)
	}
	return strings.Join(newLines, "\n")
}

// StripPortaCompanyPrefix keeps only the address lines (street plus PLZ and
// city) of a Porta delivery address, dropping company and label prefix lines.
// When no clear street and PLZ pair is found the raw input is preserved
// unchanged.
func StripPortaCompanyPrefix(value string) string {
	if value == "" {
		return value
	}
	raw := value
	formatted := FormatDeliveryAddress(raw)
	var lines []string
	for _, line := range strings.Split(formatted, "\n") {
		cleaned := strings.TrimSpace(intraSpaceRe.ReplaceAllString(line, " "))
		if cleaned == "" {
			continue
		}
		cleaned = camelGlueRe.ReplaceAllString(cleaned, "$1 $2")
		cleaned = streetDigitGlueRe.ReplaceAllString(cleaned, "$1 $2")
		cleaned = gluePlzRe.ReplaceAllString(cleaned, "$1 $2")
		lines = append(lines, cleaned)
	}
	if len(lines) < 2 {
		if len(lines) != 1 {
			return raw
		}
		single := lines[0]
		loc := plzRe.FindStringIndex(single)
		if loc == nil {
			return raw
		}
		left := strings.Trim(single[:loc[0]], " ,")
		plzCity := strings.TrimSpace(single[loc[0]:])
		var match *streetCandidate
		for _, cand := range streetCandidates(left) {
			cand := cand
			if isLegalTokenStart(cand.text) {
				continue
			}
			match = &cand
		}
		if match == nil {
			return raw
		}
		street := strings.Trim(match.text, " ,")
		if street == "" {
			return raw
		}
		if streetKeywordLeadRe.MatchString(street) {
			prefixTokens := strings.Fields(left[:match.start])
			if len(prefixTokens) > 0 {
				street = strings.TrimSpace(prefixTokens[len(prefixTokens)-1] + " " + street)
			}
		}
		return street + "\n" + plzCity
	}

	plzIdx := -1
	for i, line := range lines {
		if plzRe.MatchString(line) {
			plzIdx = i
			break
		}
	}
	if plzIdx <= 0 {
		return raw
	}
	streetIdx := -1
	for i := 0; i < plzIdx; i++ {
		if streetRe.MatchString(lines[i]) {
			streetIdx = i
		}
	}
	if streetIdx < 0 {
		return raw
	}
	return strings.Join(lines[streetIdx:], "\n")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func isILNLine(line string) bool {
	if !ilnTokenRe.MatchString(line) {
		return false
	}
	digits := nonDigitRe.ReplaceAllString(line, "")
	return len(digits) == 13 || ilnLabelRe.MatchString(line)
}

type streetCandidate struct {
	start int
	text  string
}

// streetCandidates enumerates street matches at every possible start offset,
// overlapping ones included, in left-to-right order. Matches starting inside
// a word are rejected; the regexp word boundary is ASCII-only and would
// otherwise split after umlauts.
func streetCandidates(s string) []streetCandidate {
	var out []streetCandidate
	for i := 0; i <= len(s); {
		loc := streetRe.FindStringIndex(s[i:])
		if loc == nil {
			break
		}
		start := i + loc[0]
		if wordRuneBefore(s, start) {
			i = start + 1
			continue
		}
		out = append(out, streetCandidate{start: start, text: s[start : i+loc[1]]})
		i = start + 1
	}
	return out
}

func wordRuneBefore(s string, pos int) bool {
	if pos == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:pos])
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isLegalTokenStart(street string) bool {
	fields := strings.Fields(street)
	if len(fields) == 0 {
		return false
	}
	return companyLegalRe.MatchString(strings.Trim(fields[0], ".,"))
}

// splitCompanyStreet splits "Company Street HouseNo" text into its company
// and street parts. The longest street candidate that does not begin with a
// legal-form token wins; a bare street-type lead ("Str. 6") pulls the last
// company token over.
func splitCompanyStreet(left string) (company, street string, ok bool) {
	left = strings.Trim(left, " ,")
	if left == "" {
		return "", "", false
	}
	var best *streetCandidate
	bestLen := -1
	for _, cand := range streetCandidates(left) {
		cand := cand
		if isLegalTokenStart(cand.text) {
			continue
		}
		if l := len(strings.Trim(cand.text, " ,")); l > bestLen {
			best = &cand
			bestLen = l
		}
	}
	if best == nil {
		return "", "", false
	}
	company = strings.Trim(left[:best.start], " ,")
	street = strings.Trim(best.text, " ,")
	if company != "" && streetKeywordLeadRe.MatchString(street) {
		tokens := strings.Fields(company)
		if len(tokens) > 0 {
			street = strings.TrimSpace(tokens[len(tokens)-1] + " " + street)
			company = strings.Trim(strings.Join(tokens[:len(tokens)-1], " "), " ,")
		}
	}
	if company == "" || street == "" {
		return "", "", false
	}
	return company, street, true
}
