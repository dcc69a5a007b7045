package normalize

import (
	"regexp"
	"strings"
)

var (
	replyCaseRe   = regexp.MustCompile(`(?is)\bstatt\b.{0,200}?\bbitte\b.{0,200}`)
	replyFooterRe = regexp.MustCompile(
		`(?i)(\*\*\*\s*ende\s*mail\s*\*\*\*|-{3,}|_{3,}|\*{4,}|mit\s+freundlichen\s+gr[uü]ßen|best\s+regards|kind\s+regards)`)
	replyHeaderStopRe = regexp.MustCompile(`(?i)\b(KDNR|Komm|Liefertermin|Wunschtermin|ILN|Bestelldatum)\b`)
)

const replyCaseMaxLen = 300

// ExtractReplyCases pulls "statt X bitte Y" correction requests out of an
// email body. Matches are cut at signature footers or at the next header
// label, compacted to single-space text and deduplicated case-insensitively.
func ExtractReplyCases(emailBody string) []string {
	if emailBody == "" {
		return nil
	}
	cleaned := CleanString(emailBody)
	if cleaned == "" {
		return nil
	}
	joined := strings.Join(strings.Split(cleaned, "\n"), " ")

	var cases []string
	seen := make(map[string]bool)
	for _, match := range replyCaseRe.FindAllString(joined, -1) {
		trimmed := match
		if loc := replyFooterRe.FindStringIndex(trimmed); loc != nil {
			trimmed = trimmed[:loc[0]]
		} else if loc := replyHeaderStopRe.FindStringIndex(trimmed); loc != nil {
			trimmed = trimmed[:loc[0]]
		}
		compact := strings.TrimSpace(anySpaceRe.ReplaceAllString(trimmed, " "))
		if compact == "" {
			continue
		}
		if runes := []rune(compact); len(runes) > replyCaseMaxLen {
			compact = strings.TrimRight(string(runes[:replyCaseMaxLen]), " ")
		}
		key := strings.ToLower(compact)
		if seen[key] {
			continue
		}
		seen[key] = true
		cases = append(cases, compact)
	}
	return cases
}
