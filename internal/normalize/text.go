package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/furnbridge/orderdesk/internal/model"
)

var (
	controlRe    = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	intraSpaceRe = regexp.MustCompile(`[ \t]+`)
)

// CleanText renders any scalar as text, drops control characters and collapses
// runs of spaces and tabs per line. Newlines and line order are preserved;
// blank lines are dropped.
func CleanText(v model.Value) string {
	return CleanString(v.String())
}

// CleanString is CleanText for plain strings.
func CleanString(s string) string {
	if s == "" {
		return ""
	}
	s = controlRe.ReplaceAllString(s, "")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		cleaned := strings.TrimSpace(intraSpaceRe.ReplaceAllString(line, " "))
		if cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	return strings.Join(lines, "\n")
}

// NormalizeQuantity coerces a menge value to a number. European decimal
// commas are handled: a comma with no dot is the decimal separator, otherwise
// commas are thousands separators. Returns the original text and false when
// the value is not numeric.
func NormalizeQuantity(v model.Value) (model.Value, bool) {
	if f, ok := v.Float(); ok {
		return model.FloatValue(f), true
	}
	text := CleanText(v)
	if text == "" {
		return model.StringValue(""), true
	}

	compact := strings.ReplaceAll(text, " ", "")
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		compact = strings.ReplaceAll(compact, ",", ".")
	} else {
		compact = strings.ReplaceAll(compact, ",", "")
	}
	f, err := strconv.ParseFloat(compact, 64)
	if err != nil {
		return model.StringValue(text), false
	}
	return model.FloatValue(f), true
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02.01.06",
	"2.1.2006",
	"2.1.06",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"20060102",
}

var dateTokenRe = regexp.MustCompile(`\d{1,4}[./-]\d{1,2}[./-]\d{2,4}|\d{4}-\d{2}-\d{2}`)

// ParseDate parses a free-form date string into a time. When dayfirst is
// false the day and month positions of the dotted and slashed layouts are
// swapped. A date token embedded in surrounding text is still found.
func ParseDate(text string, dayfirst bool) (time.Time, bool) {
	text = CleanString(text)
	if text == "" {
		return time.Time{}, false
	}
	candidates := []string{text}
	if tok := dateTokenRe.FindString(text); tok != "" && tok != text {
		candidates = append(candidates, tok)
	}
	for _, cand := range candidates {
		for _, layout := range dateLayouts {
			l := layout
			if !dayfirst {
				l = swapDayMonth(layout)
			}
			if t, err := time.Parse(l, cand); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func swapDayMonth(layout string) string {
	switch layout {
	case "02.01.2006":
		return "01.02.2006"
	case "02.01.06":
		return "01.02.06"
	case "2.1.2006":
		return "1.2.2006"
	case "2.1.06":
		return "1.2.06"
	case "02/01/2006":
		return "01/02/2006"
	case "2/1/2006":
		return "1/2/2006"
	case "02-01-2006":
		return "01-02-2006"
	default:
		return layout
	}
}

// NormalizeDate formats a free-form date as ISO yyyy-mm-dd. Unparseable text
// is returned cleaned but unchanged, with ok=false.
func NormalizeDate(text string, dayfirst bool) (string, bool) {
	cleaned := CleanString(text)
	if cleaned == "" {
		return "", true
	}
	t, ok := ParseDate(cleaned, dayfirst)
	if !ok {
		return cleaned, false
	}
	return t.Format("2006-01-02"), true
}

func appendUnique(warnings []string, message string) []string {
	if message == "" {
		return warnings
	}
	for _, w := range warnings {
		if w == message {
			return warnings
		}
	}
	return append(warnings, message)
}
