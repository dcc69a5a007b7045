package porta

import (
	"math"
	"strconv"
	"strings"

	"github.com/furnbridge/orderdesk/internal/model"
)

// parseQtyToken parses a quantity token from PDF text. European decimal
// commas are honored; grouping commas mixed with a dot are dropped. Anything
// unparsable defaults to quantity 1.
func parseQtyToken(token string) float64 {
	text := strings.ReplaceAll(strings.TrimSpace(token), " ", "")
	if text == "" {
		return 1
	}
	if strings.Contains(text, ",") && !strings.Contains(text, ".") {
		text = strings.ReplaceAll(text, ",", ".")
	} else {
		text = strings.ReplaceAll(text, ",", "")
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 1
	}
	return n
}

// qtyString renders a quantity the way it appears in warnings: integral
// values without a decimal part.
func qtyString(qty float64) string {
	if qty == math.Trunc(qty) && !math.IsInf(qty, 0) {
		return strconv.FormatInt(int64(qty), 10)
	}
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

// qtyKey canonicalizes a quantity for counting, so 2, 2.0 and "2" compare
// equal and a missing menge counts as 1.
func qtyKey(qty float64) string { return qtyString(qty) }

// qtyFromEntry reads the menge quantity off a field entry, defaulting to 1.
func qtyFromEntry(e *model.FieldEntry) float64 {
	if e == nil {
		return 1
	}
	if f, ok := e.Value.Float(); ok {
		return f
	}
	return parseQtyToken(e.Text())
}

// extractQtyMarker recognizes the two Porta quantity layouts at lines[index]:
// an inline "<n> STK" token, or a bare number line followed by a lone "STK"
// line. It returns the quantity and how many lines the marker consumed.
func extractQtyMarker(lines []string, index int) (float64, int, bool) {
	line := strings.TrimSpace(lines[index])
	if line == "" {
		return 0, 0, false
	}
	if m := qtySTKRe.FindStringSubmatch(strings.ToUpper(line)); m != nil {
		return parseQtyToken(m[1]), 1, true
	}
	if m := qtyOnlyLineRe.FindStringSubmatch(line); m != nil &&
		index+1 < len(lines) &&
		stkOnlyLineRe.MatchString(strings.TrimSpace(lines[index+1])) {
		return parseQtyToken(m[1]), 2, true
	}
	return 0, 0, false
}
