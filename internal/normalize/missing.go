package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/furnbridge/orderdesk/internal/model"
)

// TicketMissingWarning is the stable warning used when no ticket number was
// extracted. The UI keys off this exact string.
const TicketMissingWarning = "ticket number is missing"

const (
	missingCriticalHeaderPrefix = "Missing critical header fields:"
	missingCriticalItemPrefix   = "Missing critical item fields:"
)

// lineField identifies one missing item field by line number.
type lineField struct {
	Line  int
	Field string
}

// computeMissing lists the empty canonical fields of a record. For MOMAX BG
// orders kom_name is policy-derived and never reported as missing. A record
// without any items yields the sentinel (0, "items").
func computeMissing(header model.Header, items []*model.Item, isMomaxBG bool) ([]string, []lineField) {
	var missingHeader []string
	for _, field := range model.HeaderFields {
		if isMomaxBG && field == model.FieldKomName {
			continue
		}
		if header.Get(field).IsMissing() {
			missingHeader = append(missingHeader, field)
		}
	}

	var missingItems []lineField
	if len(items) == 0 {
		missingItems = append(missingItems, lineField{Line: 0, Field: "items"})
		return missingHeader, missingItems
	}
	for idx, it := range items {
		if it == nil {
			continue
		}
		for _, field := range model.ItemFields {
			if it.Fields[field].IsMissing() {
				missingItems = append(missingItems, lineField{Line: idx + 1, Field: field})
			}
		}
	}
	return missingHeader, missingItems
}

func withoutFurncloud(missing []lineField) []lineField {
	var out []lineField
	for _, m := range missing {
		if m.Field != model.FieldFurncloudID {
			out = append(out, m)
		}
	}
	return out
}

func missingCriticalHeaderFields(missingHeader []string) []string {
	missing := make(map[string]bool, len(missingHeader))
	for _, f := range missingHeader {
		missing[f] = true
	}
	var out []string
	for _, f := range model.CriticalHeaderFields {
		if missing[f] {
			out = append(out, f)
		}
	}
	return out
}

func missingCriticalItemFields(missingItems []lineField) []lineField {
	linesByField := make(map[string][]int)
	for _, m := range missingItems {
		critical := false
		for _, f := range model.CriticalItemFields {
			if m.Field == f {
				critical = true
				break
			}
		}
		if !critical {
			continue
		}
		seen := false
		for _, l := range linesByField[m.Field] {
			if l == m.Line {
				seen = true
				break
			}
		}
		if !seen {
			linesByField[m.Field] = append(linesByField[m.Field], m.Line)
		}
	}
	var out []lineField
	for _, f := range model.CriticalItemFields {
		lines, ok := linesByField[f]
		if !ok {
			continue
		}
		sort.Ints(lines)
		for _, l := range lines {
			out = append(out, lineField{Line: l, Field: f})
		}
	}
	return out
}

func criticalHeaderReplyWarning(fields []string) string {
	return fmt.Sprintf("Reply needed: %s %s", missingCriticalHeaderPrefix, strings.Join(fields, ", "))
}

func criticalItemReplyWarning(missing []lineField) string {
	var parts []string
	for i := 0; i < len(missing); {
		field := missing[i].Field
		var lines []string
		for i < len(missing) && missing[i].Field == field {
			lines = append(lines, strconv.Itoa(missing[i].Line))
			i++
		}
		parts = append(parts, fmt.Sprintf("%s (line %s)", field, strings.Join(lines, ", ")))
	}
	return fmt.Sprintf("Reply needed: %s %s", missingCriticalItemPrefix, strings.Join(parts, ", "))
}

// setReplyNeeded forces the reply_needed flag on as a derived edit without
// clobbering an extractor-provided source or confidence.
func setReplyNeeded(header model.Header) {
	e := header.Ensure(model.FieldReplyNeeded)
	e.Value = model.BoolValue(true)
	if strings.TrimSpace(string(e.Source)) == "" {
		e.Source = model.SourceDerived
	}
	if e.Confidence <= 0.0 {
		e.Confidence = 1.0
	}
}

func applyCriticalReplyWarnings(order *model.Order, missingHeader []string, missingItems []lineField) {
	if critical := missingCriticalHeaderFields(missingHeader); len(critical) > 0 {
		setReplyNeeded(order.Header)
		order.AppendUniqueWarning(criticalHeaderReplyWarning(critical))
	}
	if critical := missingCriticalItemFields(missingItems); len(critical) > 0 {
		setReplyNeeded(order.Header)
		order.AppendUniqueWarning(criticalItemReplyWarning(critical))
	}
}

// appendMissingWarnings renders the standard missing-field warnings. Ticket
// number gets its own stable message; furncloud_id-only gaps collapse into a
// single summary line.
func appendMissingWarnings(order *model.Order, missingHeader []string, missingItems []lineField) {
	var headerNoTicket []string
	ticketMissing := false
	for _, f := range missingHeader {
		if f == model.FieldTicketNumber {
			ticketMissing = true
			continue
		}
		headerNoTicket = append(headerNoTicket, f)
	}
	if len(headerNoTicket) > 0 {
		order.Warnings = append(order.Warnings, "Missing header fields: "+strings.Join(headerNoTicket, ", "))
	}
	if ticketMissing {
		order.Warnings = append(order.Warnings, TicketMissingWarning)
	}
	appendMissingItemWarnings(order, missingItems)
}

// RefreshMissingWarnings recomputes the missing-field warnings and status
// from the current record state. Call it after any pipeline step that fills
// header or item fields so the stored warnings match the final data. The
// operation is idempotent.
func RefreshMissingWarnings(order *model.Order) {
	if order == nil {
		return
	}
	ApplyProgramFurncloudToItems(order, nil)

	isMomaxBG := false
	if e := order.Header.Get(model.FieldKomName); e != nil && e.DerivedFrom == "momax_bg_policy" {
		isMomaxBG = true
	}

	missingHeader, missingItems := computeMissing(order.Header, order.Items, isMomaxBG)
	criticalHeader := missingCriticalHeaderFields(missingHeader)
	criticalItems := missingCriticalItemFields(missingItems)
	if len(criticalHeader) > 0 || len(criticalItems) > 0 {
		setReplyNeeded(order.Header)
	}

	if len(missingHeader) > 0 || len(withoutFurncloud(missingItems)) > 0 || len(order.Items) == 0 {
		order.Status = model.StatusPartial
	} else {
		order.Status = model.StatusOK
	}

	order.RemoveWarningsWhere(func(w string) bool {
		switch {
		case strings.HasPrefix(w, "Missing header fields:"),
			strings.HasPrefix(w, "Missing item fields:"),
			strings.HasPrefix(w, "Reply needed: "+missingCriticalHeaderPrefix),
			strings.HasPrefix(w, "Reply needed: "+missingCriticalItemPrefix):
			return true
		case w == "No items extracted.",
			w == "Missing item fields detected.",
			w == "furncloud_id is missing for one or more items.",
			w == TicketMissingWarning:
			return true
		}
		return false
	})

	var headerNoTicket []string
	for _, f := range missingHeader {
		if f != model.FieldTicketNumber {
			headerNoTicket = append(headerNoTicket, f)
		}
	}
	if len(headerNoTicket) > 0 {
		order.Warnings = append(order.Warnings, "Missing header fields: "+strings.Join(headerNoTicket, ", "))
	}
	if len(criticalHeader) > 0 {
		order.AppendUniqueWarning(criticalHeaderReplyWarning(criticalHeader))
	}
	if len(criticalItems) > 0 {
		order.AppendUniqueWarning(criticalItemReplyWarning(criticalItems))
	}
	for _, f := range missingHeader {
		if f == model.FieldTicketNumber {
			order.Warnings = append(order.Warnings, TicketMissingWarning)
			break
		}
	}
	appendMissingItemWarnings(order, missingItems)
}

func appendMissingItemWarnings(order *model.Order, missingItems []lineField) {
	if len(missingItems) == 0 {
		return
	}
	if len(missingItems) == 1 && missingItems[0] == (lineField{Line: 0, Field: "items"}) {
		order.Warnings = append(order.Warnings, "No items extracted.")
		return
	}
	onlyFurncloud := true
	for _, m := range missingItems {
		if m.Field != model.FieldFurncloudID {
			onlyFurncloud = false
			break
		}
	}
	if onlyFurncloud {
		order.Warnings = append(order.Warnings, "furncloud_id is missing for one or more items.")
		return
	}
	sorted := append([]lineField{}, missingItems...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line < sorted[j].Line
		}
		return sorted[i].Field < sorted[j].Field
	})
	parts := make([]string, 0, len(sorted))
	for _, m := range sorted {
		parts = append(parts, fmt.Sprintf("%s (line %d)", m.Field, m.Line))
	}
	order.Warnings = append(order.Warnings, "Missing item fields: "+strings.Join(parts, "; "))
}
