// Package normalize turns raw model-extracted order JSON into canonical
// order records: alias remapping, value coercion, deterministic branch
// corrections, customer-master enrichment and missing-field accounting.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/furnbridge/orderdesk/internal/model"
)

// Normalizer owns the deterministic correction pipeline applied to every
// extraction result before storage and export.
type Normalizer struct {
	lookup Lookup
	weeks  DeliveryWeek
}

// New creates a Normalizer. Both collaborators may be nil, which disables
// customer-master enrichment and delivery-week calculation respectively.
func New(lookup Lookup, weeks DeliveryWeek) *Normalizer {
	return &Normalizer{lookup: lookup, weeks: weeks}
}

// Options carries the per-message context the normalizer needs beyond the
// raw extraction payload.
type Options struct {
	MessageID  string
	ReceivedAt time.Time
	DayFirst   bool
	EmailBody  string
	Sender     string
	IsMomaxBG  bool
	BranchID   string
	Warnings   []string
}

// Normalize converts one raw extraction object into a canonical order.
// The input is never trusted: alias keys are remapped, bare scalars are
// wrapped, sources are validated and every canonical field ends up present.
func (n *Normalizer) Normalize(raw map[string]any, opts Options) *model.Order {
	if raw == nil {
		raw = map[string]any{}
	}
	warnings := append([]string{}, opts.Warnings...)

	order := model.NewOrder(opts.MessageID, opts.ReceivedAt)
	order.Header = decodeHeader(raw["header"])
	order.Items = decodeItems(raw["items"])
	order.Program = decodeProgram(raw["program"])
	hadStructure := len(order.Header) > 0 || len(order.Items) > 0

	// The extractor may report a conflicting PDF-side kom_name under a side
	// channel key; the email body wins, with a warning.
	komEmail := order.Header.Text(model.FieldKomName)
	if pdfEntry := order.Header.Get("kom_name_pdf"); pdfEntry != nil {
		if komPDF := pdfEntry.Text(); komPDF != "" && komEmail != "" && komPDF != komEmail {
			warnings = append(warnings, "kom_name in PDF differed from email body; using value from email body.")
		}
		delete(order.Header, "kom_name_pdf")
	}

	warnings = normalizeHeader(order.Header, warnings)
	if opts.BranchID == "segmuller" {
		applySegmullerKomNameCleanup(order.Header)
	}
	if order.Header.Bool(model.FieldReplyNeeded) && opts.EmailBody != "" {
		for _, c := range ExtractReplyCases(opts.EmailBody) {
			warnings = appendUnique(warnings, "Reply needed: "+c)
		}
	}
	applyWunschterminRule(order.Header)
	warnings = n.enrichFromExcel(order.Header, warnings, opts.EmailBody, opts.Sender, opts.IsMomaxBG)

	if e := order.Header.Get(model.FieldLieferanschrift); e != nil {
		value := e.Value.String()
		var formatted string
		if opts.BranchID == "porta" {
			formatted = StripPortaCompanyPrefix(value)
		} else {
			formatted = FormatDeliveryAddress(value)
		}
		if formatted != value {
			e.Value = model.StringValue(formatted)
		}
	}
	if e := order.Header.Get(model.FieldStoreAddress); e != nil {
		value := e.Value.String()
		if formatted := FormatGermanAddress(value); formatted != value {
			e.Value = model.StringValue(formatted)
		}
	}

	// Fallback-derived customer numbers always go to a human.
	if e := order.Header.Get(model.FieldKundennummer); e != nil {
		if e.DerivedFrom == "iln_fallback" || e.DerivedFrom == "ai_assisted_match" {
			order.Header.Ensure(model.FieldHumanReviewNeeded).Value = model.BoolValue(true)
		}
	}

	warnings = normalizeItems(order.Items, warnings, opts.IsMomaxBG)
	if opts.BranchID == "segmuller" {
		warnings = applySegmullerItemCodeSplit(order.Items, warnings)
	}
	if opts.IsMomaxBG {
		ApplyMomaxBGStrictItemCodeCorrections(order)
	}
	warnings = propagateFurncloudID(order.Items, warnings)
	warnings = ApplyProgramFurncloudToItems(order, warnings)

	for _, w := range append(warnings, decodeStrings(raw["warnings"])...) {
		order.AppendUniqueWarning(w)
	}
	order.Errors = append(order.Errors, decodeStrings(raw["errors"])...)

	missingHeader, missingItems := computeMissing(order.Header, order.Items, opts.IsMomaxBG)
	applyCriticalReplyWarnings(order, missingHeader, missingItems)

	criticalMissingItems := withoutFurncloud(missingItems)
	switch {
	case !hadStructure && len(order.Items) == 0:
		order.Status = model.StatusFailed
	case len(missingHeader) > 0 || len(criticalMissingItems) > 0 || len(order.Items) == 0:
		order.Status = model.StatusPartial
	default:
		order.Status = model.StatusOK
	}

	appendMissingWarnings(order, missingHeader, missingItems)
	return order
}

func normalizeHeader(header model.Header, warnings []string) []string {
	for _, field := range model.HeaderFields {
		e := header.Ensure(field)
		if !e.Source.Valid() {
			e.Source = model.SourceDerived
		}
		if model.BoolHeaderFields[field] {
			e.Value = model.BoolValue(isTruthy(e.Value))
			continue
		}
		e.Value = model.StringValue(CleanText(e.Value))
		if e.Value.IsEmpty() {
			e.Confidence = 0.0
		}
	}
	return warnings
}

func isTruthy(v model.Value) bool {
	if v.Kind() == model.KindBool {
		return v.Bool()
	}
	return strings.EqualFold(v.String(), "true")
}

func normalizeItems(items []*model.Item, warnings []string, isMomaxBG bool) []string {
	for idx, it := range items {
		if it.LineNo == 0 {
			it.LineNo = idx + 1
		}
		for _, field := range model.ItemFields {
			e := it.Ensure(field)
			if !e.Source.Valid() {
				e.Source = model.SourceDerived
			}
			if field == model.FieldMenge {
				normalized, ok := NormalizeQuantity(e.Value)
				e.Value = normalized
				if !ok {
					warnings = append(warnings, fmt.Sprintf("Failed to normalize quantity for item %d.", idx+1))
				}
				continue
			}
			e.Value = model.StringValue(CleanText(e.Value))
		}
		if isMomaxBG {
			normalizeMomaxBGItemCodes(it)
		}
		for _, field := range model.ItemFields {
			e := it.Ensure(field)
			if e.Value.IsEmpty() {
				e.Confidence = 0.0
			}
		}
	}
	return warnings
}

func propagateFurncloudID(items []*model.Item, warnings []string) []string {
	var values []string
	for _, it := range items {
		value := CleanText(it.Ensure(model.FieldFurncloudID).Value)
		if value == "" {
			continue
		}
		seen := false
		for _, v := range values {
			if v == value {
				seen = true
				break
			}
		}
		if !seen {
			values = append(values, value)
		}
	}
	if len(values) == 0 {
		return warnings
	}
	if len(values) > 1 {
		warnings = append(warnings, "Multiple furncloud_id values found; using the first for all items.")
	}

	chosen := values[0]
	for _, it := range items {
		e := it.Ensure(model.FieldFurncloudID)
		current := CleanText(e.Value)
		e.Value = model.StringValue(chosen)
		if current == chosen && e.Source.Valid() && e.Source != model.SourceDerived {
			continue
		}
		e.Source = model.SourceDerived
		e.Confidence = 1.0
	}
	return warnings
}

// ApplyProgramFurncloudToItems fills missing item-level furncloud_id values
// from program.furncloud_id so the dashboard stays consistent with the XML
// export, which renders the program-level ID.
func ApplyProgramFurncloudToItems(order *model.Order, warnings []string) []string {
	if order == nil || order.Program == nil {
		return warnings
	}
	programFC := CleanString(order.Program.FurncloudID)
	if programFC == "" || len(order.Items) == 0 {
		return warnings
	}

	mismatch := false
	for _, it := range order.Items {
		if it == nil {
			continue
		}
		e := it.Ensure(model.FieldFurncloudID)
		current := CleanText(e.Value)
		if current == "" {
			e.Value = model.StringValue(programFC)
			e.Source = model.SourceDerived
			e.Confidence = 1.0
			continue
		}
		if current != programFC {
			mismatch = true
		}
	}
	if mismatch && warnings != nil {
		warnings = append(warnings, "program.furncloud_id differs from one or more item furncloud_id values.")
	}
	return warnings
}

// applyWunschterminRule backfills an empty wunschtermin from liefertermin.
func applyWunschterminRule(header model.Header) {
	if header.Text(model.FieldWunschtermin) != "" {
		return
	}
	liefer := header.Get(model.FieldLiefertermin)
	if liefer.Text() == "" {
		return
	}
	header.Ensure(model.FieldWunschtermin).SetDerived(liefer.Value, 1.0, "liefertermin")
}
