package pipeline

import (
	"fmt"

	"github.com/furnbridge/orderdesk/internal/branch"
	"github.com/furnbridge/orderdesk/internal/model"
)

// applyMomaxBGWrappedArticleCorrection repairs artikelnummern the model read
// from line-wrapped Code/Type cells, using the pairing recovered from the
// digital PDF text.
func (p *Pipeline) applyMomaxBGWrappedArticleCorrection(order *model.Order, msg model.IngestedEmail) {
	wrapped := branch.ExtractMomaxBGWrappedArticleMap(msg.Attachments, p.pdf)
	if len(wrapped) == 0 {
		return
	}
	for i, it := range order.Items {
		if it == nil {
			continue
		}
		entry := it.Ensure(model.FieldArtikelnummer)
		current := entry.Text()
		corrected := wrapped[current]
		if corrected == "" || corrected == current {
			continue
		}
		entry.SetDerived(model.StringValue(corrected), 1.0, "momax_bg_pdf_wrapped_article_correction")
		lineNo := it.LineNo
		if lineNo <= 0 {
			lineNo = i + 1
		}
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"MOMAX BG wrapped Code/Type correction: item line %d artikelnummer '%s' -> '%s'.",
			lineNo, current, corrected))
	}
}

// applyMomaxBGFinalFixes keeps only the deterministic PDF-side fixes for the
// Bulgarian branch: the kom_nr printed on the order PDF wins, a missing
// bestelldatum is recovered from the order-number suffix, and a derived
// reply_needed flag is reset. Kundennummer stays with the address-based
// Excel logic.
func (p *Pipeline) applyMomaxBGFinalFixes(order *model.Order, msg model.IngestedEmail) {
	if komNr := branch.ExtractMomaxBGKomNr(msg.Attachments, p.pdf); komNr != "" {
		if komNr != order.Header.Text(model.FieldKomNr) {
			e := order.Header.Ensure(model.FieldKomNr)
			e.Value = model.StringValue(komNr)
			e.Source = model.SourcePDF
			e.Confidence = 1.0
			e.DerivedFrom = ""
		}
	}

	if order.Header.Text(model.FieldBestelldatum) == "" {
		if orderDate := branch.ExtractMomaxBGOrderDate(msg.Attachments, p.pdf); orderDate != "" {
			order.Header.Ensure(model.FieldBestelldatum).
				SetDerived(model.StringValue(orderDate), 1.0, "pdf_order_suffix")
		}
	}

	if e := order.Header.Get(model.FieldReplyNeeded); e != nil && e.Source == model.SourceDerived {
		e.Value = model.BoolValue(false)
	}
}
