// Package pipeline orchestrates one message end to end: routing, attachment
// preparation, model extraction with retries, normalization, branch-specific
// correction passes, item-code verification and final enrichment.
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/branch"
	"github.com/furnbridge/orderdesk/internal/config"
	"github.com/furnbridge/orderdesk/internal/lookup"
	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/internal/normalize"
	"github.com/furnbridge/orderdesk/internal/porta"
	"github.com/furnbridge/orderdesk/internal/router"
	"github.com/furnbridge/orderdesk/pkg/llm"
)

// ReplySender sends the reply-needed notification for an order and returns
// the recipient address it was sent to.
type ReplySender interface {
	SendReplyNeeded(ctx context.Context, msg model.IngestedEmail, order *model.Order) (string, error)
}

// Result is the outcome of processing one message. Processing never fails
// outright: extraction exhaustion yields a well-formed failed order.
type Result struct {
	Order      *model.Order
	Route      model.RouteDecision
	OutputName string
}

// Pipeline processes ingested emails into canonical order records.
type Pipeline struct {
	cfg      *config.Config
	router   *router.Router
	registry *branch.Registry
	client   llm.Client
	pdf      branch.PDFText
	renderer PageRenderer
	norm     *normalize.Normalizer
	tables   *lookup.Tables
	sender   ReplySender
}

// New creates a Pipeline. The renderer, tables and sender may be nil, which
// disables PDF page rendering, catalog lookups and reply mail respectively.
func New(
	cfg *config.Config,
	rt *router.Router,
	registry *branch.Registry,
	client llm.Client,
	pdf branch.PDFText,
	renderer PageRenderer,
	norm *normalize.Normalizer,
	tables *lookup.Tables,
	sender ReplySender,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		router:   rt,
		registry: registry,
		client:   client,
		pdf:      pdf,
		renderer: renderer,
		norm:     norm,
		tables:   tables,
		sender:   sender,
	}
}

var safeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeName turns a message ID into a filesystem-safe record name.
func safeName(value string) string {
	cleaned := strings.Trim(safeNameRe.ReplaceAllString(value, "_"), "_")
	if cleaned == "" {
		return "message"
	}
	return cleaned
}

var ticketNumberRe = regexp.MustCompile(`(?i)ticket\s*number\b[^0-9]*(\d+)`)

// extractTicketNumber pulls a support ticket number out of the email
// subject. Only seven-digit numbers are trusted.
func extractTicketNumber(subject string) string {
	m := ticketNumberRe.FindStringSubmatch(subject)
	if m == nil {
		return ""
	}
	digits := m[1]
	if len(digits) != 7 {
		return ""
	}
	if n, err := strconv.Atoi(digits); err != nil || n < 1000000 {
		return ""
	}
	return digits
}

// Process runs the whole pipeline over one message. The returned error is
// non-nil only when the context is cancelled; every other failure mode is
// folded into the record itself.
func (p *Pipeline) Process(ctx context.Context, msg model.IngestedEmail) (*Result, error) {
	log := zap.L().With(zap.String("message_id", msg.MessageID))

	var warnings []string
	bodyText := msg.BodyText
	if max := p.cfg.Pipeline.MaxEmailChars; max > 0 && len(bodyText) > max {
		warnings = append(warnings, fmt.Sprintf("Email body truncated to %d characters.", max))
		bodyText = bodyText[:max]
	}

	route := p.router.Route(ctx, msg)
	b := p.registry.Get(route.SelectedBranchID)
	if b == nil {
		b = p.registry.Get(branch.DefaultBranchID)
	}
	warnings = append(warnings, router.FormatWarning(route))
	log.Info("message routed",
		zap.String("branch", b.ID),
		zap.Bool("forced", route.ForcedByDetector),
		zap.Bool("fallback", route.UsedFallback),
	)

	inputs := p.prepareInputs(ctx, msg, &warnings)

	raw, extractErr := p.extractWithRetry(ctx, msg, b, bodyText, inputs)
	if extractErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		order := model.NewOrder(msg.MessageID, msg.ReceivedAt)
		order.Branch = b.ID
		order.Status = model.StatusFailed
		order.Warnings = append(order.Warnings, warnings...)
		order.Errors = append(order.Errors, extractErr.Error())
		log.Warn("extraction exhausted retries", zap.Error(extractErr))
		return &Result{Order: order, Route: route, OutputName: safeName(msg.MessageID)}, nil
	}

	order := p.norm.Normalize(raw, normalize.Options{
		MessageID:  msg.MessageID,
		ReceivedAt: msg.ReceivedAt,
		DayFirst:   p.cfg.Pipeline.DateDayFirst,
		EmailBody:  bodyText,
		Sender:     msg.Sender,
		IsMomaxBG:  b.IsMomaxBG,
		BranchID:   b.ID,
		Warnings:   warnings,
	})
	order.Branch = b.ID

	if b.ID == branch.PortaID {
		porta.ReconcileComponentOccurrences(order, inputs.PageTexts)
		porta.ApplyStoreNameFromPDF(order, inputs.PageTexts)
		porta.TrimKomNrSuffix(order)
		porta.ApplyKomNameFallback(order, inputs.PageTexts)
	}

	if b.IsMomaxBG {
		p.applyMomaxBGWrappedArticleCorrection(order, msg)
		normalize.ApplyMomaxBGStrictItemCodeCorrections(order)
	}

	if b.EnableItemCodeVerification && !b.IsMomaxBG && p.cfg.Pipeline.VerifyEnabled {
		p.verifyItemCodes(ctx, order, b, inputs.PageTexts)
	}

	if p.cfg.Pipeline.ZBCatalogLookupEnabled && p.tables != nil {
		if p.tables.ApplyZBModellnummerLookup(order) {
			normalize.RefreshMissingWarnings(order)
		}
	}

	if b.ID == branch.PortaID {
		porta.ApplyOJAccessoryBackfill(order, inputs.PageTexts)
		porta.ApplyQuantityCorrections(order, inputs.PageTexts)
		porta.TrimComponentExcessItems(order, inputs.PageTexts)
	}

	if route.UsedFallback {
		e := order.Header.Ensure(model.FieldHumanReviewNeeded)
		if !order.Header.Bool(model.FieldHumanReviewNeeded) {
			e.SetDerived(model.BoolValue(true), 1.0, "routing_fallback")
		}
		order.Warnings = append(order.Warnings, "Routing fallback: forced human_review_needed=true")
	}

	if b.IsMomaxBG {
		p.applyMomaxBGFinalFixes(order, msg)
	}

	p.applyTicketNumber(order, msg.Subject)
	p.finalizeEnrichment(order)
	normalize.RefreshMissingWarnings(order)
	p.sendReplyIfNeeded(ctx, msg, order, log)

	log.Info("message processed",
		zap.String("status", string(order.Status)),
		zap.Int("items", len(order.Items)),
		zap.Int("warnings", len(order.Warnings)),
	)
	return &Result{Order: order, Route: route, OutputName: safeName(msg.MessageID)}, nil
}

// applyTicketNumber writes the ticket_number header entry. The entry is
// always present: a found number carries email provenance, a missing one is
// an empty derived entry.
func (p *Pipeline) applyTicketNumber(order *model.Order, subject string) {
	ticket := extractTicketNumber(subject)
	e := order.Header.Ensure(model.FieldTicketNumber)
	e.Value = model.StringValue(ticket)
	e.DerivedFrom = ""
	if ticket != "" {
		e.Source = model.SourceEmail
		e.Confidence = 1.0
	} else {
		e.Source = model.SourceDerived
		e.Confidence = 0.0
	}
}

// finalizeEnrichment re-resolves tour and adressnummer from the customer
// master once the kundennummer is final, recomputes the delivery week and
// validates the tour against the Lieferlogik schedule.
func (p *Pipeline) finalizeEnrichment(order *model.Order) {
	if p.tables == nil {
		return
	}

	if kdnr := order.Header.Text(model.FieldKundennummer); kdnr != "" {
		if match := p.tables.CustomerByKundennummer(kdnr); match != nil {
			order.Header.Ensure(model.FieldTour).
				SetDerived(model.StringValue(match.Tour), 1.0, "excel_lookup_by_kundennummer")
			order.Header.Ensure(model.FieldAdressnummer).
				SetDerived(model.StringValue(match.Adressnummer), 1.0, "excel_lookup_by_kundennummer")
		}
	}

	bestelldatum := order.Header.Text(model.FieldBestelldatum)
	tour := order.Header.Text(model.FieldTour)
	requested := order.Header.Text(model.FieldWunschtermin)
	if requested == "" {
		requested = order.Header.Text(model.FieldLiefertermin)
	}
	if p.cfg.Pipeline.DeliveryWeekCalcEnabled && bestelldatum != "" && tour != "" {
		clientName := order.Header.Text(model.FieldStoreName)
		if dw := p.tables.Calculate(bestelldatum, tour, requested, clientName); dw != "" {
			order.Header.Ensure(model.FieldDeliveryWeek).
				SetDerived(model.StringValue(dw), 1.0, "delivery_logic")
		}
	}

	if tour != "" && !p.tables.IsTourValid(tour) {
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"Tour number '%s' not found in Lieferlogik; please verify in Primex Kunden Excel.", tour))
	}
}

// sendReplyIfNeeded mails the reply-needed notification. Send failures are
// demoted to a record warning.
func (p *Pipeline) sendReplyIfNeeded(ctx context.Context, msg model.IngestedEmail, order *model.Order, log *zap.Logger) {
	if p.sender == nil || !order.Header.Bool(model.FieldReplyNeeded) {
		return
	}
	to, err := p.sender.SendReplyNeeded(ctx, msg, order)
	if err != nil {
		order.Warnings = append(order.Warnings, fmt.Sprintf("Auto-reply email failed: %v", err))
		log.Warn("auto-reply email failed", zap.Error(err))
		return
	}
	order.Warnings = append(order.Warnings, fmt.Sprintf("Auto-reply email sent to %s.", to))
	log.Info("auto-reply email sent", zap.String("to", to))
}
