// Package router assigns an incoming message to exactly one extraction
// branch, preferring deterministic evidence over classifier judgment.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/branch"
	"github.com/furnbridge/orderdesk/internal/config"
	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/pkg/llm"
)

// Router routes messages to extraction branches.
type Router struct {
	registry *branch.Registry
	client   llm.Client
	pdf      branch.PDFText
	cfg      config.RouterConfig

	// extraRules come from the operator rules file and run after the
	// built-in ad-hoc rules.
	extraRules []adHocRule
}

// New creates a Router. A configured rules file that fails to load is
// logged and skipped; routing falls back to the built-in rules.
func New(registry *branch.Registry, client llm.Client, pdf branch.PDFText, cfg config.RouterConfig) *Router {
	r := &Router{registry: registry, client: client, pdf: pdf, cfg: cfg}
	if cfg.RulesPath != "" {
		rules, err := LoadRules(cfg.RulesPath)
		if err != nil {
			zap.L().Warn("routing rules file unavailable",
				zap.String("path", cfg.RulesPath), zap.Error(err))
		} else {
			r.extraRules = rules
			zap.L().Info("routing rules loaded",
				zap.String("path", cfg.RulesPath), zap.Int("rules", len(rules)))
		}
	}
	return r
}

// adHocRule forces a branch from sender/body/PDF evidence outside the
// declared detector table.
type adHocRule struct {
	branchID string
	reason   string
	match    func(msg model.IngestedEmail, firstPages string) bool
}

var (
	portaSenderRe     = regexp.MustCompile(`(?i)@(?:[a-z0-9.-]+\.)?porta\.de\b`)
	segmullerSenderRe = regexp.MustCompile(`(?i)@(?:[a-z0-9.-]+\.)?segmueller\.de\b`)
	braunSenderRe     = regexp.MustCompile(`(?i)@(?:[a-z0-9.-]+\.)?braun-moebel\.de\b`)
	braunPDFRe        = regexp.MustCompile(`(?i)\bbraun\s+m(?:ö|oe)bel[- ]center\b`)
	segmullerPDFRe    = regexp.MustCompile(`(?i)\bsegm(?:ü|ue)ller\b`)
	portaPDFRe        = regexp.MustCompile(`(?i)\bporta\b.*\bbestehend aus je\b`)
)

var adHocRules = []adHocRule{
	{
		branchID: branch.PortaID,
		reason:   "sender_domain:porta.de",
		match: func(msg model.IngestedEmail, _ string) bool {
			return portaSenderRe.MatchString(msg.Sender)
		},
	},
	{
		branchID: branch.SegmullerID,
		reason:   "sender_domain:segmueller.de",
		match: func(msg model.IngestedEmail, _ string) bool {
			return segmullerSenderRe.MatchString(msg.Sender)
		},
	},
	{
		branchID: branch.BraunID,
		reason:   "sender_domain:braun-moebel.de",
		match: func(msg model.IngestedEmail, _ string) bool {
			return braunSenderRe.MatchString(msg.Sender)
		},
	},
	{
		branchID: branch.BraunID,
		reason:   "pdf_keyword:braun_moebel_center",
		match: func(_ model.IngestedEmail, firstPages string) bool {
			return braunPDFRe.MatchString(firstPages)
		},
	},
	{
		branchID: branch.SegmullerID,
		reason:   "pdf_keyword:segmueller",
		match: func(_ model.IngestedEmail, firstPages string) bool {
			return segmullerPDFRe.MatchString(firstPages)
		},
	},
	{
		branchID: branch.PortaID,
		reason:   "pdf_keyword:porta_component_layout",
		match: func(_ model.IngestedEmail, firstPages string) bool {
			return portaPDFRe.MatchString(firstPages)
		},
	},
}

// Route selects a branch for the message. It never returns an error: any
// classifier failure degrades to the fallback branch with a recorded reason.
func (r *Router) Route(ctx context.Context, msg model.IngestedEmail) model.RouteDecision {
	defaultID := r.defaultBranchID()

	// Operator mail: a known internal signature in the body forces the
	// default branch with no classifier call at all.
	if marker := strings.TrimSpace(r.cfg.OperatorMailMarker); marker != "" &&
		strings.Contains(strings.ToLower(msg.BodyText), strings.ToLower(marker)) {
		return model.RouteDecision{
			SelectedBranchID:   defaultID,
			ClassifierBranchID: "unknown",
			Confidence:         1.0,
			Reason:             "operator_mail_marker",
			ForcedByDetector:   true,
			UsedFallback:       false,
		}
	}

	detectorResults := r.evaluateHardDetectors(msg.Attachments)
	forcedID, forcedReason := r.forcedBranchID(msg, detectorResults)

	if forcedID != "" {
		zap.L().Debug("routing forced by detector",
			zap.String("message_id", msg.MessageID),
			zap.String("branch", forcedID),
			zap.String("reason", forcedReason))
		return model.RouteDecision{
			SelectedBranchID:   forcedID,
			ClassifierBranchID: "unknown",
			Confidence:         1.0,
			Reason:             forcedReason,
			ForcedByDetector:   true,
			UsedFallback:       false,
		}
	}

	if !r.cfg.Enabled {
		return model.RouteDecision{
			SelectedBranchID:   defaultID,
			ClassifierBranchID: "unknown",
			Confidence:         0.0,
			Reason:             "router_disabled",
			ForcedByDetector:   false,
			UsedFallback:       true,
		}
	}

	classifierID, confidence, reason := "unknown", 0.0, "classifier_error"
	systemPrompt := r.buildSystemPrompt()
	userText := r.buildUserText(msg, detectorResults)
	response, err := r.client.Classify(ctx, systemPrompt, userText)
	if err != nil {
		reason = fmt.Sprintf("classifier_error: %v", err)
	} else if classifierID, confidence, reason, err = parseClassifierResponse(response, r.registry); err != nil {
		classifierID, confidence = "unknown", 0.0
		reason = fmt.Sprintf("classifier_error: %v", err)
	}

	if r.registry.Has(classifierID) && confidence >= r.cfg.MinConfidence {
		return model.RouteDecision{
			SelectedBranchID:   classifierID,
			ClassifierBranchID: classifierID,
			Confidence:         confidence,
			Reason:             reason,
			ForcedByDetector:   false,
			UsedFallback:       false,
		}
	}

	fallbackReason := reason
	if classifierID == "unknown" {
		fallbackReason = "unknown"
	} else if r.registry.Has(classifierID) && confidence < r.cfg.MinConfidence {
		fallbackReason = "low confidence"
	}

	return model.RouteDecision{
		SelectedBranchID:   defaultID,
		ClassifierBranchID: classifierID,
		Confidence:         confidence,
		Reason:             fallbackReason,
		ForcedByDetector:   false,
		UsedFallback:       true,
	}
}

func (r *Router) defaultBranchID() string {
	if r.cfg.DefaultBranchID != "" && r.registry.Has(r.cfg.DefaultBranchID) {
		return r.cfg.DefaultBranchID
	}
	return branch.DefaultBranchID
}

// evaluateHardDetectors runs every declared detector. Fail-closed: a panic
// in one detector records false for that branch only.
func (r *Router) evaluateHardDetectors(attachments []model.Attachment) map[string]bool {
	results := make(map[string]bool)
	for _, b := range r.registry.All() {
		if b.HardDetector == nil {
			continue
		}
		results[b.ID] = r.safeDetect(b, attachments)
	}
	return results
}

func (r *Router) safeDetect(b *branch.Branch, attachments []model.Attachment) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Warn("hard detector panicked",
				zap.String("branch", b.ID), zap.Any("panic", rec))
			matched = false
		}
	}()
	return b.HardDetector(attachments, r.pdf)
}

func (r *Router) forcedBranchID(msg model.IngestedEmail, detectorResults map[string]bool) (string, string) {
	if r.cfg.AdHocRulesEnabled {
		firstPages := branch.CombinedFirstPageText(msg.Attachments, r.pdf)
		for _, rule := range adHocRules {
			if rule.match(msg, firstPages) {
				return rule.branchID, rule.reason
			}
		}
		for _, rule := range r.extraRules {
			if rule.match(msg, firstPages) && r.registry.Has(rule.branchID) {
				return rule.branchID, rule.reason
			}
		}
	}
	for _, b := range r.registry.All() {
		if detectorResults[b.ID] {
			return b.ID, "hard_detector:" + b.ID
		}
	}
	return "", ""
}

func (r *Router) buildSystemPrompt() string {
	var lines []string
	for _, b := range r.registry.All() {
		lines = append(lines, fmt.Sprintf("- %s: %s", b.ID, b.Description))
	}
	return "You are a routing classifier for email extraction branches. " +
		"Choose exactly one branch_id from the allowed list.\n\n" +
		"Allowed branch IDs:\n" +
		strings.Join(lines, "\n") + "\n" +
		"- unknown: use this when no branch is a reliable match.\n\n" +
		"Return strict JSON only with this schema:\n" +
		`{"branch_id":"<allowed id or unknown>","confidence":0.0,"reason":"short reason"}` + "\n\n" +
		"Rules:\n" +
		"1. branch_id must be one of the listed IDs or unknown.\n" +
		"2. confidence must be a float from 0.0 to 1.0.\n" +
		"3. If momax_bg_detector is true in the input, return branch_id=\"momax_bg\" and confidence=1.0.\n" +
		"4. If uncertain, return branch_id=\"unknown\" with low confidence."
}

func truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func (r *Router) buildUserText(msg model.IngestedEmail, detectorResults map[string]bool) string {
	type attachmentInfo struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
		SizeBytes   int    `json:"size_bytes"`
	}
	type pdfPreview struct {
		Filename      string `json:"filename"`
		FirstPageText string `json:"first_page_text"`
	}

	var attachments []attachmentInfo
	var previews []pdfPreview
	for _, a := range msg.Attachments {
		attachments = append(attachments, attachmentInfo{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			SizeBytes:   len(a.Data),
		})
		if !a.IsPDF() {
			continue
		}
		text, err := r.pdf.FirstPageText(a.Data)
		if err != nil {
			text = fmt.Sprintf("[pdf preview unavailable: %v]", err)
		}
		text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
		previews = append(previews, pdfPreview{
			Filename:      a.Filename,
			FirstPageText: truncate(text, r.cfg.MaxPDFPreviewChars),
		})
	}

	payload := map[string]any{
		"message_id":              msg.MessageID,
		"received_at":             msg.ReceivedAt,
		"subject":                 msg.Subject,
		"sender":                  msg.Sender,
		"email_body_preview":      truncate(msg.BodyText, r.cfg.MaxBodyChars),
		"attachments":             attachments,
		"pdf_first_page_previews": previews,
		"momax_bg_detector":       detectorResults[branch.MomaxBGID],
		"hard_detectors":          detectorResults,
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func parseClassifierResponse(text string, registry *branch.Registry) (string, float64, string, error) {
	parsed, err := llm.ParseJSONObject(text)
	if err != nil {
		return "", 0, "", err
	}

	branchIDRaw, ok := parsed["branch_id"].(string)
	if !ok {
		return "", 0, "", eris.New("router: response missing string branch_id")
	}
	branchID := strings.TrimSpace(branchIDRaw)

	confidence, ok := parsed["confidence"].(float64)
	if !ok {
		return "", 0, "", eris.New("router: response confidence is not a float")
	}
	if confidence < 0.0 || confidence > 1.0 {
		return "", 0, "", eris.New("router: response confidence out of range")
	}

	reason, _ := parsed["reason"].(string)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "no_reason"
	}

	if branchID != "unknown" && !registry.Has(branchID) {
		return "unknown", confidence, "unknown_branch:" + branchID, nil
	}

	return branchID, confidence, reason, nil
}

// FormatWarning renders a routing decision as a record warning line.
func FormatWarning(route model.RouteDecision) string {
	forced := "false"
	if route.ForcedByDetector {
		forced = "true"
	}
	fallback := "false"
	if route.UsedFallback {
		fallback = "true"
	}
	base := fmt.Sprintf("Routing: selected=%s confidence=%.2f forced=%s fallback=%s",
		route.SelectedBranchID, route.Confidence, forced, fallback)
	if route.UsedFallback && route.Reason != "" {
		return fmt.Sprintf("%s (%s)", base, route.Reason)
	}
	return base
}
