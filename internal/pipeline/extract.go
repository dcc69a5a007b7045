package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/branch"
	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/pkg/llm"
)

// buildEmailContext assembles the text block sent alongside the attachment
// images: message metadata, the (possibly truncated) body and the digital
// text of each rendered PDF page.
func buildEmailContext(msg model.IngestedEmail, bodyText string, pageTexts map[string]string) string {
	var sb strings.Builder
	sb.WriteString("=== EMAIL METADATA ===\n")
	fmt.Fprintf(&sb, "message_id: %s\n", msg.MessageID)
	fmt.Fprintf(&sb, "received_at: %s\n", msg.ReceivedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "subject: %s\n", msg.Subject)
	fmt.Fprintf(&sb, "sender: %s\n", msg.Sender)
	sb.WriteString("\n=== EMAIL BODY ===\n")
	sb.WriteString(bodyText)
	sb.WriteString("\n")

	if len(pageTexts) > 0 {
		sb.WriteString("\n=== DIGITAL PDF TEXT (per attached page image) ===\n")
		for _, page := range orderedPageNames(pageTexts) {
			fmt.Fprintf(&sb, "--- %s ---\n%s\n", page, pageTexts[page])
		}
	}
	return sb.String()
}

// extractWithRetry runs the model extraction with a fixed retry budget. The
// returned map is the parsed raw order payload; a non-nil error means every
// attempt failed and carries the last failure.
func (p *Pipeline) extractWithRetry(
	ctx context.Context,
	msg model.IngestedEmail,
	b *branch.Branch,
	bodyText string,
	inputs preparedInputs,
) (map[string]any, error) {
	retries := p.cfg.Pipeline.ExtractRetries
	if retries < 1 {
		retries = 1
	}
	delay := time.Duration(p.cfg.Pipeline.ExtractRetryDelaySecs) * time.Second

	req := llm.ExtractRequest{
		SystemPrompt:     b.SystemPrompt,
		UserInstructions: b.BuildUserInstructions(p.cfg.Pipeline.SourcePriority),
		EmailContext:     buildEmailContext(msg, bodyText, inputs.PageTexts),
		Images:           inputs.Images,
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		text, err := p.client.Extract(ctx, req)
		if err == nil {
			var raw map[string]any
			raw, err = llm.ParseJSONObject(text)
			if err == nil {
				if b.IsMomaxBG {
					applyMomaxBGRawPolicy(raw)
				}
				return raw, nil
			}
		}
		lastErr = err
		zap.L().Warn("extraction attempt failed",
			zap.String("message_id", msg.MessageID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, lastErr
}

// applyMomaxBGRawPolicy blanks the extracted kom_name before normalization.
// MOMAX BG orders never carry a commission name; whatever the model read is
// branch noise, and the PDF-side shadow key goes with it.
func applyMomaxBGRawPolicy(raw map[string]any) {
	header, ok := raw["header"].(map[string]any)
	if !ok {
		return
	}
	header[model.FieldKomName] = map[string]any{
		"value":        "",
		"source":       "derived",
		"confidence":   0.0,
		"derived_from": "momax_bg_policy",
	}
	delete(header, "kom_name_pdf")
}
