package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furnbridge/orderdesk/internal/branch"
	"github.com/furnbridge/orderdesk/internal/config"
	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/internal/normalize"
	"github.com/furnbridge/orderdesk/internal/router"
)

var testReceivedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Router: config.RouterConfig{
			Enabled:           true,
			MinConfidence:     0.75,
			MaxBodyChars:      4000,
			DefaultBranchID:   branch.DefaultBranchID,
			AdHocRulesEnabled: true,
		},
		Pipeline: config.PipelineConfig{
			ExtractRetries:          2,
			ExtractRetryDelaySecs:   0,
			MaxEmailChars:           20000,
			MaxPDFTextCharsPerPage:  20000,
			SourcePriority:          []string{"pdf", "email", "image"},
			VerifyMinConfidence:     0.75,
			VerifyEnabled:           true,
			MaxImagesPerExtraction:  5,
			ZBCatalogLookupEnabled:  false,
			DeliveryWeekCalcEnabled: true,
			DateDayFirst:            true,
		},
	}
}

func newTestPipeline(client *mockLLM, pdf branch.PDFText, sender ReplySender) *Pipeline {
	cfg := testConfig()
	registry := branch.NewRegistry()
	rt := router.New(registry, client, pdf, cfg.Router)
	return New(cfg, rt, registry, client, pdf, nil, normalize.New(nil, nil), nil, sender)
}

func classifierPick(branchID string) string {
	return `{"branch_id": "` + branchID + `", "confidence": 0.95, "reason": "layout match"}`
}

const minimalExtraction = `{
  "header": {
    "kom_nr": {"value": "470011", "source": "pdf", "confidence": 0.95},
    "kundennummer": {"value": "51234", "source": "email", "confidence": 0.9},
    "kom_name": {"value": "Wagner", "source": "pdf", "confidence": 0.9}
  },
  "items": [
    {
      "line_no": 1,
      "artikelnummer": {"value": "74421", "source": "pdf", "confidence": 0.9},
      "modellnummer": {"value": "SWE3T", "source": "pdf", "confidence": 0.9},
      "menge": {"value": 2, "source": "pdf", "confidence": 0.9}
    }
  ],
  "status": "ok",
  "warnings": [],
  "errors": []
}`

func testMessage() model.IngestedEmail {
	return model.IngestedEmail{
		MessageID:  "msg-001",
		ReceivedAt: testReceivedAt,
		Subject:    "Bestellung Ticket Number 4711234",
		Sender:     "orders@example.com",
		BodyText:   "Bitte liefern.",
	}
}

func TestProcess(t *testing.T) {
	t.Parallel()
	client := &mockLLM{
		classifyResponse: classifierPick(branch.DefaultBranchID),
		extractResponse:  minimalExtraction,
	}
	p := newTestPipeline(client, stubPDF{}, nil)

	res, err := p.Process(context.Background(), testMessage())
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	assert.Equal(t, "msg-001", res.OutputName)
	assert.Equal(t, branch.DefaultBranchID, res.Order.Branch)
	assert.Equal(t, branch.DefaultBranchID, res.Route.SelectedBranchID)
	assert.False(t, res.Route.UsedFallback)

	assert.Equal(t, "470011", res.Order.Header.Text(model.FieldKomNr))
	assert.Equal(t, "51234", res.Order.Header.Text(model.FieldKundennummer))

	ticket := res.Order.Header.Get(model.FieldTicketNumber)
	require.NotNil(t, ticket)
	assert.Equal(t, "4711234", ticket.Text())
	assert.Equal(t, model.SourceEmail, ticket.Source)
	assert.Equal(t, 1.0, ticket.Confidence)

	var routed bool
	for _, w := range res.Order.Warnings {
		if strings.HasPrefix(w, "Routing: selected=xxxlutz_default") {
			routed = true
		}
	}
	assert.True(t, routed, "routing warning missing: %v", res.Order.Warnings)
	assert.Equal(t, 1, client.extractCalls)
}

func TestProcessExtractionExhausted(t *testing.T) {
	t.Parallel()
	client := &mockLLM{
		classifyResponse: classifierPick(branch.DefaultBranchID),
		extractErr:       errors.New("model unavailable"),
	}
	p := newTestPipeline(client, stubPDF{}, nil)

	res, err := p.Process(context.Background(), testMessage())
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	assert.Equal(t, model.StatusFailed, res.Order.Status)
	require.Len(t, res.Order.Errors, 1)
	assert.Contains(t, res.Order.Errors[0], "model unavailable")
	assert.Equal(t, 2, client.extractCalls)
	assert.Empty(t, res.Order.Items)
}

func TestProcessRoutingFallbackForcesHumanReview(t *testing.T) {
	t.Parallel()
	client := &mockLLM{
		classifyErr:     errors.New("classifier down"),
		extractResponse: minimalExtraction,
	}
	p := newTestPipeline(client, stubPDF{}, nil)

	res, err := p.Process(context.Background(), testMessage())
	require.NoError(t, err)

	assert.True(t, res.Route.UsedFallback)
	assert.True(t, res.Order.Header.Bool(model.FieldHumanReviewNeeded))
	assert.Contains(t, res.Order.Warnings, "Routing fallback: forced human_review_needed=true")
}

func TestProcessTruncatesLongBody(t *testing.T) {
	t.Parallel()
	client := &mockLLM{
		classifyResponse: classifierPick(branch.DefaultBranchID),
		extractResponse:  minimalExtraction,
	}
	p := newTestPipeline(client, stubPDF{}, nil)
	p.cfg.Pipeline.MaxEmailChars = 10

	msg := testMessage()
	msg.BodyText = strings.Repeat("x", 50)

	res, err := p.Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Contains(t, res.Order.Warnings, "Email body truncated to 10 characters.")
	assert.Contains(t, client.lastExtract.EmailContext, strings.Repeat("x", 10))
	assert.NotContains(t, client.lastExtract.EmailContext, strings.Repeat("x", 11))
}

func TestProcessSendsReplyNeededMail(t *testing.T) {
	t.Parallel()

	withReply := strings.Replace(minimalExtraction,
		`"kom_name": {"value": "Wagner", "source": "pdf", "confidence": 0.9}`,
		`"kom_name": {"value": "Wagner", "source": "pdf", "confidence": 0.9},
    "reply_needed": {"value": true, "source": "email", "confidence": 0.9}`, 1)

	t.Run("sent", func(t *testing.T) {
		t.Parallel()
		client := &mockLLM{
			classifyResponse: classifierPick(branch.DefaultBranchID),
			extractResponse:  withReply,
		}
		sender := &stubSender{to: "sachbearbeitung@example.com"}
		p := newTestPipeline(client, stubPDF{}, sender)

		res, err := p.Process(context.Background(), testMessage())
		require.NoError(t, err)
		assert.Equal(t, 1, sender.calls)
		assert.Contains(t, res.Order.Warnings, "Auto-reply email sent to sachbearbeitung@example.com.")
	})

	t.Run("failure becomes warning", func(t *testing.T) {
		t.Parallel()
		client := &mockLLM{
			classifyResponse: classifierPick(branch.DefaultBranchID),
			extractResponse:  withReply,
		}
		sender := &stubSender{err: errors.New("smtp refused")}
		p := newTestPipeline(client, stubPDF{}, sender)

		res, err := p.Process(context.Background(), testMessage())
		require.NoError(t, err)
		var failed bool
		for _, w := range res.Order.Warnings {
			if strings.HasPrefix(w, "Auto-reply email failed:") {
				failed = true
			}
		}
		assert.True(t, failed, "failure warning missing: %v", res.Order.Warnings)
	})

	t.Run("no reply needed, no send", func(t *testing.T) {
		t.Parallel()
		client := &mockLLM{
			classifyResponse: classifierPick(branch.DefaultBranchID),
			extractResponse:  minimalExtraction,
		}
		sender := &stubSender{to: "sachbearbeitung@example.com"}
		p := newTestPipeline(client, stubPDF{}, sender)

		_, err := p.Process(context.Background(), testMessage())
		require.NoError(t, err)
		assert.Equal(t, 0, sender.calls)
	})
}

func TestExtractTicketNumber(t *testing.T) {
	t.Parallel()
	cases := []struct {
		subject string
		want    string
	}{
		{"Ticket Number 4711234", "4711234"},
		{"ticket number: 4711234 Nachtrag", "4711234"},
		{"TICKET NUMBER #4711234", "4711234"},
		{"Ticket Number 471123", ""},
		{"Ticket Number 47112345", ""},
		{"Bestellung KW 12", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractTicketNumber(tc.subject), "subject %q", tc.subject)
	}
}

func TestSafeName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "msg-001", safeName("msg-001"))
	assert.Equal(t, "abc_example.com", safeName("<abc@example.com>"))
	assert.Equal(t, "message", safeName("///"))
	assert.Equal(t, "message", safeName(""))
}

func TestApplyMomaxBGRawPolicy(t *testing.T) {
	t.Parallel()
	raw := map[string]any{
		"header": map[string]any{
			"kom_name":     map[string]any{"value": "SHOULD GO", "source": "pdf", "confidence": 0.9},
			"kom_name_pdf": map[string]any{"value": "ALSO GONE", "source": "pdf", "confidence": 0.9},
			"kom_nr":       map[string]any{"value": "12345", "source": "pdf", "confidence": 0.9},
		},
	}
	applyMomaxBGRawPolicy(raw)

	header := raw["header"].(map[string]any)
	komName := header["kom_name"].(map[string]any)
	assert.Equal(t, "", komName["value"])
	assert.Equal(t, "derived", komName["source"])
	assert.Equal(t, "momax_bg_policy", komName["derived_from"])
	assert.NotContains(t, header, "kom_name_pdf")
	assert.Contains(t, header, "kom_nr")
}

func TestPrepareInputs(t *testing.T) {
	t.Parallel()

	t.Run("image attachments pass through", func(t *testing.T) {
		t.Parallel()
		p := newTestPipeline(&mockLLM{}, stubPDF{}, nil)
		msg := testMessage()
		msg.Attachments = []model.Attachment{
			{Filename: "furnplan.jpg", ContentType: "image/jpeg", Data: []byte{1}},
			{Filename: "scan.png", ContentType: "image/png; name=scan.png", Data: []byte{2}},
		}

		var warnings []string
		inputs := p.prepareInputs(context.Background(), msg, &warnings)
		require.Len(t, inputs.Images, 2)
		assert.Equal(t, "image/jpeg", inputs.Images[0].MediaType)
		assert.Equal(t, "image/png", inputs.Images[1].MediaType)
		assert.Empty(t, warnings)
	})

	t.Run("image count cap yields warning", func(t *testing.T) {
		t.Parallel()
		p := newTestPipeline(&mockLLM{}, stubPDF{}, nil)
		p.cfg.Pipeline.MaxImagesPerExtraction = 1
		msg := testMessage()
		msg.Attachments = []model.Attachment{
			{Filename: "a.png", ContentType: "image/png", Data: []byte{1}},
			{Filename: "b.png", ContentType: "image/png", Data: []byte{2}},
		}

		var warnings []string
		inputs := p.prepareInputs(context.Background(), msg, &warnings)
		assert.Len(t, inputs.Images, 1)
		assert.Contains(t, warnings, "Image count truncated from 2 to 1.")
	})

	t.Run("scanned pdf without text warns", func(t *testing.T) {
		t.Parallel()
		p := newTestPipeline(&mockLLM{}, stubPDF{pages: []string{"", "  "}}, nil)
		msg := testMessage()
		msg.Attachments = []model.Attachment{
			{Filename: "order.pdf", ContentType: "application/pdf", Data: []byte{1}},
		}

		var warnings []string
		inputs := p.prepareInputs(context.Background(), msg, &warnings)
		assert.Empty(t, inputs.Images)
		assert.Contains(t, warnings, "No digital PDF text extracted for order.pdf; using images only.")
	})

	t.Run("long page text is capped per page", func(t *testing.T) {
		t.Parallel()
		p := newTestPipeline(&mockLLM{}, stubPDF{pages: []string{
			"kurz",
			strings.Repeat("x", 40),
		}}, nil)
		p.cfg.Pipeline.MaxPDFTextCharsPerPage = 10
		msg := testMessage()
		msg.Attachments = []model.Attachment{
			{Filename: "order.pdf", ContentType: "application/pdf", Data: []byte{1}},
		}

		var warnings []string
		p.prepareInputs(context.Background(), msg, &warnings)
		assert.Contains(t, warnings, "PDF text truncated for order.pdf page 2 to 10 chars")
		assert.NotContains(t, warnings, "PDF text truncated for order.pdf page 1 to 10 chars")
	})

	t.Run("zero page text cap disables digital text", func(t *testing.T) {
		t.Parallel()
		p := newTestPipeline(&mockLLM{}, stubPDF{pages: []string{"Seite eins"}}, nil)
		p.cfg.Pipeline.MaxPDFTextCharsPerPage = 0
		msg := testMessage()
		msg.Attachments = []model.Attachment{
			{Filename: "order.pdf", ContentType: "application/pdf", Data: []byte{1}},
		}

		var warnings []string
		inputs := p.prepareInputs(context.Background(), msg, &warnings)
		assert.Empty(t, inputs.PageTexts)
		assert.Empty(t, warnings)
	})
}

func TestBuildEmailContext(t *testing.T) {
	t.Parallel()
	msg := testMessage()
	ctx := buildEmailContext(msg, "Bitte liefern.", map[string]string{
		"order-2.png": "Seite zwei",
		"order-1.png": "Seite eins",
	})

	assert.Contains(t, ctx, "message_id: msg-001")
	assert.Contains(t, ctx, "subject: Bestellung Ticket Number 4711234")
	assert.Contains(t, ctx, "Bitte liefern.")
	// Pages appear in page order.
	assert.Less(t, strings.Index(ctx, "order-1.png"), strings.Index(ctx, "order-2.png"))
}
