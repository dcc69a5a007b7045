package router

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
	"github.com/furnbridge/orderdesk/pkg/llm"
)

// fakeLLM returns canned classifier responses.
type fakeLLM struct {
	classifyResponse string
	classifyErr      error
	classifyCalls    int
}

func (f *fakeLLM) Extract(context.Context, llm.ExtractRequest) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLLM) Classify(_ context.Context, _, _ string) (string, error) {
	f.classifyCalls++
	return f.classifyResponse, f.classifyErr
}

func (f *fakeLLM) Verify(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

// fakePDFText maps attachment payloads (as strings) to first-page text.
type fakePDFText struct {
	texts map[string]string
}

func (f *fakePDFText) FirstPageText(data []byte) (string, error) {
	return f.texts[string(data)], nil
}

func (f *fakePDFText) PageTexts(data []byte) ([]string, error) {
	text, err := f.FirstPageText(data)
	if err != nil {
		return nil, err
	}
	return []string{text}, nil
}

func testConfig() config.RouterConfig {
	return config.RouterConfig{
		Enabled:            true,
		MinConfidence:      0.75,
		MaxBodyChars:       4000,
		MaxPDFPreviewChars: 1500,
		DefaultBranchID:    branch.DefaultBranchID,
		AdHocRulesEnabled:  true,
		OperatorMailMarker: "bestellung@furnbridge.example",
	}
}

func testMessage() model.IngestedEmail {
	return model.IngestedEmail{
		MessageID:  "routing_test",
		ReceivedAt: time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC),
		Subject:    "Routing test",
		Sender:     "test@example.com",
		BodyText:   "Body",
	}
}

func newTestRouter(client llm.Client, pdf branch.PDFText, cfg config.RouterConfig) *Router {
	return New(branch.NewRegistry(), client, pdf, cfg)
}

func TestRouteHighConfidenceBranch(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{classifyResponse: `{"branch_id":"porta","confidence":0.99,"reason":"matched"}`}
	r := newTestRouter(client, &fakePDFText{}, testConfig())

	route := r.Route(context.Background(), testMessage())

	assert.Equal(t, branch.PortaID, route.SelectedBranchID)
	assert.False(t, route.UsedFallback)
	assert.False(t, route.ForcedByDetector)
	assert.InDelta(t, 0.99, route.Confidence, 0.001)
}

func TestRouteLowConfidenceFallsBack(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{classifyResponse: `{"branch_id":"porta","confidence":0.4,"reason":"weak"}`}
	r := newTestRouter(client, &fakePDFText{}, testConfig())

	route := r.Route(context.Background(), testMessage())

	assert.Equal(t, branch.DefaultBranchID, route.SelectedBranchID)
	assert.True(t, route.UsedFallback)
	assert.Equal(t, "low confidence", route.Reason)
}

func TestRouteUnknownFallsBack(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{classifyResponse: `{"branch_id":"unknown","confidence":0.3,"reason":"unsure"}`}
	r := newTestRouter(client, &fakePDFText{}, testConfig())

	route := r.Route(context.Background(), testMessage())

	assert.Equal(t, branch.DefaultBranchID, route.SelectedBranchID)
	assert.True(t, route.UsedFallback)
	assert.Equal(t, "unknown", route.Reason)
}

func TestRouteMalformedClassifierResponse(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{classifyResponse: "not-json"}
	r := newTestRouter(client, &fakePDFText{}, testConfig())

	route := r.Route(context.Background(), testMessage())

	assert.Equal(t, branch.DefaultBranchID, route.SelectedBranchID)
	assert.True(t, route.UsedFallback)
	assert.Equal(t, "unknown", route.Reason)
	assert.Equal(t, "unknown", route.ClassifierBranchID)
}

func TestRouteClassifierErrorFallsBack(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{classifyErr: errors.New("api down")}
	r := newTestRouter(client, &fakePDFText{}, testConfig())

	route := r.Route(context.Background(), testMessage())

	assert.Equal(t, branch.DefaultBranchID, route.SelectedBranchID)
	assert.True(t, route.UsedFallback)
}

func TestRouteUnlistedBranchFromClassifier(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{classifyResponse: `{"branch_id":"ikea","confidence":0.95,"reason":"guess"}`}
	r := newTestRouter(client, &fakePDFText{}, testConfig())

	route := r.Route(context.Background(), testMessage())

	assert.Equal(t, branch.DefaultBranchID, route.SelectedBranchID)
	assert.True(t, route.UsedFallback)
	assert.Equal(t, "unknown", route.ClassifierBranchID)
}

func TestRouteOperatorMailMarkerSkipsClassifier(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{classifyResponse: `{"branch_id":"porta","confidence":0.99,"reason":"matched"}`}
	r := newTestRouter(client, &fakePDFText{}, testConfig())

	msg := testMessage()
	msg.BodyText = "Weitergeleitet von Bestellung@furnbridge.example am Montag"

	route := r.Route(context.Background(), msg)

	assert.Equal(t, branch.DefaultBranchID, route.SelectedBranchID)
	assert.True(t, route.ForcedByDetector)
	assert.False(t, route.UsedFallback)
	assert.Equal(t, "operator_mail_marker", route.Reason)
	assert.Zero(t, client.classifyCalls)
}

func TestRouteSenderDomainForcesPorta(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{classifyResponse: `{"branch_id":"unknown","confidence":0.1,"reason":"unsure"}`}
	r := newTestRouter(client, &fakePDFText{}, testConfig())

	msg := testMessage()
	msg.Sender = "service@porta.de"
	msg.Attachments = []model.Attachment{
		{Filename: "order.pdf", ContentType: "application/pdf", Data: []byte("p")},
	}

	route := r.Route(context.Background(), msg)

	assert.Equal(t, branch.PortaID, route.SelectedBranchID)
	assert.True(t, route.ForcedByDetector)
	assert.False(t, route.UsedFallback)
	assert.Equal(t, "sender_domain:porta.de", route.Reason)
	assert.Zero(t, client.classifyCalls)
}

func TestRouteHardDetectorForcesMomaxBG(t *testing.T) {
	t.Parallel()

	bgText := strings.Join([]string{
		"MOEMAX BULGARIA",
		"MOMAX - ORDER",
		"VARNA - 88801711/12.12.25",
		"Term for delivery: 20.03.26",
	}, "\n")

	client := &fakeLLM{classifyResponse: `{"branch_id":"unknown","confidence":0.1,"reason":"unsure"}`}
	pdf := &fakePDFText{texts: map[string]string{"bg": bgText}}
	r := newTestRouter(client, pdf, testConfig())

	msg := testMessage()
	msg.Attachments = []model.Attachment{
		{Filename: "order.pdf", ContentType: "application/pdf", Data: []byte("bg")},
	}

	route := r.Route(context.Background(), msg)

	assert.Equal(t, branch.MomaxBGID, route.SelectedBranchID)
	assert.True(t, route.ForcedByDetector)
	assert.Equal(t, "hard_detector:momax_bg", route.Reason)
}

func TestRouteRouterDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Enabled = false
	client := &fakeLLM{}
	r := newTestRouter(client, &fakePDFText{}, cfg)

	route := r.Route(context.Background(), testMessage())

	assert.Equal(t, branch.DefaultBranchID, route.SelectedBranchID)
	assert.True(t, route.UsedFallback)
	assert.Equal(t, "router_disabled", route.Reason)
	assert.Zero(t, client.classifyCalls)
}

func TestParseClassifierResponse(t *testing.T) {
	t.Parallel()

	reg := branch.NewRegistry()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		id, conf, reason, err := parseClassifierResponse(
			`{"branch_id":"braun","confidence":0.8,"reason":"ok"}`, reg)
		require.NoError(t, err)
		assert.Equal(t, branch.BraunID, id)
		assert.InDelta(t, 0.8, conf, 0.001)
		assert.Equal(t, "ok", reason)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		t.Parallel()
		_, _, _, err := parseClassifierResponse(
			`{"branch_id":"braun","confidence":1.5,"reason":"ok"}`, reg)
		assert.Error(t, err)
	})

	t.Run("missing branch id", func(t *testing.T) {
		t.Parallel()
		_, _, _, err := parseClassifierResponse(`{"confidence":0.9}`, reg)
		assert.Error(t, err)
	})

	t.Run("empty reason defaults", func(t *testing.T) {
		t.Parallel()
		_, _, reason, err := parseClassifierResponse(
			`{"branch_id":"unknown","confidence":0.2,"reason":""}`, reg)
		require.NoError(t, err)
		assert.Equal(t, "no_reason", reason)
	})
}

func TestFormatWarning(t *testing.T) {
	t.Parallel()

	route := model.RouteDecision{
		SelectedBranchID: branch.PortaID,
		Confidence:       0.9,
		ForcedByDetector: false,
		UsedFallback:     false,
	}
	assert.Equal(t,
		"Routing: selected=porta confidence=0.90 forced=false fallback=false",
		FormatWarning(route))

	route.SelectedBranchID = branch.DefaultBranchID
	route.UsedFallback = true
	route.Reason = "low confidence"
	route.Confidence = 0.4
	assert.Equal(t,
		"Routing: selected=xxxlutz_default confidence=0.40 forced=false fallback=true (low confidence)",
		FormatWarning(route))
}
