package pipeline

import (
	"context"

	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/pkg/llm"
)

// mockLLM scripts the three model operations for pipeline tests.
type mockLLM struct {
	classifyResponse string
	classifyErr      error
	extractResponse  string
	extractErr       error
	extractCalls     int
	verifyResponse   string
	verifyErr        error

	lastExtract llm.ExtractRequest
	lastVerify  string
}

func (m *mockLLM) Extract(_ context.Context, req llm.ExtractRequest) (string, error) {
	m.extractCalls++
	m.lastExtract = req
	if m.extractErr != nil {
		return "", m.extractErr
	}
	return m.extractResponse, nil
}

func (m *mockLLM) Classify(context.Context, string, string) (string, error) {
	if m.classifyErr != nil {
		return "", m.classifyErr
	}
	return m.classifyResponse, nil
}

func (m *mockLLM) Verify(_ context.Context, _ string, userText string) (string, error) {
	m.lastVerify = userText
	if m.verifyErr != nil {
		return "", m.verifyErr
	}
	return m.verifyResponse, nil
}

// stubPDF serves fixed per-page digital text.
type stubPDF struct {
	pages []string
	err   error
}

func (s stubPDF) FirstPageText([]byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if len(s.pages) == 0 {
		return "", nil
	}
	return s.pages[0], nil
}

func (s stubPDF) PageTexts([]byte) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pages, nil
}

// stubSender records the reply it was asked to send.
type stubSender struct {
	to    string
	err   error
	calls int
}

func (s *stubSender) SendReplyNeeded(_ context.Context, _ model.IngestedEmail, _ *model.Order) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.to, nil
}
