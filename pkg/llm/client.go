package llm

import (
	"context"
	"encoding/base64"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/furnbridge/orderdesk/internal/resilience"
)

// Client defines the model operations consumed by the pipeline. All three
// return free text expected to contain a JSON object, possibly wrapped in
// prose; callers are responsible for tolerant JSON recovery.
type Client interface {
	// Extract runs the full order extraction over the email context and
	// rendered attachment images.
	Extract(ctx context.Context, req ExtractRequest) (string, error)
	// Classify runs the routing classifier over a compact text payload.
	Classify(ctx context.Context, systemPrompt, userText string) (string, error)
	// Verify runs the narrow item-code verification over digital PDF text.
	Verify(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Image is one rendered attachment page sent with an extraction request.
type Image struct {
	Name      string
	MediaType string // e.g. "image/png"
	Data      []byte
}

// ExtractRequest carries everything one extraction call needs.
type ExtractRequest struct {
	SystemPrompt     string
	UserInstructions string
	EmailContext     string
	Images           []Image
}

// Config tunes the backing Anthropic client.
type Config struct {
	APIKey         string
	ExtractModel   string
	ClassifyModel  string
	VerifyModel    string
	MaxTokens      int64
	Temperature    float64
	RequestsPerMin int
}

// TokenUsage tracks token consumption of one call.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// modelPricing holds per-million-token pricing for known models.
var modelPricing = map[string][2]float64{
	// model → {input $/MTok, output $/MTok}
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-6":            {15.00, 75.00},
}

// EstimateCost computes an estimated cost in USD from a TokenUsage and model
// ID. Returns 0 for unknown models.
func (u TokenUsage) EstimateCost(model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return (float64(u.InputTokens)/1e6)*pricing[0] + (float64(u.OutputTokens)/1e6)*pricing[1]
}

// LogCost logs token usage and estimated cost with structured zap fields.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client  sdk.Client
	cfg     Config
	limiter *rate.Limiter
}

// NewClient creates an Anthropic-backed client with request-rate limiting.
func NewClient(cfg Config) Client {
	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 30
	}
	return &sdkClient{
		client:  sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}
}

func (c *sdkClient) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	blocks := []sdk.ContentBlockParamUnion{
		sdk.NewTextBlock(req.UserInstructions),
		sdk.NewTextBlock(req.EmailContext),
	}
	for _, img := range req.Images {
		mediaType := img.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		blocks = append(blocks, sdk.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(img.Data)))
	}

	return c.complete(ctx, c.cfg.ExtractModel, "extract", req.SystemPrompt, blocks)
}

func (c *sdkClient) Classify(ctx context.Context, systemPrompt, userText string) (string, error) {
	return c.complete(ctx, c.cfg.ClassifyModel, "classify", systemPrompt,
		[]sdk.ContentBlockParamUnion{sdk.NewTextBlock(userText)})
}

func (c *sdkClient) Verify(ctx context.Context, systemPrompt, userText string) (string, error) {
	return c.complete(ctx, c.cfg.VerifyModel, "verify", systemPrompt,
		[]sdk.ContentBlockParamUnion{sdk.NewTextBlock(userText)})
}

func (c *sdkClient) complete(ctx context.Context, model, phase, systemPrompt string, blocks []sdk.ContentBlockParamUnion) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "llm: rate limit wait")
	}

	maxTokens := c.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(c.cfg.Temperature),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			err = resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return "", eris.Wrapf(err, "llm: %s call", phase)
	}

	usage := TokenUsage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}
	usage.LogCost(model, phase)

	var text string
	for _, b := range msg.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}
	return text, nil
}
