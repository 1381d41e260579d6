// Package genai wraps the generative text provider behind a
// timeout/retry/fallback contract.
//
// Generate always returns a usable string: the trimmed provider output on
// success, or the caller-supplied fallback text plus a machine-readable
// fallback code on failure. Empty provider output counts as failure; an
// interactive installation must never render a blank utterance.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Retry and timeout defaults for interactive exhibit latency.
const (
	// DefaultAttempts is the total number of provider attempts per call.
	DefaultAttempts = 2
	// DefaultBackoff is the fixed delay between attempts.
	DefaultBackoff = 500 * time.Millisecond
	// DefaultTimeout bounds a single provider attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultModel is used when a request does not name a model.
	DefaultModel = "gpt-4o-mini"
)

// Fallback codes form the closed failure taxonomy. The caller-visible
// contract only distinguishes success vs. fallback; codes exist for
// observability.
const (
	FallbackTimeout       = "timeout"
	FallbackRateLimit     = "rate_limit"
	FallbackConnection    = "connection"
	FallbackAuth          = "auth"
	FallbackEmptyResponse = "empty_response"
	FallbackOther         = "other"
)

// ErrNoChoicesReturned indicates the provider returned an empty choice list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openAIChatService adapts the OpenAI SDK to chatService.
type openAIChatService struct {
	client openai.Client
}

func (s *openAIChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// GenerateRequest describes one generative call.
type GenerateRequest struct {
	Prompt    string
	Model     string
	MaxTokens int
	Fallback  string
}

// GenerateResult is the caller-visible outcome of a generative call.
type GenerateResult struct {
	Success      bool
	Text         string
	FallbackCode string
}

// Opts holds configuration for the gateway client.
type Opts struct {
	APIKey   string
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
	Audit    *AuditLogger
}

// Option configures gateway creation.
type Option func(*Opts)

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithAttempts overrides the attempt bound.
func WithAttempts(n int) Option {
	return func(o *Opts) { o.Attempts = n }
}

// WithBackoff overrides the inter-attempt delay.
func WithBackoff(d time.Duration) Option {
	return func(o *Opts) { o.Backoff = d }
}

// WithTimeout overrides the per-attempt ceiling.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithAuditLogger attaches a raw payload audit sink.
func WithAuditLogger(a *AuditLogger) Option {
	return func(o *Opts) { o.Audit = a }
}

// Client is the gateway around the generative provider.
type Client struct {
	chat     chatService
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	audit    *AuditLogger
}

// NewClient initializes a gateway client. The API key must be provided via
// options or the OPENAI_API_KEY environment is expected by the caller.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Attempts: DefaultAttempts,
		Backoff:  DefaultBackoff,
		Timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generative provider API key not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:     &openAIChatService{client: cli},
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
		timeout:  cfg.Timeout,
		audit:    cfg.Audit,
	}, nil
}

// Generate runs the provider call with the configured retry, timeout, and
// fallback semantics. The returned Text is always non-empty as long as the
// request carries fallback text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) GenerateResult {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	var lastCode string
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				c.audit.Log(AuditRecord{Model: model, Prompt: req.Prompt, Error: ctx.Err().Error(), Attempt: attempt})
				return GenerateResult{Success: false, Text: req.Fallback, FallbackCode: FallbackTimeout}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := c.callOnce(attemptCtx, params)
		cancel()

		if err == nil {
			c.audit.Log(AuditRecord{Model: model, Prompt: req.Prompt, Response: text, Attempt: attempt})
			slog.Debug("genai.Generate succeeded", "model", model, "attempt", attempt, "chars", len(text))
			return GenerateResult{Success: true, Text: text}
		}

		lastCode = classifyFailure(err)
		c.audit.Log(AuditRecord{Model: model, Prompt: req.Prompt, Error: err.Error(), Attempt: attempt})
		slog.Warn("genai.Generate attempt failed", "model", model, "attempt", attempt, "code", lastCode, "error", err)
	}

	slog.Error("genai.Generate exhausted attempts, using fallback", "model", model, "attempts", c.attempts, "code", lastCode)
	return GenerateResult{Success: false, Text: req.Fallback, FallbackCode: lastCode}
}

// callOnce performs a single provider attempt, treating empty output as
// failure.
func (c *Client) callOnce(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoChoicesReturned
	}
	return text, nil
}

// classifyFailure maps a provider error onto the closed fallback taxonomy.
func classifyFailure(err error) string {
	if errors.Is(err, ErrNoChoicesReturned) {
		return FallbackEmptyResponse
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FallbackTimeout
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return FallbackRateLimit
		case 401, 403:
			return FallbackAuth
		}
		return FallbackOther
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return FallbackTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "refused") || strings.Contains(msg, "no such host"):
		return FallbackConnection
	default:
		return FallbackOther
	}
}
