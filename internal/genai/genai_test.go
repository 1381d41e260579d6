package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go"
)

// mockChatService scripts provider outcomes per attempt.
type mockChatService struct {
	calls     int
	responses []mockResponse
}

type mockResponse struct {
	text string
	err  error
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		return openai.ChatCompletion{}, errors.New("mock exhausted")
	}
	r := m.responses[idx]
	if r.err != nil {
		return openai.ChatCompletion{}, r.err
	}
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: r.text}},
		},
	}, nil
}

func newTestClient(mock *mockChatService) *Client {
	return &Client{
		chat:     mock,
		attempts: DefaultAttempts,
		backoff:  time.Millisecond,
		timeout:  time.Second,
	}
}

func TestGenerateSuccess(t *testing.T) {
	mock := &mockChatService{responses: []mockResponse{{text: "  hello visitor  "}}}
	c := newTestClient(mock)

	res := c.Generate(context.Background(), GenerateRequest{Prompt: "greet", Fallback: "fb"})
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.Text != "hello visitor" {
		t.Errorf("expected trimmed provider text, got %q", res.Text)
	}
	if mock.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", mock.calls)
	}
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	mock := &mockChatService{responses: []mockResponse{
		{err: errors.New("connection refused")},
		{text: "second try"},
	}}
	c := newTestClient(mock)

	res := c.Generate(context.Background(), GenerateRequest{Prompt: "p", Fallback: "fb"})
	if !res.Success || res.Text != "second try" {
		t.Fatalf("expected retry success, got %+v", res)
	}
	if mock.calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", mock.calls)
	}
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	mock := &mockChatService{responses: []mockResponse{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
	}}
	c := newTestClient(mock)

	res := c.Generate(context.Background(), GenerateRequest{Prompt: "p", Fallback: "canned line"})
	if res.Success {
		t.Fatal("expected failure after exhausting attempts")
	}
	if res.Text != "canned line" {
		t.Errorf("expected fallback text, got %q", res.Text)
	}
	if res.FallbackCode != FallbackConnection {
		t.Errorf("expected connection code, got %q", res.FallbackCode)
	}
	if mock.calls != DefaultAttempts {
		t.Errorf("expected %d provider calls, got %d", DefaultAttempts, mock.calls)
	}
}

func TestGenerateEmptyResponseIsFailure(t *testing.T) {
	mock := &mockChatService{responses: []mockResponse{
		{text: "   "},
		{text: ""},
	}}
	c := newTestClient(mock)

	res := c.Generate(context.Background(), GenerateRequest{Prompt: "p", Fallback: "fb"})
	if res.Success {
		t.Fatal("whitespace-only output must count as failure")
	}
	if res.FallbackCode != FallbackEmptyResponse {
		t.Errorf("expected empty_response code, got %q", res.FallbackCode)
	}
}

func TestGenerateNoChoices(t *testing.T) {
	mock := &mockChatService{responses: []mockResponse{{err: ErrNoChoicesReturned}, {err: ErrNoChoicesReturned}}}
	c := newTestClient(mock)

	res := c.Generate(context.Background(), GenerateRequest{Prompt: "p", Fallback: "fb"})
	if res.Success || res.FallbackCode != FallbackEmptyResponse {
		t.Errorf("expected empty_response fallback, got %+v", res)
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no choices", ErrNoChoicesReturned, FallbackEmptyResponse},
		{"deadline", context.DeadlineExceeded, FallbackTimeout},
		{"canceled", context.Canceled, FallbackTimeout},
		{"timeout text", errors.New("request timeout exceeded"), FallbackTimeout},
		{"refused", errors.New("dial tcp: connection refused"), FallbackConnection},
		{"no host", errors.New("lookup api: no such host"), FallbackConnection},
		{"other", errors.New("something odd"), FallbackOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFailure(tt.err); got != tt.want {
				t.Errorf("classifyFailure(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("client creation without API key should fail")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("client creation with API key should succeed: %v", err)
	}
}
