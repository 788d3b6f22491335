package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one role-tagged turn of a chat-completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion call. Zero values fall back to the
// client's defaults (temperature 0 is deliberate: extraction should be
// deterministic).
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client is the inference API surface the import pipeline depends on.
type Client interface {
	ChatCompletion(ctx context.Context, messages []Message, opts Options) (string, error)
}

// APIError is returned when the inference API answers with a non-success
// status, after retries are exhausted for retryable statuses.
type APIError struct {
	Status int
	Body   string

	// retryAfter carries the server's Retry-After hint so the retry loop
	// can honor it over its own backoff schedule.
	retryAfter time.Duration
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("inference API error (status %d)", e.Status)
	}
	return fmt.Sprintf("inference API error (status %d): %s", e.Status, body)
}

// NewClient picks the Groq client when an API key is configured and falls
// back to the mock otherwise, so the server stays usable without
// credentials.
func NewClient(apiKey, model string, maxRetries int) Client {
	if apiKey == "" {
		slog.Warn("no inference API key configured, using mock AI client")
		return NewMockClient()
	}
	return NewGroqClient(apiKey, model, maxRetries)
}

// MockClient returns a fixed, well-formed extraction payload. Useful for
// local development and UI work without burning API quota.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) ChatCompletion(ctx context.Context, messages []Message, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return `{
  "company_name": "Mock Company",
  "company_logo": "",
  "job_title": "Mock Job Title",
  "location_city": "",
  "country": "",
  "number_of_applicants": 0,
  "job_description": "Set GROQ_API_KEY to extract real job postings."
}`, nil
}
