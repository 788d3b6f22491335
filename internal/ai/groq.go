package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	groqEndpoint      = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel      = "llama-3.3-70b-versatile"
	defaultMaxRetries = 3

	// backoffBase doubles per attempt; the free tier enforces per-minute
	// rate limits, so the server's Retry-After hint wins when it is longer.
	backoffBase   = 500 * time.Millisecond
	backoffJitter = 250 * time.Millisecond

	// requestTimeout bounds the whole HTTP exchange independently of the
	// retry schedule.
	requestTimeout = 60 * time.Second
)

// thinkBlock matches reasoning delimiters some models emit before the JSON
// payload.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// GroqClient talks to Groq's OpenAI-compatible chat-completions endpoint.
type GroqClient struct {
	apiKey     string
	model      string
	endpoint   string
	maxRetries int
	httpClient *http.Client

	// sleep is swappable so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGroqClient(apiKey, model string, maxRetries int) *GroqClient {
	if model == "" {
		model = defaultModel
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return &GroqClient{
		apiKey:     apiKey,
		model:      model,
		endpoint:   groqEndpoint,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: requestTimeout},
		sleep:      sleepWithContext,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion calls the API with an explicit retry loop: retryable
// statuses and transport errors are re-attempted up to the retry ceiling,
// waiting max(Retry-After, exponential backoff) plus jitter between
// attempts. Everything else surfaces immediately.
func (g *GroqClient) ChatCompletion(ctx context.Context, messages []Message, opts Options) (string, error) {
	model := opts.Model
	if model == "" {
		model = g.model
	}

	body, err := json.Marshal(chatRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    opts.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
		MaxTokens:      opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, g.retryDelay(lastErr, attempt-1)); err != nil {
				return "", err
			}
		}

		content, err := g.callOnce(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (g *GroqClient) callOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &transportError{err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			Status:     resp.StatusCode,
			Body:       string(respBody),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices: %s", truncate(string(respBody), 200))
	}

	content := stripReasoning(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat response has empty content")
	}
	return content, nil
}

// retryDelay picks the wait before the next attempt. attempt is zero-based
// over completed attempts.
func (g *GroqClient) retryDelay(lastErr error, attempt int) time.Duration {
	backoff := backoffBase * (1 << attempt)
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) && apiErr.retryAfter > backoff {
		backoff = apiErr.retryAfter
	}
	return backoff + time.Duration(rand.Int63n(int64(backoffJitter)))
}

func isRetryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// transportError marks network-level failures as retryable without
// conflating them with HTTP-status errors.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "inference request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func stripReasoning(content string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(content, ""))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
