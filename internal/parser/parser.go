// Package parser composes URL normalization, tiered fetching, LLM
// extraction, and coercion into the job-import pipeline. Every stage can
// fail; each failure surfaces as one ParseError whose Kind tells the API
// layer how to map it.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jobtrackr/jobtrackr/internal/ai"
	"github.com/jobtrackr/jobtrackr/internal/htmlfetch"
	"github.com/jobtrackr/jobtrackr/internal/jobposting"
	"github.com/jobtrackr/jobtrackr/internal/observability"
	"github.com/jobtrackr/jobtrackr/internal/urlutil"
)

// minPageContentLen rejects payloads too thin to hold a posting; such pages
// usually need client-side rendering that neither tier achieved.
const minPageContentLen = 100

// Kind classifies a pipeline failure.
type Kind string

const (
	KindFetch           Kind = "fetch"
	KindThinContent     Kind = "thin_content"
	KindRateLimited     Kind = "rate_limited"
	KindInference       Kind = "inference"
	KindBadJSON         Kind = "bad_json"
	KindEmptyExtraction Kind = "empty_extraction"
	KindMissingTitle    Kind = "missing_title"
)

// ParseError wraps any pipeline failure. Message is safe for direct user
// display; Err keeps the cause chain for logs.
type ParseError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is a pipeline failure caused by
// inference-API rate limiting, so the caller can answer 429 instead of 502.
func IsRateLimited(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == KindRateLimited
}

// HTMLFetcher is the retrieval surface the parser depends on.
type HTMLFetcher interface {
	FetchForLLM(ctx context.Context, url string) (string, error)
}

type Parser struct {
	fetcher HTMLFetcher
	llm     ai.Client
	llmOpts ai.Options
}

func New(fetcher HTMLFetcher, llm ai.Client) *Parser {
	return &Parser{
		fetcher: fetcher,
		llm:     llm,
		// Temperature 0 keeps extraction deterministic; the output cap
		// leaves room for long descriptions without unbounded spend.
		llmOpts: ai.Options{Temperature: 0, MaxTokens: 2048},
	}
}

// ParseJobFromURL runs the full pipeline for one posting URL.
func (p *Parser) ParseJobFromURL(ctx context.Context, rawURL string) (*jobposting.JobPosting, error) {
	canonical := urlutil.Normalize(rawURL)

	page, err := p.fetcher.FetchForLLM(ctx, canonical)
	if err != nil {
		return nil, p.fail(fetchFailure(err))
	}
	observability.IncPagesFetched()
	if len(strings.TrimSpace(page)) < minPageContentLen {
		return nil, p.fail(&ParseError{
			Kind:    KindThinContent,
			Message: "The page returned too little content to analyze. It may require JavaScript rendering or is not a job posting.",
		})
	}

	observability.IncAICall("parser")
	raw, err := p.llm.ChatCompletion(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: fmt.Sprintf(userPromptTemplate, page)},
	}, p.llmOpts)
	if err != nil {
		return nil, p.fail(inferenceFailure(err))
	}

	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, p.fail(&ParseError{
			Kind:    KindBadJSON,
			Message: "The AI returned invalid JSON for this page. The page format may be unsupported.",
			Err:     err,
		})
	}

	posting := jobposting.Coerce(payload)
	if posting == nil {
		return nil, p.fail(&ParseError{
			Kind:    KindEmptyExtraction,
			Message: "No job data could be extracted from this page.",
		})
	}
	if posting.JobTitle == "" {
		return nil, p.fail(&ParseError{
			Kind:    KindMissingTitle,
			Message: "This page does not appear to contain a job posting.",
		})
	}

	observability.IncJobsImported()
	slog.Info("job posting parsed", "url", canonical, "title", posting.JobTitle, "company", posting.CompanyName)
	return posting, nil
}

func (p *Parser) fail(pe *ParseError) *ParseError {
	observability.IncError(string(pe.Kind), "parser")
	slog.Warn("job parse failed", "kind", pe.Kind, "error", pe.Error())
	return pe
}

func fetchFailure(err error) *ParseError {
	var fe *htmlfetch.FetchError
	if errors.As(err, &fe) && fe.Status != 0 {
		return &ParseError{
			Kind:    KindFetch,
			Message: fmt.Sprintf("Could not fetch the job page (HTTP %d).", fe.Status),
			Err:     err,
		}
	}
	return &ParseError{
		Kind:    KindFetch,
		Message: "Could not fetch the job page.",
		Err:     err,
	}
}

func inferenceFailure(err error) *ParseError {
	var apiErr *ai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusTooManyRequests {
			return &ParseError{
				Kind:    KindRateLimited,
				Message: "The AI service is rate limited right now. Please try again in a minute.",
				Err:     err,
			}
		}
		return &ParseError{
			Kind:    KindInference,
			Message: fmt.Sprintf("The AI service failed to analyze the page (status %d).", apiErr.Status),
			Err:     err,
		}
	}
	return &ParseError{
		Kind:    KindInference,
		Message: "The AI service failed to analyze the page.",
		Err:     err,
	}
}
