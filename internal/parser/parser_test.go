package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jobtrackr/jobtrackr/internal/ai"
	"github.com/jobtrackr/jobtrackr/internal/htmlfetch"
)

type stubFetcher struct {
	page string
	err  error
	got  string
}

func (s *stubFetcher) FetchForLLM(ctx context.Context, url string) (string, error) {
	s.got = url
	return s.page, s.err
}

type stubLLM struct {
	content string
	err     error
	prompt  string
}

func (s *stubLLM) ChatCompletion(ctx context.Context, messages []ai.Message, opts ai.Options) (string, error) {
	for _, m := range messages {
		if m.Role == ai.RoleUser {
			s.prompt = m.Content
		}
	}
	return s.content, s.err
}

func pageFixture() string {
	return `{"@type":"JobPosting","title":"Senior Engineer","hiringOrganization":{"name":"Acme"}}` + "\n" +
		"title: Senior Engineer - Acme\n" +
		strings.Repeat("Acme is hiring a Senior Engineer to build things. ", 10)
}

func TestParseJobFromURL(t *testing.T) {
	fetcher := &stubFetcher{page: pageFixture()}
	llm := &stubLLM{content: `{
		"job_title": "Senior Engineer",
		"company_name": "Acme",
		"company_logo": "",
		"location_city": "",
		"country": "",
		"number_of_applicants": 0,
		"job_description": ""
	}`}

	got, err := New(fetcher, llm).ParseJobFromURL(context.Background(), "https://example.com/jobs/1#apply")
	if err != nil {
		t.Fatal(err)
	}
	if got.JobTitle != "Senior Engineer" || got.CompanyName != "Acme" {
		t.Fatalf("posting = %+v", got)
	}
	if got.CompanyLogo != "" || got.LocationCity != "" || got.Country != "" ||
		got.NumberOfApplicants != 0 || got.JobDescription != "" {
		t.Fatalf("defaults not preserved: %+v", got)
	}
	// The fetcher must see the canonical (fragment-free) URL.
	if fetcher.got != "https://example.com/jobs/1" {
		t.Errorf("fetched %q, want normalized URL", fetcher.got)
	}
	// The compressed page must be embedded in the user prompt.
	if !strings.Contains(llm.prompt, `"JobPosting"`) {
		t.Errorf("page content missing from prompt")
	}
}

func TestParseJobFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: &htmlfetch.FetchError{Status: 403, Err: errors.New("blocked")}}

	_, err := New(fetcher, &stubLLM{}).ParseJobFromURL(context.Background(), "https://example.com/jobs/1")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != KindFetch {
		t.Fatalf("err = %v, want fetch ParseError", err)
	}
	if !strings.Contains(pe.Message, "403") {
		t.Errorf("message lacks HTTP status: %q", pe.Message)
	}
	if IsRateLimited(err) {
		t.Error("fetch failure misclassified as rate limited")
	}
}

func TestParseJobThinContent(t *testing.T) {
	fetcher := &stubFetcher{page: "almost nothing here"}

	_, err := New(fetcher, &stubLLM{}).ParseJobFromURL(context.Background(), "https://example.com/jobs/1")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != KindThinContent {
		t.Fatalf("err = %v, want thin-content ParseError", err)
	}
}

func TestParseJobRateLimited(t *testing.T) {
	fetcher := &stubFetcher{page: pageFixture()}
	llm := &stubLLM{err: &ai.APIError{Status: 429, Body: "rate limit exceeded"}}

	_, err := New(fetcher, llm).ParseJobFromURL(context.Background(), "https://example.com/jobs/1")
	if !IsRateLimited(err) {
		t.Fatalf("err = %v, want rate-limited classification", err)
	}
}

func TestParseJobInferenceFailure(t *testing.T) {
	fetcher := &stubFetcher{page: pageFixture()}
	llm := &stubLLM{err: &ai.APIError{Status: 500, Body: "upstream broke"}}

	_, err := New(fetcher, llm).ParseJobFromURL(context.Background(), "https://example.com/jobs/1")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != KindInference {
		t.Fatalf("err = %v, want inference ParseError", err)
	}
}

func TestParseJobBadJSON(t *testing.T) {
	fetcher := &stubFetcher{page: pageFixture()}
	llm := &stubLLM{content: "Sorry, I cannot parse this page."}

	_, err := New(fetcher, llm).ParseJobFromURL(context.Background(), "https://example.com/jobs/1")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != KindBadJSON {
		t.Fatalf("err = %v, want bad-JSON ParseError", err)
	}
}

func TestParseJobEmptyExtraction(t *testing.T) {
	fetcher := &stubFetcher{page: pageFixture()}
	llm := &stubLLM{content: `{}`}

	_, err := New(fetcher, llm).ParseJobFromURL(context.Background(), "https://example.com/jobs/1")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != KindEmptyExtraction {
		t.Fatalf("err = %v, want empty-extraction ParseError", err)
	}
}

func TestParseJobMissingTitle(t *testing.T) {
	fetcher := &stubFetcher{page: pageFixture()}
	llm := &stubLLM{content: `{"company_name": "Acme", "job_title": ""}`}

	_, err := New(fetcher, llm).ParseJobFromURL(context.Background(), "https://example.com/jobs/1")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != KindMissingTitle {
		t.Fatalf("err = %v, want missing-title ParseError", err)
	}
}
