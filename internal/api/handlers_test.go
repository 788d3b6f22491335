package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jobtrackr/jobtrackr/internal/jobposting"
	"github.com/jobtrackr/jobtrackr/internal/parser"
	"github.com/jobtrackr/jobtrackr/internal/store"
)

type fakeStore struct {
	listings map[string]*store.Listing
	saved    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{listings: map[string]*store.Listing{}}
}

func (f *fakeStore) GetListing(ctx context.Context, url string) (*store.Listing, error) {
	return f.listings[url], nil
}

func (f *fakeStore) SaveListing(ctx context.Context, url string, p *jobposting.JobPosting) (*store.Listing, error) {
	l := &store.Listing{ID: len(f.listings) + 1, URL: url, JobTitle: p.JobTitle, CompanyName: p.CompanyName}
	f.listings[url] = l
	f.saved = append(f.saved, url)
	return l, nil
}

func (f *fakeStore) ListListings(ctx context.Context, limit, offset int) ([]store.Listing, int, error) {
	var out []store.Listing
	for _, l := range f.listings {
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (f *fakeStore) DeleteListing(ctx context.Context, id int) error {
	return nil
}

type fakeParser struct {
	posting *jobposting.JobPosting
	err     error
	calls   int
}

func (f *fakeParser) ParseJobFromURL(ctx context.Context, url string) (*jobposting.JobPosting, error) {
	f.calls++
	return f.posting, f.err
}

func doImport(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/import", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestImportJobSuccess(t *testing.T) {
	st := newFakeStore()
	p := &fakeParser{posting: &jobposting.JobPosting{JobTitle: "Engineer", CompanyName: "Acme"}}
	s := NewServer(st, p)

	rec := doImport(t, s, `{"url": "https://example.com/jobs/1#apply"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	// Persisted under the canonical, fragment-free URL.
	if len(st.saved) != 1 || st.saved[0] != "https://example.com/jobs/1" {
		t.Fatalf("saved = %v, want canonical URL", st.saved)
	}
}

func TestImportJobInvalidURL(t *testing.T) {
	s := NewServer(newFakeStore(), &fakeParser{})
	for _, body := range []string{
		`{"url": "not a url"}`,
		`{"url": "ftp://example.com/jobs"}`,
		`{"url": ""}`,
		`not even json`,
	} {
		if rec := doImport(t, s, body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestImportJobCacheHit(t *testing.T) {
	st := newFakeStore()
	st.listings["https://example.com/jobs/1"] = &store.Listing{ID: 7, URL: "https://example.com/jobs/1", JobTitle: "Engineer"}
	p := &fakeParser{}
	s := NewServer(st, p)

	rec := doImport(t, s, `{"url": "https://example.com/jobs/1#apply"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for cache hit", rec.Code)
	}
	if p.calls != 0 {
		t.Fatalf("pipeline invoked %d times on cache hit", p.calls)
	}
	var resp struct {
		Cached bool `json:"cached"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || !resp.Cached {
		t.Fatalf("response not marked cached: %s", rec.Body.String())
	}
}

func TestImportJobRateLimited(t *testing.T) {
	p := &fakeParser{err: &parser.ParseError{
		Kind:    parser.KindRateLimited,
		Message: "The AI service is rate limited right now. Please try again in a minute.",
	}}
	s := NewServer(newFakeStore(), p)

	rec := doImport(t, s, `{"url": "https://example.com/jobs/1"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestImportJobPipelineFailure(t *testing.T) {
	p := &fakeParser{err: &parser.ParseError{
		Kind:    parser.KindFetch,
		Message: "Could not fetch the job page (HTTP 403).",
	}}
	s := NewServer(newFakeStore(), p)

	rec := doImport(t, s, `{"url": "https://example.com/jobs/1"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "HTTP 403") {
		t.Fatalf("user message lost: %s", rec.Body.String())
	}
}

func TestListJobs(t *testing.T) {
	st := newFakeStore()
	st.listings["https://example.com/jobs/1"] = &store.Listing{ID: 1, JobTitle: "Engineer"}
	s := NewServer(st, &fakeParser{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?limit=5", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []store.Listing `json:"items"`
		Total int             `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}
