package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jobtrackr/jobtrackr/internal/observability"
	"github.com/jobtrackr/jobtrackr/internal/parser"
	"github.com/jobtrackr/jobtrackr/internal/store"
	"github.com/jobtrackr/jobtrackr/internal/urlutil"
)

type ImportJobRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleImportJob(w http.ResponseWriter, r *http.Request) {
	var req ImportJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !isValidJobURL(req.URL) {
		respondError(w, http.StatusBadRequest, "A valid absolute http(s) URL is required")
		return
	}

	canonical := urlutil.Normalize(req.URL)

	// Already-imported postings skip the pipeline entirely.
	existing, err := s.store.GetListing(r.Context(), canonical)
	if err != nil {
		observability.IncError("store", "api")
		respondError(w, http.StatusInternalServerError, "Failed to check existing listings: "+err.Error())
		return
	}
	if existing != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"listing": existing,
			"cached":  true,
		})
		return
	}

	posting, err := s.parser.ParseJobFromURL(r.Context(), canonical)
	if err != nil {
		var pe *parser.ParseError
		switch {
		case parser.IsRateLimited(err):
			respondError(w, http.StatusTooManyRequests, userMessage(err))
		case errors.As(err, &pe):
			// Pipeline failures are upstream-dependency failures, not
			// client errors.
			respondError(w, http.StatusBadGateway, userMessage(err))
		default:
			respondError(w, http.StatusInternalServerError, "Import failed: "+err.Error())
		}
		return
	}

	saved, err := s.store.SaveListing(r.Context(), canonical, posting)
	if err != nil {
		observability.IncError("store", "api")
		respondError(w, http.StatusInternalServerError, "Failed to save listing: "+err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"listing": saved,
		"cached":  false,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 20)

	listings, total, err := s.store.ListListings(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch listings: "+err.Error())
		return
	}
	// Return an empty list instead of null to be JSON friendly.
	if listings == nil {
		listings = []store.Listing{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  listings,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid listing id")
		return
	}
	if err := s.store.DeleteListing(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete listing: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, observability.Snapshot())
}

// isValidJobURL accepts only absolute http/https URLs; anything else is a
// client error caught before the pipeline runs.
func isValidJobURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// userMessage prefers the ParseError's display message over the full cause
// chain.
func userMessage(err error) string {
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
