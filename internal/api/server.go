// Package api exposes the job-import pipeline and the listing store over
// HTTP. Pipeline failures map to upstream-dependency statuses: rate-limited
// imports answer 429, every other pipeline failure answers 502. Only a
// malformed input URL is the client's fault (400).
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jobtrackr/jobtrackr/internal/jobposting"
	"github.com/jobtrackr/jobtrackr/internal/store"
)

// ListingStore is the persistence surface the handlers need.
type ListingStore interface {
	GetListing(ctx context.Context, url string) (*store.Listing, error)
	SaveListing(ctx context.Context, url string, p *jobposting.JobPosting) (*store.Listing, error)
	ListListings(ctx context.Context, limit, offset int) ([]store.Listing, int, error)
	DeleteListing(ctx context.Context, id int) error
}

// JobParser runs the import pipeline for one URL.
type JobParser interface {
	ParseJobFromURL(ctx context.Context, url string) (*jobposting.JobPosting, error)
}

type Server struct {
	router *chi.Mux
	store  ListingStore
	parser JobParser
}

func NewServer(store ListingStore, parser JobParser) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  store,
		parser: parser,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/api/jobs/import", s.handleImportJob)
	s.router.Get("/api/jobs", s.handleListJobs)
	s.router.Delete("/api/jobs/{id}", s.handleDeleteJob)
	s.router.Get("/api/stats", s.handleStats)
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
