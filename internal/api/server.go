// Package api exposes the HTTP interface for the scraping service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joblens/jobscraper/internal/scraper"
	"github.com/joblens/jobscraper/internal/storage"
)

// Scraper is the part of the orchestration service the API needs.
type Scraper interface {
	Scrape(ctx context.Context, req scraper.ScrapeRequest) (scraper.Envelope, error)
}

// Server wires HTTP handlers to the scraping service and the job store.
type Server struct {
	router  chi.Router
	scraper Scraper
	store   storage.Store
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. store may be
// nil, in which case /v1/jobs reports the store unavailable.
func NewServer(svc Scraper, store storage.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scraper: svc,
		store:   store,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// A scrape run can legitimately take minutes; the timeout here
		// is a backstop, not a pacing control.
		r.With(timeoutMiddleware(10 * time.Minute)).Post("/scrape", s.scrape)
		r.With(timeoutMiddleware(30 * time.Second)).Get("/jobs", s.listJobs)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

// scrape runs one crawl synchronously and returns the result envelope.
// An aborted run is still a 200: the envelope carries the abort reason.
func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scraper.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
		return
	}
	if req.Site == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "site and query are required", s.logger)
		return
	}

	env, err := s.scraper.Scrape(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, scraper.ErrUnknownSite):
			writeError(w, http.StatusBadRequest, err.Error(), s.logger)
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "scrape timed out", s.logger)
		default:
			s.logger.Error("scrape failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "scrape failed", s.logger)
		}
		return
	}
	writeJSON(w, http.StatusOK, env, s.logger)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "job store is not configured", s.logger)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", s.logger)
			return
		}
		limit = n
	}
	site := r.URL.Query().Get("site")

	records, err := s.store.RecentJobs(r.Context(), site, limit)
	if err != nil {
		s.logger.Error("listing jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch jobs", s.logger)
		return
	}
	if records == nil {
		records = []scraper.JobRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": records, "count": len(records)}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
