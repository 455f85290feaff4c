// Package api exposes the session over HTTP for the app, together with
// health and metrics endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/newsfeed/internal/core/domain"
	"github.com/vietddude/newsfeed/internal/feed"
	"github.com/vietddude/newsfeed/internal/health"
)

// CacheClearer removes every cached response.
type CacheClearer interface {
	Clear(ctx context.Context) (int, error)
}

// Server provides the HTTP endpoints.
type Server struct {
	session *feed.Session
	cache   CacheClearer
	monitor *health.Monitor
	handler http.Handler
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates a new server listening on port.
func NewServer(session *feed.Session, cache CacheClearer, monitor *health.Monitor, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		session: session,
		cache:   cache,
		monitor: monitor,
		log:     slog.Default().With("component", "api"),
	}

	mux.HandleFunc("GET /v1/feed", s.handleFeed)
	mux.HandleFunc("GET /v1/feed/stats", s.handleStats)
	mux.HandleFunc("POST /v1/feed/more", s.handleMore)
	mux.HandleFunc("POST /v1/feed/refresh", s.handleRefresh)
	mux.HandleFunc("PUT /v1/feed/category", s.handleCategory)
	mux.HandleFunc("GET /v1/categories", s.handleCategories)
	mux.HandleFunc("GET /v1/headlines", s.handleHeadlines)
	mux.HandleFunc("POST /v1/headlines/refresh", s.handleHeadlinesRefresh)
	mux.HandleFunc("POST /v1/refresh", s.handleRefreshAll)
	mux.HandleFunc("DELETE /v1/cache", s.handleClearCache)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = s.withRequestID(mux)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("Request served",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// viewResponse is the body of every feed endpoint.
type viewResponse struct {
	Feed          feed.State       `json:"feed"`
	Visible       []domain.Article `json:"visible"`
	Headlines     []domain.Article `json:"headlines"`
	FeedError     *ErrorBody       `json:"feed_error,omitempty"`
	HeadlineError *ErrorBody       `json:"headline_error,omitempty"`
}

func newViewResponse(v feed.View) viewResponse {
	resp := viewResponse{
		Feed:      v.Feed,
		Visible:   v.Visible,
		Headlines: v.Headlines,
	}
	if v.Feed.LastError != nil {
		resp.FeedError = NewErrorBody(v.Feed.LastError)
	}
	if v.HeadlineError != nil {
		resp.HeadlineError = NewErrorBody(v.HeadlineError)
	}
	return resp
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newViewResponse(s.session.View()))
}

// statsResponse reports the phase and recent transitions of the active feed.
type statsResponse struct {
	FeedID   string          `json:"feed_id"`
	Category domain.Category `json:"category"`
	Phase    feed.Phase      `json:"phase"`
	feed.Stats
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	f := s.session.Feed()
	writeJSON(w, http.StatusOK, statsResponse{
		FeedID:   f.ID(),
		Category: f.Category(),
		Phase:    f.Phase(),
		Stats:    f.Stats(),
	})
}

func (s *Server) handleMore(w http.ResponseWriter, r *http.Request) {
	_, err := s.session.LoadMore(r.Context())
	s.respondView(w, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	_, err := s.session.Refresh(r.Context())
	s.respondView(w, err)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	category := domain.ParseCategory(r.URL.Query().Get("name"))
	_, err := s.session.Select(r.Context(), category)
	s.respondView(w, err)
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	v, err := s.session.RefreshAll(r.Context())
	// Both halves settled; failures are reported inside the view.
	if err != nil && !errors.Is(err, feed.ErrSuperseded) {
		s.log.Debug("Refresh settled with errors", "error", err)
	}
	writeJSON(w, http.StatusOK, newViewResponse(v))
}

// respondView writes the session view. A superseded result is not an
// error for the caller: the view already reflects the newer state.
func (s *Server) respondView(w http.ResponseWriter, err error) {
	resp := newViewResponse(s.session.View())
	if err == nil || errors.Is(err, feed.ErrSuperseded) {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if resp.FeedError == nil {
		resp.FeedError = NewErrorBody(err)
	}
	writeError(w, err, resp)
}

type headlinesResponse struct {
	Headlines []domain.Article `json:"headlines"`
	Error     *ErrorBody       `json:"error,omitempty"`
}

func (s *Server) handleHeadlines(w http.ResponseWriter, r *http.Request) {
	items, err := s.session.LoadHeadlines(r.Context())
	if errors.Is(err, feed.ErrSuperseded) {
		items, err = s.session.View().Headlines, nil
	}
	s.respondHeadlines(w, items, err)
}

func (s *Server) handleHeadlinesRefresh(w http.ResponseWriter, r *http.Request) {
	items, err := s.session.ReloadHeadlines(r.Context(), true)
	if errors.Is(err, feed.ErrSuperseded) {
		items, err = s.session.LoadHeadlines(r.Context())
	}
	s.respondHeadlines(w, items, err)
}

func (s *Server) respondHeadlines(w http.ResponseWriter, items []domain.Article, err error) {
	if items == nil {
		items = []domain.Article{}
	}
	if err != nil {
		writeError(w, err, headlinesResponse{Headlines: items, Error: NewErrorBody(err)})
		return
	}
	writeJSON(w, http.StatusOK, headlinesResponse{Headlines: items})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":     s.session.Category(),
		"categories": domain.Categories,
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := s.cache.Clear(r.Context())
	if err != nil {
		s.log.Error("Failed to clear cache", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "removed": removed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	response := map[string]string{"status": string(report.SystemStatus)}
	if report.SystemStatus == health.StatusCritical {
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}
