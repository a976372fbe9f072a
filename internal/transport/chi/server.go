package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medfind/internal/domain"
	healthuc "github.com/kailas-cloud/medfind/internal/usecase/health"
)

// Error response codes.
const (
	codeBadRequest   = "bad_request"
	codeValidation   = "validation_failed"
	codeUnauthorized = "unauthorized"
	codeUpstream     = "marketplace_error"
)

// QueryOptimizer parses raw text into a structured query.
type QueryOptimizer interface {
	Optimize(raw string) domain.StructuredQuery
}

// Reconciler runs the full hybrid search pipeline.
type Reconciler interface {
	Reconcile(ctx context.Context, sq domain.StructuredQuery, limit int) []domain.Listing
}

// LiveSearcher queries the marketplace directly, bypassing interpretation
// and local retrieval.
type LiveSearcher interface {
	Fetch(ctx context.Context, text string, limit int) ([]domain.Listing, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Limits bound the per-request result count.
type Limits struct {
	Default int
	Max     int
}

// Server exposes the search pipeline over HTTP.
type Server struct {
	optimizer QueryOptimizer
	pipeline  Reconciler
	live      LiveSearcher
	health    HealthService
	limits    Limits
	logger    *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	optimizer QueryOptimizer,
	pipeline Reconciler,
	live LiveSearcher,
	health HealthService,
	limits Limits,
	logger *zap.Logger,
) *Server {
	if limits.Default <= 0 {
		limits.Default = 20
	}
	if limits.Max <= 0 {
		limits.Max = 50
	}
	return &Server{
		optimizer: optimizer,
		pipeline:  pipeline,
		live:      live,
		health:    health,
		limits:    limits,
		logger:    logger,
	}
}

// Register mounts the API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.handleHome)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/live", s.handleLive)
}

// handleHome handles GET /.
func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "medfind API running",
		"routes":  []string{"/api/search", "/api/live"},
		"status":  "OK",
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Check(r.Context()))
}

// searchResponse is the payload for GET /api/search.
type searchResponse struct {
	Query      string                 `json:"query"`
	Structured domain.StructuredQuery `json:"structured"`
	Limit      int                    `json:"limit"`
	Results    []domain.Listing       `json:"results"`
}

// handleSearch handles GET /api/search: the full interpret → retrieve →
// fallback → reconcile pipeline.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	raw, limit, ok := s.queryParams(w, r)
	if !ok {
		return
	}

	sq := s.optimizer.Optimize(raw)
	results := s.pipeline.Reconcile(r.Context(), sq, limit)

	writeJSON(w, http.StatusOK, searchResponse{
		Query:      raw,
		Structured: sq,
		Limit:      limit,
		Results:    results,
	})
}

// liveResponse is the payload for GET /api/live.
type liveResponse struct {
	Query   string           `json:"query"`
	Limit   int              `json:"limit"`
	Results []domain.Listing `json:"results"`
}

// handleLive handles GET /api/live: raw text straight to the marketplace,
// bypassing interpretation and local retrieval. With no local results to
// degrade to, marketplace failures surface as 502.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	raw, limit, ok := s.queryParams(w, r)
	if !ok {
		return
	}

	results, err := s.live.Fetch(r.Context(), raw, limit)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrFetch) {
			s.logger.Warn("live marketplace search failed", zap.String("query", raw), zap.Error(err))
			writeError(w, http.StatusBadGateway, codeUpstream, "live marketplace search failed")
			return
		}
		s.logger.Error("live search error", zap.String("query", raw), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, liveResponse{Query: raw, Limit: limit, Results: results})
}

// queryParams validates q and limit. An empty or whitespace-only query is the
// one input rejected before any processing.
func (s *Server) queryParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	raw := r.URL.Query().Get("q")
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "no query provided")
		return "", 0, false
	}

	limit := s.limits.Default
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be a positive integer")
			return "", 0, false
		}
		limit = n
	}
	if limit > s.limits.Max {
		limit = s.limits.Max
	}

	return raw, limit, true
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
