// Package chi implements the HTTP API on the chi router.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kedb-platform/kedb/internal/domain"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
	agentuc "github.com/kedb-platform/kedb/internal/usecase/agent"
	audituc "github.com/kedb-platform/kedb/internal/usecase/audit"
	entryuc "github.com/kedb-platform/kedb/internal/usecase/entry"
	healthuc "github.com/kedb-platform/kedb/internal/usecase/health"
	reviewuc "github.com/kedb-platform/kedb/internal/usecase/review"
	searchuc "github.com/kedb-platform/kedb/internal/usecase/searching"
	soluc "github.com/kedb-platform/kedb/internal/usecase/solution"
	taguc "github.com/kedb-platform/kedb/internal/usecase/tag"
)

// Error codes returned in error response bodies.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeNotFound          = "not_found"
	codeAlreadyExists     = "already_exists"
	codeConflict          = "conflict"
	codeWorkflowViolation = "workflow_violation"
	codeSearchUnavailable = "search_unavailable"
	codeInternalError     = "internal_error"
)

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the use case services behind the HTTP API.
type Server struct {
	entries       *entryuc.Service
	solutions     *soluc.Service
	search        *searchuc.Service
	tags          *taguc.Service
	reviews       *reviewuc.Service
	audit         *audituc.Service
	agent         *agentuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	entries *entryuc.Service,
	solutions *soluc.Service,
	search *searchuc.Service,
	tags *taguc.Service,
	reviews *reviewuc.Service,
	audit *audituc.Service,
	agent *agentuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		entries:   entries,
		solutions: solutions,
		search:    search,
		tags:      tags,
		reviews:   reviews,
		audit:     audit,
		agent:     agent,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		workflowErrorHandler,
		sentinelHandler(domain.ErrWorkflow, http.StatusConflict, codeWorkflowViolation),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, codeConflict),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusServiceUnavailable, codeSearchUnavailable),
	}
	return s
}

// Routes mounts all API routes on a new chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.liveness)
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/entries", func(r chi.Router) {
			r.Post("/", s.createEntry)
			r.Get("/", s.listEntries)
			r.Route("/{entryID}", func(r chi.Router) {
				r.Get("/", s.getEntry)
				r.Patch("/", s.updateEntry)
				r.Delete("/", s.retireEntry)
				r.Post("/transition", s.transitionEntry)
				r.Post("/symptoms", s.addSymptom)
				r.Post("/incidents", s.addIncident)
				r.Get("/solutions", s.listEntrySolutions)
				r.Post("/solutions", s.createEntrySolution)
				r.Get("/tags", s.listEntryTags)
				r.Post("/tags", s.tagEntry)
				r.Delete("/tags/{tagID}", s.untagEntry)
				r.Post("/reviews", s.createReview)
				r.Get("/reviews", s.listEntryReviews)
				r.Get("/audit", s.listEntryAudit)
			})
		})

		r.Route("/solutions", func(r chi.Router) {
			r.Post("/", s.createSolution)
			r.Route("/{solutionID}", func(r chi.Router) {
				r.Get("/", s.getSolution)
				r.Patch("/", s.updateSolution)
				r.Delete("/", s.deleteSolution)
				r.Post("/steps", s.addStep)
				r.Patch("/steps/{stepID}", s.updateStep)
				r.Delete("/steps/{stepID}", s.deleteStep)
			})
		})

		r.Route("/search", func(r chi.Router) {
			r.Post("/entries", s.searchEntries)
			r.Post("/solutions", s.searchSolutions)
			r.Get("/health", s.searchHealth)
			r.Post("/init-indexes", s.initIndexes)
			r.Post("/reindex", s.reindex)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Post("/", s.createTag)
			r.Get("/", s.listTags)
			r.Get("/{tagID}", s.getTag)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/{reviewID}", s.getReview)
			r.Post("/{reviewID}/respond", s.respondReview)
			r.Post("/{reviewID}/complete", s.completeReview)
		})

		r.Get("/audit", s.listAudit)

		r.Route("/agent", func(r chi.Router) {
			r.Post("/sessions", s.startSession)
			r.Get("/sessions/{sessionID}", s.getSession)
			r.Post("/sessions/{sessionID}/end", s.endSession)
			r.Post("/calls", s.recordCall)
			r.Get("/calls/{callID}/suggestions", s.listSuggestions)
			r.Post("/suggestions/{suggestionID}/mark", s.markSuggestion)
			r.Post("/suggestion-events", s.recordSuggestionEvent)
			r.Get("/suggestion-events", s.listSuggestionEvents)
		})
	})

	return r
}

// liveness handles GET /. It answers as soon as the process serves
// traffic, without touching any dependency.
func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "kedb", "status": "ok"})
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns an error message safe to expose to the client.
// Wrapped sentinel chains carry validation detail built from request input
// the client already sent; anything else collapses to a generic message.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrValidation,
		domain.ErrWorkflow,
		domain.ErrConflict,
		domain.ErrSearchUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// workflowErrorHandler handles state machine violations with the full
// transition detail so the client learns which moves are legal.
func workflowErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	var wfErr *workflow.Error
	if !errors.As(err, &wfErr) {
		return false
	}
	writeError(w, http.StatusConflict, codeWorkflowViolation, wfErr.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
