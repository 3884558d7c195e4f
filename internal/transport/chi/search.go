package chi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kedb-platform/kedb/internal/search"
	searchuc "github.com/kedb-platform/kedb/internal/usecase/searching"
)

type searchEntriesRequest struct {
	Query         string `json:"query"`
	Severity      string `json:"severity"`
	WorkflowState string `json:"workflow_state"`
	CreatedBy     string `json:"created_by"`
	Limit         int    `json:"limit"`
	Offset        int    `json:"offset"`
}

type searchSolutionsRequest struct {
	Query        string `json:"query"`
	SolutionType string `json:"solution_type"`
	EntryID      string `json:"entry_id"`
	Limit        int    `json:"limit"`
	Offset       int    `json:"offset"`
}

type entryHitResponse struct {
	search.EntryDocument
	Score float64 `json:"score"`
}

type solutionHitResponse struct {
	search.SolutionDocument
	Score float64 `json:"score"`
}

type searchResponse[T any] struct {
	Items          []T   `json:"items"`
	EstimatedTotal int   `json:"estimated_total"`
	TookMS         int64 `json:"took_ms"`
}

// searchEntries handles POST /api/v1/search/entries.
func (s *Server) searchEntries(w http.ResponseWriter, r *http.Request) {
	var req searchEntriesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	page, err := s.search.SearchEntries(r.Context(), req.Query, searchuc.EntryFilters{
		Severity:      req.Severity,
		WorkflowState: req.WorkflowState,
		CreatedBy:     req.CreatedBy,
	}, req.Limit, req.Offset)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]entryHitResponse, len(page.Hits))
	for i, h := range page.Hits {
		items[i] = entryHitResponse{EntryDocument: h.EntryDocument, Score: h.Score}
	}

	writeJSON(w, http.StatusOK, searchResponse[entryHitResponse]{
		Items:          items,
		EstimatedTotal: page.EstimatedTotal,
		TookMS:         page.TookMS,
	})
}

// searchSolutions handles POST /api/v1/search/solutions.
func (s *Server) searchSolutions(w http.ResponseWriter, r *http.Request) {
	var req searchSolutionsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	page, err := s.search.SearchSolutions(r.Context(), req.Query, searchuc.SolutionFilters{
		SolutionType: req.SolutionType,
		EntryID:      req.EntryID,
	}, req.Limit, req.Offset)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]solutionHitResponse, len(page.Hits))
	for i, h := range page.Hits {
		items[i] = solutionHitResponse{SolutionDocument: h.SolutionDocument, Score: h.Score}
	}

	writeJSON(w, http.StatusOK, searchResponse[solutionHitResponse]{
		Items:          items,
		EstimatedTotal: page.EstimatedTotal,
		TookMS:         page.TookMS,
	})
}

// searchHealth handles GET /api/v1/search/health.
func (s *Server) searchHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.search.Health(r.Context()); err != nil {
		s.logger.Warn("search health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, codeSearchUnavailable, "search unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "available"})
}

// initIndexes handles POST /api/v1/search/init-indexes.
func (s *Server) initIndexes(w http.ResponseWriter, r *http.Request) {
	if err := s.search.EnsureIndexes(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reindex handles POST /api/v1/search/reindex.
func (s *Server) reindex(w http.ResponseWriter, r *http.Request) {
	report, err := s.search.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"entries_indexed":   report.EntriesIndexed,
		"solutions_indexed": report.SolutionsIndexed,
		"failures":          report.Failures,
	})
}
