package chi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
)

// userIDHeader carries the acting user's identity. The API trusts the
// gateway in front of it to have authenticated the caller.
const userIDHeader = "X-User-ID"

func actingUser(r *http.Request) string {
	if user := r.Header.Get(userIDHeader); user != "" {
		return user
	}
	return "anonymous"
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

// createEntry handles POST /api/v1/entries.
func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	e := domentry.Entry{
		Title:           req.Title,
		Description:     req.Description,
		Severity:        domentry.Severity(req.Severity),
		RootCause:       req.RootCause,
		ImpactSummary:   req.ImpactSummary,
		DetectionMethod: req.DetectionMethod,
	}
	for _, sym := range req.Symptoms {
		e.Symptoms = append(e.Symptoms, domentry.Symptom{
			Description: sym.Description,
			SymptomType: sym.SymptomType,
		})
	}
	for _, inc := range req.Incidents {
		e.Incidents = append(e.Incidents, incidentFromRequest(inc))
	}

	created, err := s.entries.Create(r.Context(), &e, actingUser(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entryToDTO(created))
}

// getEntry handles GET /api/v1/entries/{entryID}.
func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	e, err := s.entries.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entryToDTO(e))
}

// listEntries handles GET /api/v1/entries.
func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domentry.ListFilter{
		WorkflowState: workflow.State(q.Get("workflow_state")),
		Severity:      domentry.Severity(q.Get("severity")),
		CreatedBy:     q.Get("created_by"),
	}
	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")

	entries, total, err := s.entries.List(r.Context(), filter, limit, offset)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]entryResponse, len(entries))
	for i, e := range entries {
		items[i] = entryToDTO(e)
	}

	writeJSON(w, http.StatusOK, listResponse[entryResponse]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// updateEntry handles PATCH /api/v1/entries/{entryID}.
func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	var req updateEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	upd := domentry.Update{
		Title:           req.Title,
		Description:     req.Description,
		RootCause:       req.RootCause,
		ImpactSummary:   req.ImpactSummary,
		DetectionMethod: req.DetectionMethod,
	}
	if req.Severity != nil {
		sev := domentry.Severity(*req.Severity)
		upd.Severity = &sev
	}
	if req.Status != nil {
		st := domentry.Status(*req.Status)
		upd.Status = &st
	}

	e, err := s.entries.Update(r.Context(), id, upd, actingUser(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entryToDTO(e))
}

// retireEntry handles DELETE /api/v1/entries/{entryID}. Entries are never
// hard-deleted: delete retires them.
func (s *Server) retireEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	if err := s.entries.Retire(r.Context(), id, actingUser(r)); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// transitionEntry handles POST /api/v1/entries/{entryID}/transition.
func (s *Server) transitionEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	var req transitionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	mergedInto := uuid.Nil
	if req.MergedInto != "" {
		var err error
		mergedInto, err = uuid.Parse(req.MergedInto)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid merged_into")
			return
		}
	}

	e, err := s.entries.TransitionWorkflow(
		r.Context(), id, workflow.State(req.To), req.ApprovedBy, mergedInto, actingUser(r),
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entryToDTO(e))
}

// addSymptom handles POST /api/v1/entries/{entryID}/symptoms.
func (s *Server) addSymptom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	var req symptomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sym, err := s.entries.AddSymptom(r.Context(), id, domentry.Symptom{
		Description: req.Description,
		SymptomType: req.SymptomType,
	}, actingUser(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, symptomToDTO(sym))
}

// addIncident handles POST /api/v1/entries/{entryID}/incidents.
func (s *Server) addIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	var req incidentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	inc, err := s.entries.AddIncident(r.Context(), id, incidentFromRequest(req), actingUser(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, incidentToDTO(inc))
}

// listEntrySolutions handles GET /api/v1/entries/{entryID}/solutions.
func (s *Server) listEntrySolutions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	sols, err := s.solutions.ListByEntry(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]solutionResponse, len(sols))
	for i, sol := range sols {
		items[i] = solutionToDTO(sol)
	}
	writeJSON(w, http.StatusOK, listResponse[solutionResponse]{Items: items, Total: len(items)})
}

func incidentFromRequest(req incidentRequest) domentry.Incident {
	inc := domentry.Incident{
		IncidentID: req.IncidentID,
		Source:     req.Source,
		URL:        req.URL,
	}
	if req.OccurredAt != nil {
		inc.OccurredAt = *req.OccurredAt
	}
	if req.ResolvedAt != nil {
		inc.ResolvedAt = *req.ResolvedAt
	}
	return inc
}
