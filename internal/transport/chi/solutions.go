package chi

import (
	"net/http"

	"github.com/google/uuid"

	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
)

// createSolution handles POST /api/v1/solutions.
func (s *Server) createSolution(w http.ResponseWriter, r *http.Request) {
	var req createSolutionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entryID, err := uuid.Parse(req.EntryID)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid entry_id")
		return
	}

	sol := domsol.Solution{
		EntryID:              entryID,
		Title:                req.Title,
		Description:          req.Description,
		Type:                 domsol.Type(req.Type),
		EstimatedTimeMinutes: req.EstimatedTimeMinutes,
		Prerequisites:        req.Prerequisites,
	}
	for _, st := range req.Steps {
		sol.Steps = append(sol.Steps, stepFromRequest(st))
	}

	created, err := s.solutions.Create(r.Context(), &sol, actingUser(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, solutionToDTO(created))
}

// createEntrySolution handles POST /api/v1/entries/{entryID}/solutions.
// Same as createSolution, with the parent taken from the path.
func (s *Server) createEntrySolution(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	var req createSolutionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sol := domsol.Solution{
		EntryID:              entryID,
		Title:                req.Title,
		Description:          req.Description,
		Type:                 domsol.Type(req.Type),
		EstimatedTimeMinutes: req.EstimatedTimeMinutes,
		Prerequisites:        req.Prerequisites,
	}
	for _, st := range req.Steps {
		sol.Steps = append(sol.Steps, stepFromRequest(st))
	}

	created, err := s.solutions.Create(r.Context(), &sol, actingUser(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, solutionToDTO(created))
}

// getSolution handles GET /api/v1/solutions/{solutionID}.
func (s *Server) getSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "solutionID")
	if !ok {
		return
	}

	sol, err := s.solutions.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, solutionToDTO(sol))
}

// updateSolution handles PATCH /api/v1/solutions/{solutionID}.
func (s *Server) updateSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "solutionID")
	if !ok {
		return
	}

	var req updateSolutionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	upd := domsol.Update{
		Title:                req.Title,
		Description:          req.Description,
		EstimatedTimeMinutes: req.EstimatedTimeMinutes,
		Prerequisites:        req.Prerequisites,
	}
	if req.Type != nil {
		t := domsol.Type(*req.Type)
		upd.Type = &t
	}

	sol, err := s.solutions.Update(r.Context(), id, upd, actingUser(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, solutionToDTO(sol))
}

// deleteSolution handles DELETE /api/v1/solutions/{solutionID}.
func (s *Server) deleteSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "solutionID")
	if !ok {
		return
	}

	if err := s.solutions.Delete(r.Context(), id, actingUser(r)); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// addStep handles POST /api/v1/solutions/{solutionID}/steps.
func (s *Server) addStep(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "solutionID")
	if !ok {
		return
	}

	var req stepRequest
	if !decodeBody(w, r, &req) {
		return
	}

	step, err := s.solutions.AddStep(r.Context(), id, stepFromRequest(req), actingUser(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, stepToDTO(step))
}

// updateStep handles PATCH /api/v1/solutions/{solutionID}/steps/{stepID}.
func (s *Server) updateStep(w http.ResponseWriter, r *http.Request) {
	solutionID, ok := pathUUID(w, r, "solutionID")
	if !ok {
		return
	}
	stepID, ok := pathUUID(w, r, "stepID")
	if !ok {
		return
	}

	var req updateStepRequest
	if !decodeBody(w, r, &req) {
		return
	}

	upd := domsol.StepUpdate{
		Action:          req.Action,
		ExpectedResult:  req.ExpectedResult,
		Command:         req.Command,
		RollbackAction:  req.RollbackAction,
		RollbackCommand: req.RollbackCommand,
		Metadata:        req.Metadata,
	}

	step, err := s.solutions.UpdateStep(r.Context(), solutionID, stepID, upd, actingUser(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stepToDTO(step))
}

// deleteStep handles DELETE /api/v1/solutions/{solutionID}/steps/{stepID}.
func (s *Server) deleteStep(w http.ResponseWriter, r *http.Request) {
	solutionID, ok := pathUUID(w, r, "solutionID")
	if !ok {
		return
	}
	stepID, ok := pathUUID(w, r, "stepID")
	if !ok {
		return
	}

	if err := s.solutions.DeleteStep(r.Context(), solutionID, stepID, actingUser(r)); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
