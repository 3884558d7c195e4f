package chi

import (
	"net/http"

	"github.com/google/uuid"

	domagent "github.com/kedb-platform/kedb/internal/domain/agent"
)

// startSession handles POST /api/v1/agent/sessions.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := s.agent.StartSession(r.Context(), actingUser(r), req.IncidentID, req.Context)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionToDTO(sess))
}

// getSession handles GET /api/v1/agent/sessions/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	sess, err := s.agent.GetSession(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionToDTO(sess))
}

// endSession handles POST /api/v1/agent/sessions/{sessionID}/end.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	if err := s.agent.EndSession(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// recordCall handles POST /api/v1/agent/calls.
func (s *Server) recordCall(w http.ResponseWriter, r *http.Request) {
	var req recordCallRequest
	if !decodeBody(w, r, &req) {
		return
	}

	call := domagent.Call{
		Type:         domagent.CallType(req.Type),
		ToolName:     req.ToolName,
		Input:        req.Input,
		Output:       req.Output,
		LatencyMS:    req.LatencyMS,
		TokensUsed:   req.TokensUsed,
		CostUSD:      req.CostUSD,
		Status:       domagent.CallStatus(req.Status),
		ErrorMessage: req.ErrorMessage,
	}
	if req.SessionID != "" {
		sessionID, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid session_id")
			return
		}
		call.SessionID = sessionID
	}

	suggestions := make([]domagent.Suggestion, 0, len(req.Suggestions))
	for _, sg := range req.Suggestions {
		suggestion := domagent.Suggestion{Rank: sg.Rank, Score: sg.Score}
		if sg.EntryID != "" {
			entryID, err := uuid.Parse(sg.EntryID)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeBadRequest, "invalid suggestion entry_id")
				return
			}
			suggestion.EntryID = entryID
		}
		if sg.SolutionID != "" {
			solutionID, err := uuid.Parse(sg.SolutionID)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeBadRequest, "invalid suggestion solution_id")
				return
			}
			suggestion.SolutionID = solutionID
		}
		suggestions = append(suggestions, suggestion)
	}

	decisions := make([]domagent.PolicyDecision, 0, len(req.PolicyDecisions))
	for _, d := range req.PolicyDecisions {
		decisions = append(decisions, domagent.PolicyDecision{
			Policy:   d.Policy,
			Decision: domagent.Decision(d.Decision),
			Reason:   d.Reason,
		})
	}

	call, err := s.agent.RecordCall(r.Context(), call, suggestions, decisions)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, callToDTO(call))
}

// listSuggestions handles GET /api/v1/agent/calls/{callID}/suggestions.
func (s *Server) listSuggestions(w http.ResponseWriter, r *http.Request) {
	callID, ok := pathUUID(w, r, "callID")
	if !ok {
		return
	}

	suggestions, err := s.agent.ListSuggestions(r.Context(), callID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]suggestionResponse, len(suggestions))
	for i, sg := range suggestions {
		items[i] = suggestionToDTO(sg)
	}
	writeJSON(w, http.StatusOK, listResponse[suggestionResponse]{Items: items, Total: len(items)})
}

// markSuggestion handles POST /api/v1/agent/suggestions/{suggestionID}/mark.
func (s *Server) markSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "suggestionID")
	if !ok {
		return
	}

	var req markSuggestionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.agent.MarkSuggestion(r.Context(), id, req.Accepted); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// recordSuggestionEvent handles POST /api/v1/agent/events.
func (s *Server) recordSuggestionEvent(w http.ResponseWriter, r *http.Request) {
	var req suggestionEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := s.agent.RecordSuggestionEvent(r.Context(), domagent.SuggestionEvent{
		Query:          req.Query,
		TopEntryIDs:    req.TopEntryIDs,
		Action:         req.Action,
		FeedbackScore:  req.FeedbackScore,
		FeedbackText:   req.FeedbackText,
		ScoreBreakdown: req.ScoreBreakdown,
		SourceContext:  req.SourceContext,
		UserID:         actingUser(r),
		SessionID:      req.SessionID,
		LatencyMS:      req.LatencyMS,
		ModelUsed:      req.ModelUsed,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, suggestionEventToDTO(ev))
}

// listSuggestionEvents handles GET /api/v1/agent/events.
func (s *Server) listSuggestionEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actingUser(r)
	}

	events, err := s.agent.ListSuggestionEvents(r.Context(), userID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]suggestionEventResponse, len(events))
	for i, ev := range events {
		items[i] = suggestionEventToDTO(ev)
	}
	writeJSON(w, http.StatusOK, listResponse[suggestionEventResponse]{Items: items, Total: len(items)})
}
