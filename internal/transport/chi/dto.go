package chi

import (
	"time"

	"github.com/google/uuid"

	domagent "github.com/kedb-platform/kedb/internal/domain/agent"
	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domreview "github.com/kedb-platform/kedb/internal/domain/review"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	domtag "github.com/kedb-platform/kedb/internal/domain/tag"
)

// --- Entries ---

type symptomResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
	SymptomType string `json:"symptom_type,omitempty"`
}

type incidentResponse struct {
	ID         string     `json:"id"`
	IncidentID string     `json:"incident_id"`
	Source     string     `json:"source,omitempty"`
	URL        string     `json:"url,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type entryResponse struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description,omitempty"`
	Severity        string             `json:"severity"`
	WorkflowState   string             `json:"workflow_state"`
	Status          string             `json:"status"`
	CreatedBy       string             `json:"created_by,omitempty"`
	UpdatedBy       string             `json:"updated_by,omitempty"`
	ApprovedBy      string             `json:"approved_by,omitempty"`
	MergedInto      string             `json:"merged_into,omitempty"`
	RootCause       string             `json:"root_cause,omitempty"`
	ImpactSummary   string             `json:"impact_summary,omitempty"`
	DetectionMethod string             `json:"detection_method,omitempty"`
	CreatedAt       *time.Time         `json:"created_at,omitempty"`
	UpdatedAt       *time.Time         `json:"updated_at,omitempty"`
	PublishedAt     *time.Time         `json:"published_at,omitempty"`
	Symptoms        []symptomResponse  `json:"symptoms,omitempty"`
	Incidents       []incidentResponse `json:"incidents,omitempty"`
	Solutions       []solutionResponse `json:"solutions,omitempty"`
}

type createEntryRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Severity        string `json:"severity"`
	RootCause       string `json:"root_cause"`
	ImpactSummary   string `json:"impact_summary"`
	DetectionMethod string `json:"detection_method"`
	Symptoms        []struct {
		Description string `json:"description"`
		SymptomType string `json:"symptom_type"`
	} `json:"symptoms"`
	Incidents []incidentRequest `json:"incidents"`
}

type incidentRequest struct {
	IncidentID string     `json:"incident_id"`
	Source     string     `json:"source"`
	URL        string     `json:"url"`
	OccurredAt *time.Time `json:"occurred_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

type updateEntryRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Severity        *string `json:"severity"`
	Status          *string `json:"status"`
	RootCause       *string `json:"root_cause"`
	ImpactSummary   *string `json:"impact_summary"`
	DetectionMethod *string `json:"detection_method"`
}

type transitionRequest struct {
	To         string `json:"to"`
	ApprovedBy string `json:"approved_by"`
	MergedInto string `json:"merged_into"`
}

type symptomRequest struct {
	Description string `json:"description"`
	SymptomType string `json:"symptom_type"`
}

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func entryToDTO(e domentry.Entry) entryResponse {
	resp := entryResponse{
		ID:              e.ID.String(),
		Title:           e.Title,
		Description:     e.Description,
		Severity:        string(e.Severity),
		WorkflowState:   string(e.WorkflowState),
		Status:          string(e.Status),
		CreatedBy:       e.CreatedBy,
		UpdatedBy:       e.UpdatedBy,
		ApprovedBy:      e.ApprovedBy,
		RootCause:       e.RootCause,
		ImpactSummary:   e.ImpactSummary,
		DetectionMethod: e.DetectionMethod,
		CreatedAt:       timePtr(e.CreatedAt),
		UpdatedAt:       timePtr(e.UpdatedAt),
		PublishedAt:     timePtr(e.PublishedAt),
	}
	if e.MergedInto != uuid.Nil {
		resp.MergedInto = e.MergedInto.String()
	}
	for _, sym := range e.Symptoms {
		resp.Symptoms = append(resp.Symptoms, symptomToDTO(sym))
	}
	for _, inc := range e.Incidents {
		resp.Incidents = append(resp.Incidents, incidentToDTO(inc))
	}
	for _, sol := range e.Solutions {
		resp.Solutions = append(resp.Solutions, solutionToDTO(sol))
	}
	return resp
}

func symptomToDTO(s domentry.Symptom) symptomResponse {
	return symptomResponse{
		ID:          s.ID.String(),
		Description: s.Description,
		OrderIndex:  s.OrderIndex,
		SymptomType: s.SymptomType,
	}
}

func incidentToDTO(i domentry.Incident) incidentResponse {
	return incidentResponse{
		ID:         i.ID.String(),
		IncidentID: i.IncidentID,
		Source:     i.Source,
		URL:        i.URL,
		OccurredAt: timePtr(i.OccurredAt),
		ResolvedAt: timePtr(i.ResolvedAt),
	}
}

// --- Solutions ---

type stepResponse struct {
	ID              string         `json:"id"`
	OrderIndex      int            `json:"order_index"`
	Action          string         `json:"action"`
	ExpectedResult  string         `json:"expected_result,omitempty"`
	Command         string         `json:"command,omitempty"`
	RollbackAction  string         `json:"rollback_action,omitempty"`
	RollbackCommand string         `json:"rollback_command,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type solutionResponse struct {
	ID                   string         `json:"id"`
	EntryID              string         `json:"entry_id"`
	Title                string         `json:"title"`
	Description          string         `json:"description,omitempty"`
	Type                 string         `json:"solution_type"`
	EstimatedTimeMinutes int            `json:"estimated_time_minutes,omitempty"`
	Prerequisites        string         `json:"prerequisites,omitempty"`
	CreatedBy            string         `json:"created_by,omitempty"`
	UpdatedBy            string         `json:"updated_by,omitempty"`
	CreatedAt            *time.Time     `json:"created_at,omitempty"`
	UpdatedAt            *time.Time     `json:"updated_at,omitempty"`
	Steps                []stepResponse `json:"steps,omitempty"`
}

type createSolutionRequest struct {
	EntryID              string        `json:"entry_id"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	Type                 string        `json:"solution_type"`
	EstimatedTimeMinutes int           `json:"estimated_time_minutes"`
	Prerequisites        string        `json:"prerequisites"`
	Steps                []stepRequest `json:"steps"`
}

type stepRequest struct {
	Action          string         `json:"action"`
	ExpectedResult  string         `json:"expected_result"`
	Command         string         `json:"command"`
	RollbackAction  string         `json:"rollback_action"`
	RollbackCommand string         `json:"rollback_command"`
	Metadata        map[string]any `json:"metadata"`
}

type updateSolutionRequest struct {
	Title                *string `json:"title"`
	Description          *string `json:"description"`
	Type                 *string `json:"solution_type"`
	EstimatedTimeMinutes *int    `json:"estimated_time_minutes"`
	Prerequisites        *string `json:"prerequisites"`
}

type updateStepRequest struct {
	Action          *string        `json:"action"`
	ExpectedResult  *string        `json:"expected_result"`
	Command         *string        `json:"command"`
	RollbackAction  *string        `json:"rollback_action"`
	RollbackCommand *string        `json:"rollback_command"`
	Metadata        map[string]any `json:"metadata"`
}

func solutionToDTO(s domsol.Solution) solutionResponse {
	resp := solutionResponse{
		ID:                   s.ID.String(),
		EntryID:              s.EntryID.String(),
		Title:                s.Title,
		Description:          s.Description,
		Type:                 string(s.Type),
		EstimatedTimeMinutes: s.EstimatedTimeMinutes,
		Prerequisites:        s.Prerequisites,
		CreatedBy:            s.CreatedBy,
		UpdatedBy:            s.UpdatedBy,
		CreatedAt:            timePtr(s.CreatedAt),
		UpdatedAt:            timePtr(s.UpdatedAt),
	}
	for _, st := range s.Steps {
		resp.Steps = append(resp.Steps, stepToDTO(st))
	}
	return resp
}

func stepToDTO(st domsol.Step) stepResponse {
	return stepResponse{
		ID:              st.ID.String(),
		OrderIndex:      st.OrderIndex,
		Action:          st.Action,
		ExpectedResult:  st.ExpectedResult,
		Command:         st.Command,
		RollbackAction:  st.RollbackAction,
		RollbackCommand: st.RollbackCommand,
		Metadata:        st.Metadata,
	}
}

func stepFromRequest(req stepRequest) domsol.Step {
	return domsol.Step{
		Action:          req.Action,
		ExpectedResult:  req.ExpectedResult,
		Command:         req.Command,
		RollbackAction:  req.RollbackAction,
		RollbackCommand: req.RollbackCommand,
		Metadata:        req.Metadata,
	}
}

// --- Tags ---

type tagResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category,omitempty"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type createTagRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func tagToDTO(t domtag.Tag) tagResponse {
	return tagResponse{
		ID:          t.ID.String(),
		Name:        t.Name,
		Category:    t.Category,
		Description: t.Description,
		Color:       t.Color,
		CreatedAt:   timePtr(t.CreatedAt),
	}
}

// --- Reviews ---

type participantResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Role        string     `json:"role"`
	Approved    *bool      `json:"approved,omitempty"`
	Comments    string     `json:"comments,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

type reviewResponse struct {
	ID           string                `json:"id"`
	EntryID      string                `json:"entry_id"`
	Status       string                `json:"status"`
	Comments     string                `json:"comments,omitempty"`
	RCAText      string                `json:"rca_text,omitempty"`
	CreatedAt    *time.Time            `json:"created_at,omitempty"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
	Participants []participantResponse `json:"participants,omitempty"`
}

type createReviewRequest struct {
	RCAText      string `json:"rca_text"`
	Comments     string `json:"comments"`
	Participants []struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	} `json:"participants"`
}

type respondReviewRequest struct {
	Approved bool   `json:"approved"`
	Comments string `json:"comments"`
}

type completeReviewRequest struct {
	Status string `json:"status"`
}

func reviewToDTO(rev domreview.Review) reviewResponse {
	resp := reviewResponse{
		ID:          rev.ID.String(),
		EntryID:     rev.EntryID.String(),
		Status:      string(rev.Status),
		Comments:    rev.Comments,
		RCAText:     rev.RCAText,
		CreatedAt:   timePtr(rev.CreatedAt),
		CompletedAt: timePtr(rev.CompletedAt),
	}
	for _, p := range rev.Participants {
		resp.Participants = append(resp.Participants, participantResponse{
			ID:          p.ID.String(),
			UserID:      p.UserID,
			Role:        string(p.Role),
			Approved:    p.Approved,
			Comments:    p.Comments,
			RespondedAt: timePtr(p.RespondedAt),
		})
	}
	return resp
}

// --- Audit ---

type auditResponse struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	Diff       map[string]any `json:"diff,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	CreatedAt  *time.Time     `json:"created_at,omitempty"`
}

func auditToDTO(rec domaudit.Record) auditResponse {
	return auditResponse{
		ID:         rec.ID.String(),
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Action:     rec.Action,
		Diff:       rec.Diff,
		UserID:     rec.UserID,
		RequestID:  rec.RequestID,
		CreatedAt:  timePtr(rec.CreatedAt),
	}
}

// --- Agent ---

type sessionResponse struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	IncidentID string         `json:"incident_id,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	CreatedAt  *time.Time     `json:"created_at,omitempty"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
	Calls      []callResponse `json:"calls,omitempty"`
}

type callResponse struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id,omitempty"`
	Type         string         `json:"call_type"`
	ToolName     string         `json:"tool_name,omitempty"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	LatencyMS    int            `json:"latency_ms,omitempty"`
	TokensUsed   int            `json:"tokens_used,omitempty"`
	CostUSD      float64        `json:"cost_usd,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

type suggestionResponse struct {
	ID         string  `json:"id"`
	CallID     string  `json:"call_id"`
	EntryID    string  `json:"entry_id,omitempty"`
	SolutionID string  `json:"solution_id,omitempty"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Accepted   *bool   `json:"accepted,omitempty"`
}

type startSessionRequest struct {
	IncidentID string         `json:"incident_id"`
	Context    map[string]any `json:"context"`
}

type recordCallRequest struct {
	SessionID    string         `json:"session_id"`
	Type         string         `json:"call_type"`
	ToolName     string         `json:"tool_name"`
	Input        map[string]any `json:"input"`
	Output       map[string]any `json:"output"`
	LatencyMS    int            `json:"latency_ms"`
	TokensUsed   int            `json:"tokens_used"`
	CostUSD      float64        `json:"cost_usd"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Suggestions  []struct {
		EntryID    string  `json:"entry_id"`
		SolutionID string  `json:"solution_id"`
		Rank       int     `json:"rank"`
		Score      float64 `json:"score"`
	} `json:"suggestions"`
	PolicyDecisions []struct {
		Policy   string `json:"policy"`
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	} `json:"policy_decisions"`
}

type markSuggestionRequest struct {
	Accepted bool `json:"accepted"`
}

type suggestionEventRequest struct {
	Query          string         `json:"query"`
	TopEntryIDs    []string       `json:"top_entry_ids"`
	Action         string         `json:"action"`
	FeedbackScore  int            `json:"feedback_score"`
	FeedbackText   string         `json:"feedback_text"`
	ScoreBreakdown map[string]any `json:"score_breakdown"`
	SourceContext  map[string]any `json:"source_context"`
	SessionID      string         `json:"session_id"`
	LatencyMS      int            `json:"latency_ms"`
	ModelUsed      string         `json:"model_used"`
}

type suggestionEventResponse struct {
	ID             string         `json:"id"`
	Query          string         `json:"query"`
	TopEntryIDs    []string       `json:"top_entry_ids,omitempty"`
	Action         string         `json:"action,omitempty"`
	FeedbackScore  int            `json:"feedback_score,omitempty"`
	FeedbackText   string         `json:"feedback_text,omitempty"`
	ScoreBreakdown map[string]any `json:"score_breakdown,omitempty"`
	SourceContext  map[string]any `json:"source_context,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	LatencyMS      int            `json:"latency_ms,omitempty"`
	ModelUsed      string         `json:"model_used,omitempty"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
}

func sessionToDTO(sess domagent.Session) sessionResponse {
	resp := sessionResponse{
		ID:         sess.ID.String(),
		UserID:     sess.UserID,
		IncidentID: sess.IncidentID,
		Context:    sess.Context,
		CreatedAt:  timePtr(sess.CreatedAt),
		EndedAt:    timePtr(sess.EndedAt),
	}
	for _, c := range sess.Calls {
		resp.Calls = append(resp.Calls, callToDTO(c))
	}
	return resp
}

func callToDTO(c domagent.Call) callResponse {
	resp := callResponse{
		ID:           c.ID.String(),
		Type:         string(c.Type),
		ToolName:     c.ToolName,
		Input:        c.Input,
		Output:       c.Output,
		LatencyMS:    c.LatencyMS,
		TokensUsed:   c.TokensUsed,
		CostUSD:      c.CostUSD,
		Status:       string(c.Status),
		ErrorMessage: c.ErrorMessage,
		CreatedAt:    timePtr(c.CreatedAt),
	}
	if c.SessionID != uuid.Nil {
		resp.SessionID = c.SessionID.String()
	}
	return resp
}

func suggestionToDTO(sg domagent.Suggestion) suggestionResponse {
	resp := suggestionResponse{
		ID:       sg.ID.String(),
		CallID:   sg.CallID.String(),
		Rank:     sg.Rank,
		Score:    sg.Score,
		Accepted: sg.Accepted,
	}
	if sg.EntryID != uuid.Nil {
		resp.EntryID = sg.EntryID.String()
	}
	if sg.SolutionID != uuid.Nil {
		resp.SolutionID = sg.SolutionID.String()
	}
	return resp
}

func suggestionEventToDTO(ev domagent.SuggestionEvent) suggestionEventResponse {
	return suggestionEventResponse{
		ID:             ev.ID.String(),
		Query:          ev.Query,
		TopEntryIDs:    ev.TopEntryIDs,
		Action:         ev.Action,
		FeedbackScore:  ev.FeedbackScore,
		FeedbackText:   ev.FeedbackText,
		ScoreBreakdown: ev.ScoreBreakdown,
		SourceContext:  ev.SourceContext,
		UserID:         ev.UserID,
		SessionID:      ev.SessionID,
		LatencyMS:      ev.LatencyMS,
		ModelUsed:      ev.ModelUsed,
		CreatedAt:      timePtr(ev.CreatedAt),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
