// Package agent defines the audit schema of the assistive-suggestion layer:
// sessions, calls, suggestions and policy decisions are recorded here, the
// agent's own reasoning lives elsewhere.
package agent

import (
	"time"

	"github.com/google/uuid"
)

// CallType distinguishes suggestion lookups from tool executions.
type CallType string

// Call types.
const (
	CallSuggest CallType = "suggest"
	CallRun     CallType = "run"
)

// IsValid reports whether t is a known call type.
func (t CallType) IsValid() bool {
	return t == CallSuggest || t == CallRun
}

// CallStatus is the outcome of an agent call.
type CallStatus string

// Call statuses.
const (
	CallSuccess CallStatus = "success"
	CallError   CallStatus = "error"
	CallDenied  CallStatus = "denied"
)

// IsValid reports whether s is a known call status.
func (s CallStatus) IsValid() bool {
	return s == CallSuccess || s == CallError || s == CallDenied
}

// Decision is a policy engine verdict.
type Decision string

// Policy decisions.
const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// IsValid reports whether d is a known decision.
func (d Decision) IsValid() bool {
	return d == DecisionAllow || d == DecisionDeny
}

// Session is one conversation with the agent, optionally tied to an
// incident.
type Session struct {
	ID         uuid.UUID
	UserID     string
	IncidentID string
	Context    map[string]any
	CreatedAt  time.Time
	EndedAt    time.Time

	Calls []Call
}

// Call is one agent API invocation within a session. SessionID may be Nil
// for calls made outside any session.
type Call struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	Type         CallType
	ToolName     string
	Input        map[string]any
	Output       map[string]any
	LatencyMS    int
	TokensUsed   int
	CostUSD      float64
	Status       CallStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// Suggestion is one KEDB reference proposed by a call. Accepted is nil
// until the user acts on it.
type Suggestion struct {
	ID         uuid.UUID
	CallID     uuid.UUID
	EntryID    uuid.UUID
	SolutionID uuid.UUID
	Rank       int
	Score      float64
	Accepted   *bool
	CreatedAt  time.Time
}

// PolicyDecision records why a call was allowed or denied.
type PolicyDecision struct {
	ID        uuid.UUID
	CallID    uuid.UUID
	Policy    string
	Decision  Decision
	Reason    string
	CreatedAt time.Time
}

// SuggestionEvent tracks how a surfaced suggestion list performed: what was
// shown for a query and what the user did with it.
type SuggestionEvent struct {
	ID             uuid.UUID
	Query          string
	TopEntryIDs    []string
	Action         string
	FeedbackScore  int
	FeedbackText   string
	ScoreBreakdown map[string]any
	SourceContext  map[string]any
	UserID         string
	SessionID      string
	LatencyMS      int
	ModelUsed      string
	CreatedAt      time.Time
}
