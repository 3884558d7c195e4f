// Package agent records the interaction history of the assistive agent:
// sessions, individual calls with their suggestions and policy decisions,
// and suggestion outcome events.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domagent "github.com/kedb-platform/kedb/internal/domain/agent"
)

// Service handles agent history operations.
type Service struct {
	repo            Repository
	defaultPageSize int
	maxPageSize     int
}

// New creates an agent history service.
func New(repo Repository) *Service {
	return &Service{
		repo:            repo,
		defaultPageSize: 50,
		maxPageSize:     200,
	}
}

// StartSession opens a new agent session for a user.
func (s *Service) StartSession(ctx context.Context, userID, incidentID string, sessionContext map[string]any) (domagent.Session, error) {
	if userID == "" {
		return domagent.Session{}, fmt.Errorf("user id is required: %w", domain.ErrValidation)
	}

	sess := domagent.Session{
		ID:         uuid.New(),
		UserID:     userID,
		IncidentID: incidentID,
		Context:    sessionContext,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateSession(ctx, &sess); err != nil {
		return domagent.Session{}, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

// GetSession returns a session with its calls in chronological order.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (domagent.Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return domagent.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// EndSession stamps the session end time. Ending an already-ended session
// is a no-op.
func (s *Service) EndSession(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.EndSession(ctx, id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// RecordCall stores one agent call together with the suggestions it
// produced and the policy decisions that gated it.
func (s *Service) RecordCall(ctx context.Context, call domagent.Call,
	suggestions []domagent.Suggestion, decisions []domagent.PolicyDecision) (domagent.Call, error) {

	if !call.Type.IsValid() {
		return domagent.Call{}, fmt.Errorf("unknown call type %q: %w", call.Type, domain.ErrValidation)
	}
	if !call.Status.IsValid() {
		return domagent.Call{}, fmt.Errorf("unknown call status %q: %w", call.Status, domain.ErrValidation)
	}
	for _, d := range decisions {
		if !d.Decision.IsValid() {
			return domagent.Call{}, fmt.Errorf("unknown policy decision %q: %w", d.Decision, domain.ErrValidation)
		}
	}

	call.ID = uuid.New()
	call.CreatedAt = time.Now().UTC()
	for i := range suggestions {
		suggestions[i].ID = uuid.New()
		suggestions[i].CallID = call.ID
		suggestions[i].CreatedAt = call.CreatedAt
	}
	for i := range decisions {
		decisions[i].ID = uuid.New()
		decisions[i].CallID = call.ID
		decisions[i].CreatedAt = call.CreatedAt
	}

	if err := s.repo.RecordCall(ctx, &call, suggestions, decisions); err != nil {
		return domagent.Call{}, fmt.Errorf("record call: %w", err)
	}
	return call, nil
}

// ListSuggestions returns the suggestions of a call ordered by rank.
func (s *Service) ListSuggestions(ctx context.Context, callID uuid.UUID) ([]domagent.Suggestion, error) {
	out, err := s.repo.ListSuggestions(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return out, nil
}

// MarkSuggestion records whether the user accepted a suggestion.
func (s *Service) MarkSuggestion(ctx context.Context, id uuid.UUID, accepted bool) error {
	if err := s.repo.MarkSuggestion(ctx, id, accepted); err != nil {
		return fmt.Errorf("mark suggestion: %w", err)
	}
	return nil
}

// RecordSuggestionEvent stores one suggestion outcome event.
func (s *Service) RecordSuggestionEvent(ctx context.Context, ev domagent.SuggestionEvent) (domagent.SuggestionEvent, error) {
	if ev.Query == "" {
		return domagent.SuggestionEvent{}, fmt.Errorf("query is required: %w", domain.ErrValidation)
	}

	ev.ID = uuid.New()
	ev.CreatedAt = time.Now().UTC()
	if err := s.repo.RecordSuggestionEvent(ctx, &ev); err != nil {
		return domagent.SuggestionEvent{}, fmt.Errorf("record suggestion event: %w", err)
	}
	return ev, nil
}

// ListSuggestionEvents returns a user's suggestion events, newest first.
func (s *Service) ListSuggestionEvents(ctx context.Context, userID string, limit, offset int) ([]domagent.SuggestionEvent, error) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	out, err := s.repo.ListSuggestionEvents(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list suggestion events: %w", err)
	}
	return out, nil
}
