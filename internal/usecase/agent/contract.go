package agent

import (
	"context"

	"github.com/google/uuid"

	domagent "github.com/kedb-platform/kedb/internal/domain/agent"
)

// Repository defines the storage contract for agent history.
type Repository interface {
	CreateSession(ctx context.Context, s *domagent.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (domagent.Session, error)
	EndSession(ctx context.Context, id uuid.UUID) error
	RecordCall(ctx context.Context, call *domagent.Call, suggestions []domagent.Suggestion, decisions []domagent.PolicyDecision) error
	ListSuggestions(ctx context.Context, callID uuid.UUID) ([]domagent.Suggestion, error)
	MarkSuggestion(ctx context.Context, id uuid.UUID, accepted bool) error
	RecordSuggestionEvent(ctx context.Context, ev *domagent.SuggestionEvent) error
	ListSuggestionEvents(ctx context.Context, userID string, limit, offset int) ([]domagent.SuggestionEvent, error)
}
