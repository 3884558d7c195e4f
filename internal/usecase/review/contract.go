package review

import (
	"context"

	"github.com/google/uuid"

	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domreview "github.com/kedb-platform/kedb/internal/domain/review"
)

// Repository defines the storage contract for reviews.
type Repository interface {
	Create(ctx context.Context, rev *domreview.Review) error
	Get(ctx context.Context, id uuid.UUID) (domreview.Review, error)
	ListByEntry(ctx context.Context, entryID uuid.UUID) ([]domreview.Review, error)
	Respond(ctx context.Context, reviewID uuid.UUID, userID string, approved bool, comments string) error
	Complete(ctx context.Context, id uuid.UUID, status domreview.Status) error
}

// EntryReader loads the entry under review.
type EntryReader interface {
	Get(ctx context.Context, id uuid.UUID) (domentry.Entry, error)
}
