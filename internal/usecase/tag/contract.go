package tag

import (
	"context"

	"github.com/google/uuid"

	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domtag "github.com/kedb-platform/kedb/internal/domain/tag"
)

// Repository defines the storage contract for tags.
type Repository interface {
	Create(ctx context.Context, t domtag.Tag) error
	Get(ctx context.Context, id uuid.UUID) (domtag.Tag, error)
	List(ctx context.Context, category string) ([]domtag.Tag, error)
	Link(ctx context.Context, link domtag.EntryTag) error
	Unlink(ctx context.Context, entryID, tagID uuid.UUID) error
	ListByEntry(ctx context.Context, entryID uuid.UUID) ([]domtag.Tag, error)
}

// EntryReader checks the entry exists before linking.
type EntryReader interface {
	Get(ctx context.Context, id uuid.UUID) (domentry.Entry, error)
}
