// Package tag defines reusable tags and their links to entries.
package tag

import (
	"time"

	"github.com/google/uuid"
)

// Tag is a reusable label for categorizing entries. Name is unique across
// the catalog; Category optionally groups tags (service, environment,
// component).
type Tag struct {
	ID          uuid.UUID
	Name        string
	Category    string
	Description string
	Color       string
	CreatedAt   time.Time
}

// EntryTag is a link between an entry and a tag. At most one link per
// (entry, tag) pair.
type EntryTag struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	TagID     uuid.UUID
	AddedBy   string
	CreatedAt time.Time
}
