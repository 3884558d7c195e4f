// Package tag implements the tag catalog and entry tagging.
package tag

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domtag "github.com/kedb-platform/kedb/internal/domain/tag"
)

// Service handles tag operations.
type Service struct {
	repo    Repository
	entries EntryReader
}

// New creates a tag service.
func New(repo Repository, entries EntryReader) *Service {
	return &Service{repo: repo, entries: entries}
}

// Create validates and stores a new tag.
func (s *Service) Create(ctx context.Context, t domtag.Tag) (domtag.Tag, error) {
	if t.Name == "" {
		return domtag.Tag{}, fmt.Errorf("tag name is required: %w", domain.ErrValidation)
	}

	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	if err := s.repo.Create(ctx, t); err != nil {
		return domtag.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	return t, nil
}

// Get retrieves one tag.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domtag.Tag, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return domtag.Tag{}, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

// List returns tags, optionally filtered by category.
func (s *Service) List(ctx context.Context, category string) ([]domtag.Tag, error) {
	tags, err := s.repo.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// TagEntry attaches a tag to an entry. Both must exist.
func (s *Service) TagEntry(ctx context.Context, entryID, tagID uuid.UUID, addedBy string) error {
	if _, err := s.entries.Get(ctx, entryID); err != nil {
		return fmt.Errorf("get entry: %w", err)
	}
	if _, err := s.repo.Get(ctx, tagID); err != nil {
		return fmt.Errorf("get tag: %w", err)
	}

	link := domtag.EntryTag{
		ID:        uuid.New(),
		EntryID:   entryID,
		TagID:     tagID,
		AddedBy:   addedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Link(ctx, link); err != nil {
		return fmt.Errorf("tag entry: %w", err)
	}
	return nil
}

// UntagEntry removes a tag from an entry.
func (s *Service) UntagEntry(ctx context.Context, entryID, tagID uuid.UUID) error {
	if err := s.repo.Unlink(ctx, entryID, tagID); err != nil {
		return fmt.Errorf("untag entry: %w", err)
	}
	return nil
}

// ListEntryTags returns the tags attached to an entry.
func (s *Service) ListEntryTags(ctx context.Context, entryID uuid.UUID) ([]domtag.Tag, error) {
	if _, err := s.entries.Get(ctx, entryID); err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	tags, err := s.repo.ListByEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("list entry tags: %w", err)
	}
	return tags, nil
}
