// Package review implements review sessions: the human gate an entry
// passes through before publication. Reviews record opinions; they never
// drive workflow transitions themselves.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domreview "github.com/kedb-platform/kedb/internal/domain/review"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
)

// Service handles review operations.
type Service struct {
	repo    Repository
	entries EntryReader
}

// New creates a review service.
func New(repo Repository, entries EntryReader) *Service {
	return &Service{repo: repo, entries: entries}
}

// Create opens a review for an entry currently in review.
func (s *Service) Create(ctx context.Context, entryID uuid.UUID, rcaText, comments string, participants []domreview.Participant) (domreview.Review, error) {
	e, err := s.entries.Get(ctx, entryID)
	if err != nil {
		return domreview.Review{}, fmt.Errorf("get entry: %w", err)
	}
	if e.WorkflowState != workflow.InReview {
		return domreview.Review{}, fmt.Errorf(
			"entry %s is %s, reviews require in_review: %w",
			entryID, e.WorkflowState, domain.ErrWorkflow)
	}
	if len(participants) == 0 {
		return domreview.Review{}, fmt.Errorf("at least one participant is required: %w", domain.ErrValidation)
	}
	for _, p := range participants {
		if p.UserID == "" {
			return domreview.Review{}, fmt.Errorf("participant user id is required: %w", domain.ErrValidation)
		}
		if !p.Role.IsValid() {
			return domreview.Review{}, fmt.Errorf("unknown participant role %q: %w", p.Role, domain.ErrValidation)
		}
	}

	now := time.Now().UTC()
	rev := domreview.Review{
		ID:           uuid.New(),
		EntryID:      entryID,
		Status:       domreview.StatusPending,
		Comments:     comments,
		RCAText:      rcaText,
		CreatedAt:    now,
		Participants: participants,
	}
	for i := range rev.Participants {
		rev.Participants[i].ID = uuid.New()
		rev.Participants[i].ReviewID = rev.ID
		rev.Participants[i].CreatedAt = now
		rev.Participants[i].Approved = nil
	}

	if err := s.repo.Create(ctx, &rev); err != nil {
		return domreview.Review{}, fmt.Errorf("create review: %w", err)
	}
	return rev, nil
}

// Get retrieves a review with its participants.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domreview.Review, error) {
	rev, err := s.repo.Get(ctx, id)
	if err != nil {
		return domreview.Review{}, fmt.Errorf("get review: %w", err)
	}
	return rev, nil
}

// ListByEntry returns an entry's reviews, newest first.
func (s *Service) ListByEntry(ctx context.Context, entryID uuid.UUID) ([]domreview.Review, error) {
	if _, err := s.entries.Get(ctx, entryID); err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	revs, err := s.repo.ListByEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return revs, nil
}

// Respond records a participant's approval decision on a pending review.
func (s *Service) Respond(ctx context.Context, reviewID uuid.UUID, userID string, approved bool, comments string) error {
	rev, err := s.repo.Get(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("get review: %w", err)
	}
	if rev.Status.Terminal() {
		return fmt.Errorf("review %s already %s: %w", reviewID, rev.Status, domain.ErrConflict)
	}

	if err := s.repo.Respond(ctx, reviewID, userID, approved, comments); err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

// Complete closes a pending review with a terminal status.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, status domreview.Status) (domreview.Review, error) {
	if !status.Terminal() {
		return domreview.Review{}, fmt.Errorf("completion status %q is not terminal: %w", status, domain.ErrValidation)
	}

	if err := s.repo.Complete(ctx, id, status); err != nil {
		return domreview.Review{}, fmt.Errorf("complete review: %w", err)
	}

	rev, err := s.repo.Get(ctx, id)
	if err != nil {
		return domreview.Review{}, fmt.Errorf("reload review: %w", err)
	}
	return rev, nil
}
