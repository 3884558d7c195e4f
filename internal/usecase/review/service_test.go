package review

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domreview "github.com/kedb-platform/kedb/internal/domain/review"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
)

type mockRepo struct {
	reviews map[uuid.UUID]domreview.Review
}

func newMockRepo() *mockRepo {
	return &mockRepo{reviews: map[uuid.UUID]domreview.Review{}}
}

func (m *mockRepo) Create(_ context.Context, rev *domreview.Review) error {
	m.reviews[rev.ID] = *rev
	return nil
}

func (m *mockRepo) Get(_ context.Context, id uuid.UUID) (domreview.Review, error) {
	rev, ok := m.reviews[id]
	if !ok {
		return domreview.Review{}, fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	return rev, nil
}

func (m *mockRepo) ListByEntry(_ context.Context, entryID uuid.UUID) ([]domreview.Review, error) {
	var out []domreview.Review
	for _, rev := range m.reviews {
		if rev.EntryID == entryID {
			out = append(out, rev)
		}
	}
	return out, nil
}

func (m *mockRepo) Respond(_ context.Context, reviewID uuid.UUID, userID string, approved bool, comments string) error {
	rev, ok := m.reviews[reviewID]
	if !ok {
		return fmt.Errorf("review %s: %w", reviewID, domain.ErrNotFound)
	}
	for i := range rev.Participants {
		if rev.Participants[i].UserID == userID {
			rev.Participants[i].Approved = &approved
			rev.Participants[i].Comments = comments
			rev.Participants[i].RespondedAt = time.Now().UTC()
			m.reviews[reviewID] = rev
			return nil
		}
	}
	return fmt.Errorf("participant %s: %w", userID, domain.ErrNotFound)
}

func (m *mockRepo) Complete(_ context.Context, id uuid.UUID, status domreview.Status) error {
	rev, ok := m.reviews[id]
	if !ok {
		return fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	if rev.Status != domreview.StatusPending {
		return fmt.Errorf("review %s already %s: %w", id, rev.Status, domain.ErrConflict)
	}
	rev.Status = status
	rev.CompletedAt = time.Now().UTC()
	m.reviews[id] = rev
	return nil
}

type mockEntries struct {
	entries map[uuid.UUID]domentry.Entry
}

func (m *mockEntries) Get(_ context.Context, id uuid.UUID) (domentry.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return domentry.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

func setup(state workflow.State) (*Service, *mockRepo, uuid.UUID) {
	repo := newMockRepo()
	entryID := uuid.New()
	entries := &mockEntries{entries: map[uuid.UUID]domentry.Entry{
		entryID: {ID: entryID, WorkflowState: state},
	}}
	return New(repo, entries), repo, entryID
}

func participants() []domreview.Participant {
	return []domreview.Participant{
		{UserID: "bob", Role: domreview.RoleLead},
		{UserID: "carol", Role: domreview.RoleReviewer},
	}
}

func TestCreate_RequiresInReviewEntry(t *testing.T) {
	svc, _, entryID := setup(workflow.Draft)

	_, err := svc.Create(context.Background(), entryID, "", "", participants())
	if !errors.Is(err, domain.ErrWorkflow) {
		t.Fatalf("expected ErrWorkflow for draft entry, got %v", err)
	}
}

func TestCreate_ValidatesParticipants(t *testing.T) {
	svc, _, entryID := setup(workflow.InReview)
	ctx := context.Background()

	if _, err := svc.Create(ctx, entryID, "", "", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for no participants, got %v", err)
	}

	bad := []domreview.Participant{{UserID: "bob", Role: "manager"}}
	if _, err := svc.Create(ctx, entryID, "", "", bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad role, got %v", err)
	}
}

func TestCreate_StartsPending(t *testing.T) {
	svc, _, entryID := setup(workflow.InReview)

	rev, err := svc.Create(context.Background(), entryID, "root cause text", "", participants())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rev.Status != domreview.StatusPending {
		t.Errorf("status = %s, want pending", rev.Status)
	}
	if len(rev.Participants) != 2 || rev.Participants[0].ReviewID != rev.ID {
		t.Errorf("participants not wired: %+v", rev.Participants)
	}
}

func TestRespond_TerminalReviewRejected(t *testing.T) {
	svc, repo, entryID := setup(workflow.InReview)
	ctx := context.Background()

	rev, err := svc.Create(ctx, entryID, "", "", participants())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Respond(ctx, rev.ID, "carol", true, "LGTM"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	stored := repo.reviews[rev.ID]
	stored.Status = domreview.StatusApproved
	repo.reviews[rev.ID] = stored

	err = svc.Respond(ctx, rev.ID, "bob", true, "")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on completed review, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	svc, _, entryID := setup(workflow.InReview)
	ctx := context.Background()

	rev, err := svc.Create(ctx, entryID, "", "", participants())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Complete(ctx, rev.ID, domreview.StatusPending); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for non-terminal status, got %v", err)
	}

	completed, err := svc.Complete(ctx, rev.ID, domreview.StatusApproved)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != domreview.StatusApproved || completed.CompletedAt.IsZero() {
		t.Errorf("completion not applied: %+v", completed)
	}

	if _, err := svc.Complete(ctx, rev.ID, domreview.StatusRejected); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on second completion, got %v", err)
	}
}
