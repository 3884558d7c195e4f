package entry

import (
	"context"

	"github.com/google/uuid"

	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	entryrepo "github.com/kedb-platform/kedb/internal/repository/entry"
	"github.com/kedb-platform/kedb/internal/search"
)

// Repository defines the storage contract for entries.
type Repository interface {
	Create(ctx context.Context, e *domentry.Entry) error
	Get(ctx context.Context, id uuid.UUID) (domentry.Entry, error)
	GetWithRelations(ctx context.Context, id uuid.UUID) (domentry.Entry, error)
	List(ctx context.Context, f domentry.ListFilter, limit, offset int) ([]domentry.Entry, error)
	Count(ctx context.Context, f domentry.ListFilter) (int, error)
	Update(ctx context.Context, id uuid.UUID, u domentry.Update, updatedBy string) error
	UpdateWorkflowState(ctx context.Context, id uuid.UUID, t entryrepo.TransitionState) error
	AddSymptom(ctx context.Context, s *domentry.Symptom) error
	AddIncident(ctx context.Context, inc domentry.Incident) error
}

// SolutionLister loads an entry's solutions for the detail view.
type SolutionLister interface {
	ListByEntry(ctx context.Context, entryID uuid.UUID) ([]domsol.Solution, error)
}

// Indexer is the best-effort secondary index. Failures from it never fail
// the caller's operation.
type Indexer interface {
	IndexEntry(ctx context.Context, doc search.EntryDocument) error
	DeleteEntry(ctx context.Context, id string) error
}

// Recorder appends audit trail records.
type Recorder interface {
	Record(ctx context.Context, rec domaudit.Record)
}
