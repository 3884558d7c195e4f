package solution

import (
	"context"

	"github.com/google/uuid"

	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	"github.com/kedb-platform/kedb/internal/search"
)

// Repository defines the storage contract for solutions.
type Repository interface {
	Create(ctx context.Context, s *domsol.Solution) error
	Get(ctx context.Context, id uuid.UUID) (domsol.Solution, error)
	GetWithSteps(ctx context.Context, id uuid.UUID) (domsol.Solution, error)
	ListByEntry(ctx context.Context, entryID uuid.UUID) ([]domsol.Solution, error)
	Update(ctx context.Context, id uuid.UUID, u domsol.Update, updatedBy string) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddStep(ctx context.Context, step *domsol.Step) error
	GetStep(ctx context.Context, id uuid.UUID) (domsol.Step, error)
	UpdateStep(ctx context.Context, id uuid.UUID, u domsol.StepUpdate) error
	DeleteStep(ctx context.Context, id uuid.UUID) error
}

// EntryReader checks the parent entry exists.
type EntryReader interface {
	Get(ctx context.Context, id uuid.UUID) (domentry.Entry, error)
}

// Indexer is the best-effort secondary index for solution documents.
type Indexer interface {
	IndexSolution(ctx context.Context, doc search.SolutionDocument) error
	DeleteSolution(ctx context.Context, id string) error
}

// Recorder appends audit trail records.
type Recorder interface {
	Record(ctx context.Context, rec domaudit.Record)
}
