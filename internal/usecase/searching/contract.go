package searching

import (
	"context"

	"github.com/google/uuid"

	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	"github.com/kedb-platform/kedb/internal/search"
)

// Index is the document index contract: queries, document writes and
// index lifecycle.
type Index interface {
	EnsureIndexes(ctx context.Context) error
	SearchEntries(ctx context.Context, query, filter string, limit, offset int) (search.EntryResult, error)
	SearchSolutions(ctx context.Context, query, filter string, limit, offset int) (search.SolutionResult, error)
	IndexEntry(ctx context.Context, doc search.EntryDocument) error
	IndexSolution(ctx context.Context, doc search.SolutionDocument) error
	Health(ctx context.Context) error
}

// EntrySource pages entries out of the store for the reindex sweep.
type EntrySource interface {
	List(ctx context.Context, f domentry.ListFilter, limit, offset int) ([]domentry.Entry, error)
	GetWithRelations(ctx context.Context, id uuid.UUID) (domentry.Entry, error)
}

// SolutionSource pages solutions out of the store for the reindex sweep.
type SolutionSource interface {
	ListAll(ctx context.Context, limit, offset int) ([]domsol.Solution, error)
	GetWithSteps(ctx context.Context, id uuid.UUID) (domsol.Solution, error)
}
