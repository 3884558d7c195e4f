package audit

import (
	"context"

	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
)

// Repository defines the storage contract for audit records.
type Repository interface {
	Insert(ctx context.Context, rec domaudit.Record) error
	List(ctx context.Context, filter domaudit.ListFilter, limit, offset int) ([]domaudit.Record, error)
}
