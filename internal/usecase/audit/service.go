package audit

import (
	"context"
	"fmt"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
)

// Service records and queries the audit trail. Recording never fails the
// caller: a mutation must not be rolled back because its audit write
// failed.
type Service struct {
	repo            Repository
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
}

// New creates an audit service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:            repo,
		logger:          logger,
		defaultPageSize: 50,
		maxPageSize:     200,
	}
}

// Record appends one audit record. Errors are logged and swallowed.
func (s *Service) Record(ctx context.Context, rec domaudit.Record) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.RequestID == "" {
		rec.RequestID = chiMiddleware.GetReqID(ctx)
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("entity_type", rec.EntityType),
			zap.String("entity_id", rec.EntityID),
			zap.String("action", rec.Action),
			zap.Error(err),
		)
	}
}

// List returns matching audit records, newest first.
func (s *Service) List(ctx context.Context, filter domaudit.ListFilter, limit, offset int) ([]domaudit.Record, error) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}
