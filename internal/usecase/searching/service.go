// Package searching implements search queries against the document index
// and the bulk reindex sweep that rebuilds it from the store.
package searching

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kedb-platform/kedb/internal/domain"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
	"github.com/kedb-platform/kedb/internal/metrics"
	"github.com/kedb-platform/kedb/internal/search"
)

// EntryFilters narrows an entry search. Empty fields are skipped.
type EntryFilters struct {
	Severity      string
	WorkflowState string
	CreatedBy     string
}

// SolutionFilters narrows a solution search.
type SolutionFilters struct {
	SolutionType string
	EntryID      string
}

// EntryPage is one page of entry search results.
type EntryPage struct {
	Hits           []search.EntryHit
	EstimatedTotal int
	TookMS         int64
}

// SolutionPage is one page of solution search results.
type SolutionPage struct {
	Hits           []search.SolutionHit
	EstimatedTotal int
	TookMS         int64
}

// ReindexReport summarizes a reindex sweep. Failed documents are skipped,
// not retried: the sweep itself is the recovery path.
type ReindexReport struct {
	EntriesIndexed   int
	SolutionsIndexed int
	Failures         int
}

// Service handles search queries and reindexing.
type Service struct {
	index           Index
	entries         EntrySource
	solutions       SolutionSource
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
	sweepPageSize   int
}

// New creates a search service.
func New(index Index, entries EntrySource, solutions SolutionSource, logger *zap.Logger) *Service {
	return &Service{
		index:           index,
		entries:         entries,
		solutions:       solutions,
		logger:          logger,
		defaultPageSize: 20,
		maxPageSize:     100,
		sweepPageSize:   200,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// SearchEntries queries the entries index. An unreachable index surfaces
// as ErrSearchUnavailable: a live query has no fallback.
func (s *Service) SearchEntries(ctx context.Context, query string, f EntryFilters, limit, offset int) (EntryPage, error) {
	limit, offset = s.clamp(limit, offset)
	filter := search.CompileFilters([]search.Filter{
		search.Eq("severity", f.Severity),
		search.Eq("workflow_state", f.WorkflowState),
		search.Eq("created_by", f.CreatedBy),
	})

	start := time.Now()
	result, err := s.index.SearchEntries(ctx, query, filter, limit, offset)
	elapsed := time.Since(start)
	metrics.SearchRequestDuration.WithLabelValues(search.IndexEntries).Observe(elapsed.Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(search.IndexEntries, "error").Inc()
		return EntryPage{}, fmt.Errorf("search entries: %w: %w", domain.ErrSearchUnavailable, err)
	}
	metrics.SearchRequestsTotal.WithLabelValues(search.IndexEntries, "ok").Inc()

	return EntryPage{
		Hits:           result.Hits,
		EstimatedTotal: result.EstimatedTotalHits,
		TookMS:         elapsed.Milliseconds(),
	}, nil
}

// SearchSolutions queries the solutions index.
func (s *Service) SearchSolutions(ctx context.Context, query string, f SolutionFilters, limit, offset int) (SolutionPage, error) {
	limit, offset = s.clamp(limit, offset)
	filter := search.CompileFilters([]search.Filter{
		search.Eq("solution_type", f.SolutionType),
		search.Eq("entry_id", f.EntryID),
	})

	start := time.Now()
	result, err := s.index.SearchSolutions(ctx, query, filter, limit, offset)
	elapsed := time.Since(start)
	metrics.SearchRequestDuration.WithLabelValues(search.IndexSolutions).Observe(elapsed.Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(search.IndexSolutions, "error").Inc()
		return SolutionPage{}, fmt.Errorf("search solutions: %w: %w", domain.ErrSearchUnavailable, err)
	}
	metrics.SearchRequestsTotal.WithLabelValues(search.IndexSolutions, "ok").Inc()

	return SolutionPage{
		Hits:           result.Hits,
		EstimatedTotal: result.EstimatedTotalHits,
		TookMS:         elapsed.Milliseconds(),
	}, nil
}

// EnsureIndexes creates and configures both indexes. Idempotent.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	if err := s.index.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

// Health reports index availability.
func (s *Service) Health(ctx context.Context) error {
	return s.index.Health(ctx)
}

// Reindex rebuilds the index from the store: the manual recovery path for
// propagation failures. Per-document errors are logged and counted; the
// sweep keeps going.
func (s *Service) Reindex(ctx context.Context) (ReindexReport, error) {
	if err := s.index.EnsureIndexes(ctx); err != nil {
		return ReindexReport{}, fmt.Errorf("ensure indexes: %w", err)
	}

	var report ReindexReport
	if err := s.sweepEntries(ctx, &report); err != nil {
		return report, err
	}
	if err := s.sweepSolutions(ctx, &report); err != nil {
		return report, err
	}

	s.logger.Info("reindex sweep finished",
		zap.Int("entries", report.EntriesIndexed),
		zap.Int("solutions", report.SolutionsIndexed),
		zap.Int("failures", report.Failures),
	)
	return report, nil
}

func (s *Service) sweepEntries(ctx context.Context, report *ReindexReport) error {
	for offset := 0; ; offset += s.sweepPageSize {
		page, err := s.entries.List(ctx, domentry.ListFilter{}, s.sweepPageSize, offset)
		if err != nil {
			return fmt.Errorf("list entries at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, e := range page {
			// Retiring an entry deletes its document; the sweep must not
			// resurrect it.
			if e.WorkflowState == workflow.Retired {
				continue
			}
			full, err := s.entries.GetWithRelations(ctx, e.ID)
			if err != nil {
				s.reindexFailure(report, "load entry", e.ID.String(), err)
				continue
			}
			if err := s.index.IndexEntry(ctx, search.NewEntryDocument(full)); err != nil {
				s.reindexFailure(report, "index entry", e.ID.String(), err)
				metrics.ReindexDocumentsTotal.WithLabelValues(search.IndexEntries, "error").Inc()
				continue
			}
			report.EntriesIndexed++
			metrics.ReindexDocumentsTotal.WithLabelValues(search.IndexEntries, "ok").Inc()
		}
		if len(page) < s.sweepPageSize {
			return nil
		}
	}
}

func (s *Service) sweepSolutions(ctx context.Context, report *ReindexReport) error {
	for offset := 0; ; offset += s.sweepPageSize {
		page, err := s.solutions.ListAll(ctx, s.sweepPageSize, offset)
		if err != nil {
			return fmt.Errorf("list solutions at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, sol := range page {
			full, err := s.solutions.GetWithSteps(ctx, sol.ID)
			if err != nil {
				s.reindexFailure(report, "load solution", sol.ID.String(), err)
				continue
			}
			if err := s.index.IndexSolution(ctx, search.NewSolutionDocument(full)); err != nil {
				s.reindexFailure(report, "index solution", sol.ID.String(), err)
				metrics.ReindexDocumentsTotal.WithLabelValues(search.IndexSolutions, "error").Inc()
				continue
			}
			report.SolutionsIndexed++
			metrics.ReindexDocumentsTotal.WithLabelValues(search.IndexSolutions, "ok").Inc()
		}
		if len(page) < s.sweepPageSize {
			return nil
		}
	}
}

func (s *Service) reindexFailure(report *ReindexReport, op, id string, err error) {
	report.Failures++
	s.logger.Warn("reindex document failed",
		zap.String("op", op),
		zap.String("id", id),
		zap.Error(err),
	)
}

func (s *Service) clamp(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
