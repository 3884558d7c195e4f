// Package solution implements solution and step operations with the same
// write-then-propagate contract as entries. Unlike entries, solution
// delete is a hard delete of the row plus index removal.
package solution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kedb-platform/kedb/internal/domain"
	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	"github.com/kedb-platform/kedb/internal/metrics"
	"github.com/kedb-platform/kedb/internal/search"
)

// Service handles solution operations.
type Service struct {
	repo    Repository
	entries EntryReader
	index   Indexer
	auditor Recorder
	logger  *zap.Logger
}

// New creates a solution service.
func New(repo Repository, entries EntryReader, index Indexer, auditor Recorder, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		entries: entries,
		index:   index,
		auditor: auditor,
		logger:  logger,
	}
}

// Create validates and stores a new solution with its steps.
func (s *Service) Create(ctx context.Context, sol *domsol.Solution, createdBy string) (domsol.Solution, error) {
	if sol.Title == "" {
		return domsol.Solution{}, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if sol.Type == "" {
		sol.Type = domsol.TypeWorkaround
	}
	if !sol.Type.IsValid() {
		return domsol.Solution{}, fmt.Errorf("unknown solution type %q: %w", sol.Type, domain.ErrValidation)
	}
	if _, err := s.entries.Get(ctx, sol.EntryID); err != nil {
		return domsol.Solution{}, fmt.Errorf("get entry: %w", err)
	}

	now := time.Now().UTC()
	sol.ID = uuid.New()
	sol.CreatedBy = createdBy
	sol.UpdatedBy = createdBy
	sol.CreatedAt = now
	sol.UpdatedAt = now
	for i := range sol.Steps {
		sol.Steps[i].ID = uuid.New()
		sol.Steps[i].SolutionID = sol.ID
		sol.Steps[i].OrderIndex = i
		sol.Steps[i].CreatedAt = now
	}

	if err := s.repo.Create(ctx, sol); err != nil {
		return domsol.Solution{}, fmt.Errorf("create solution: %w", err)
	}

	s.record(ctx, sol.ID, domaudit.ActionCreate, createdBy)
	s.propagateUpsert(ctx, *sol)
	return *sol, nil
}

// Get retrieves a solution with its steps.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domsol.Solution, error) {
	sol, err := s.repo.GetWithSteps(ctx, id)
	if err != nil {
		return domsol.Solution{}, fmt.Errorf("get solution: %w", err)
	}
	return sol, nil
}

// ListByEntry returns the entry's solutions with steps.
func (s *Service) ListByEntry(ctx context.Context, entryID uuid.UUID) ([]domsol.Solution, error) {
	if _, err := s.entries.Get(ctx, entryID); err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	sols, err := s.repo.ListByEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("list solutions: %w", err)
	}
	return sols, nil
}

// Update applies a partial update and refreshes the search document.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u domsol.Update, updatedBy string) (domsol.Solution, error) {
	if u.Type != nil && !u.Type.IsValid() {
		return domsol.Solution{}, fmt.Errorf("unknown solution type %q: %w", *u.Type, domain.ErrValidation)
	}

	if err := s.repo.Update(ctx, id, u, updatedBy); err != nil {
		return domsol.Solution{}, fmt.Errorf("update solution: %w", err)
	}

	updated, err := s.repo.GetWithSteps(ctx, id)
	if err != nil {
		return domsol.Solution{}, fmt.Errorf("reload solution: %w", err)
	}

	s.record(ctx, id, domaudit.ActionUpdate, updatedBy)
	s.propagateUpsert(ctx, updated)
	return updated, nil
}

// Delete hard-deletes the solution and its steps, then removes its
// document from the index. The store delete comes first: if it fails,
// nothing is removed anywhere.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete solution: %w", err)
	}

	s.record(ctx, id, domaudit.ActionDelete, userID)
	if err := s.index.DeleteSolution(ctx, id.String()); err != nil {
		s.logger.Warn("solution index delete failed",
			zap.String("solution_id", id.String()),
			zap.Error(err),
		)
		metrics.IndexPropagationFailures.WithLabelValues(search.IndexSolutions, "delete").Inc()
	}
	return nil
}

// AddStep appends a step at the next order index.
func (s *Service) AddStep(ctx context.Context, solutionID uuid.UUID, step domsol.Step, userID string) (domsol.Step, error) {
	if step.Action == "" {
		return domsol.Step{}, fmt.Errorf("step action is required: %w", domain.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, solutionID); err != nil {
		return domsol.Step{}, fmt.Errorf("get solution: %w", err)
	}

	step.ID = uuid.New()
	step.SolutionID = solutionID
	step.CreatedAt = time.Now().UTC()
	if err := s.repo.AddStep(ctx, &step); err != nil {
		return domsol.Step{}, fmt.Errorf("add step: %w", err)
	}

	s.recordStep(ctx, step.ID, domaudit.ActionCreate, userID)
	s.reindex(ctx, solutionID)
	return step, nil
}

// UpdateStep applies a partial step update.
func (s *Service) UpdateStep(ctx context.Context, solutionID, stepID uuid.UUID, u domsol.StepUpdate, userID string) (domsol.Step, error) {
	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return domsol.Step{}, fmt.Errorf("get step: %w", err)
	}
	if step.SolutionID != solutionID {
		return domsol.Step{}, fmt.Errorf("step %s not in solution %s: %w", stepID, solutionID, domain.ErrNotFound)
	}

	if err := s.repo.UpdateStep(ctx, stepID, u); err != nil {
		return domsol.Step{}, fmt.Errorf("update step: %w", err)
	}

	updated, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return domsol.Step{}, fmt.Errorf("reload step: %w", err)
	}

	s.recordStep(ctx, stepID, domaudit.ActionUpdate, userID)
	s.reindex(ctx, solutionID)
	return updated, nil
}

// DeleteStep removes one step.
func (s *Service) DeleteStep(ctx context.Context, solutionID, stepID uuid.UUID, userID string) error {
	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return fmt.Errorf("get step: %w", err)
	}
	if step.SolutionID != solutionID {
		return fmt.Errorf("step %s not in solution %s: %w", stepID, solutionID, domain.ErrNotFound)
	}

	if err := s.repo.DeleteStep(ctx, stepID); err != nil {
		return fmt.Errorf("delete step: %w", err)
	}

	s.recordStep(ctx, stepID, domaudit.ActionDelete, userID)
	s.reindex(ctx, solutionID)
	return nil
}

// reindex refreshes the search document after a step change.
func (s *Service) reindex(ctx context.Context, solutionID uuid.UUID) {
	if sol, err := s.repo.GetWithSteps(ctx, solutionID); err == nil {
		s.propagateUpsert(ctx, sol)
	}
}

func (s *Service) propagateUpsert(ctx context.Context, sol domsol.Solution) {
	if err := s.index.IndexSolution(ctx, search.NewSolutionDocument(sol)); err != nil {
		s.logger.Warn("solution index propagation failed",
			zap.String("solution_id", sol.ID.String()),
			zap.Error(err),
		)
		metrics.IndexPropagationFailures.WithLabelValues(search.IndexSolutions, "upsert").Inc()
	}
}

func (s *Service) record(ctx context.Context, id uuid.UUID, action, userID string) {
	s.auditor.Record(ctx, domaudit.Record{
		EntityType: domaudit.EntitySolution,
		EntityID:   id.String(),
		Action:     action,
		UserID:     userID,
	})
}

func (s *Service) recordStep(ctx context.Context, id uuid.UUID, action, userID string) {
	s.auditor.Record(ctx, domaudit.Record{
		EntityType: domaudit.EntityStep,
		EntityID:   id.String(),
		Action:     action,
		UserID:     userID,
	})
}
