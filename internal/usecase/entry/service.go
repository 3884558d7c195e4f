// Package entry implements entry operations: CRUD, workflow transitions
// and the write-then-propagate sequence against the search index.
package entry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kedb-platform/kedb/internal/domain"
	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
	"github.com/kedb-platform/kedb/internal/metrics"
	entryrepo "github.com/kedb-platform/kedb/internal/repository/entry"
	"github.com/kedb-platform/kedb/internal/search"
)

// Service handles entry operations. The store write is the failure
// boundary: index propagation runs after it and its errors are absorbed.
type Service struct {
	repo            Repository
	solutions       SolutionLister
	index           Indexer
	auditor         Recorder
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
}

// New creates an entry service.
func New(repo Repository, solutions SolutionLister, index Indexer, auditor Recorder, logger *zap.Logger) *Service {
	return &Service{
		repo:            repo,
		solutions:       solutions,
		index:           index,
		auditor:         auditor,
		logger:          logger,
		defaultPageSize: 20,
		maxPageSize:     100,
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

// Create validates and stores a new entry with its symptoms and incidents.
// New entries always start in draft, whatever state the caller supplied.
func (s *Service) Create(ctx context.Context, e *domentry.Entry, createdBy string) (domentry.Entry, error) {
	if e.Title == "" {
		return domentry.Entry{}, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if e.Severity == "" {
		e.Severity = domentry.SeverityMedium
	}
	if !e.Severity.IsValid() {
		return domentry.Entry{}, fmt.Errorf("unknown severity %q: %w", e.Severity, domain.ErrValidation)
	}

	now := time.Now().UTC()
	e.ID = uuid.New()
	e.WorkflowState = workflow.Draft
	e.Status = domentry.StatusActive
	e.CreatedBy = createdBy
	e.UpdatedBy = createdBy
	e.CreatedAt = now
	e.UpdatedAt = now
	e.ApprovedBy = ""
	e.MergedInto = uuid.Nil
	e.PublishedAt = time.Time{}

	for i := range e.Symptoms {
		e.Symptoms[i].ID = uuid.New()
		e.Symptoms[i].EntryID = e.ID
		e.Symptoms[i].OrderIndex = i
		e.Symptoms[i].CreatedAt = now
	}
	for i := range e.Incidents {
		e.Incidents[i].ID = uuid.New()
		e.Incidents[i].EntryID = e.ID
		e.Incidents[i].CreatedAt = now
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return domentry.Entry{}, fmt.Errorf("create entry: %w", err)
	}

	s.record(ctx, *e, domaudit.ActionCreate, createdBy, nil)
	s.propagateUpsert(ctx, *e)
	return *e, nil
}

// Get retrieves an entry with symptoms, incidents and solutions.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domentry.Entry, error) {
	e, err := s.repo.GetWithRelations(ctx, id)
	if err != nil {
		return domentry.Entry{}, fmt.Errorf("get entry: %w", err)
	}

	e.Solutions, err = s.solutions.ListByEntry(ctx, id)
	if err != nil {
		return domentry.Entry{}, fmt.Errorf("list entry solutions: %w", err)
	}
	return e, nil
}

// List returns a page of entries plus the total matching count.
func (s *Service) List(ctx context.Context, f domentry.ListFilter, limit, offset int) ([]domentry.Entry, int, error) {
	if f.WorkflowState != "" && !f.WorkflowState.IsValid() {
		return nil, 0, fmt.Errorf("unknown workflow state %q: %w", f.WorkflowState, domain.ErrValidation)
	}
	if f.Severity != "" && !f.Severity.IsValid() {
		return nil, 0, fmt.Errorf("unknown severity %q: %w", f.Severity, domain.ErrValidation)
	}
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}
	return entries, total, nil
}

// Update applies a partial update. Only draft and in_review entries accept
// edits.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u domentry.Update, updatedBy string) (domentry.Entry, error) {
	if u.Severity != nil && !u.Severity.IsValid() {
		return domentry.Entry{}, fmt.Errorf("unknown severity %q: %w", *u.Severity, domain.ErrValidation)
	}

	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return domentry.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	if !workflow.AllowsUpdate(e.WorkflowState) {
		return domentry.Entry{}, workflow.NewUpdateError(e.WorkflowState)
	}

	if !u.IsEmpty() {
		if err := s.repo.Update(ctx, id, u, updatedBy); err != nil {
			return domentry.Entry{}, fmt.Errorf("update entry: %w", err)
		}
	}

	updated, err := s.repo.GetWithRelations(ctx, id)
	if err != nil {
		return domentry.Entry{}, fmt.Errorf("reload entry: %w", err)
	}

	s.record(ctx, updated, domaudit.ActionUpdate, updatedBy, updateDiff(e, updated))
	s.propagateUpsert(ctx, updated)
	return updated, nil
}

// Retire soft-deletes an entry: the row transitions to retired and stays
// queryable in the store, while the document leaves the search index.
func (s *Service) Retire(ctx context.Context, id uuid.UUID, userID string) error {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}
	if !workflow.CanTransition(e.WorkflowState, workflow.Retired) {
		return workflow.NewTransitionError(e.WorkflowState, workflow.Retired)
	}

	t := entryrepo.TransitionState{From: e.WorkflowState, To: workflow.Retired, UpdatedBy: userID}
	if err := s.repo.UpdateWorkflowState(ctx, id, t); err != nil {
		return fmt.Errorf("retire entry: %w", err)
	}

	s.record(ctx, e, domaudit.ActionRetire, userID, map[string]any{
		"workflow_state": map[string]any{"old": string(e.WorkflowState), "new": string(workflow.Retired)},
	})
	s.propagateDelete(ctx, id)
	return nil
}

// TransitionWorkflow moves an entry to a new workflow state. The write is
// conditional on the observed current state: a concurrent transition that
// got there first surfaces as ErrConflict rather than silently overwriting.
func (s *Service) TransitionWorkflow(
	ctx context.Context, id uuid.UUID, to workflow.State,
	approvedBy string, mergedInto uuid.UUID, userID string,
) (domentry.Entry, error) {
	if !to.IsValid() {
		return domentry.Entry{}, fmt.Errorf("unknown workflow state %q: %w", to, domain.ErrValidation)
	}

	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return domentry.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	if !workflow.CanTransition(e.WorkflowState, to) {
		return domentry.Entry{}, workflow.NewTransitionError(e.WorkflowState, to)
	}

	if to == workflow.Merged && mergedInto == uuid.Nil {
		return domentry.Entry{}, fmt.Errorf("merged_into target is required when merging: %w", domain.ErrValidation)
	}
	if to != workflow.Merged && mergedInto != uuid.Nil {
		return domentry.Entry{}, fmt.Errorf("merged_into is only valid when merging: %w", domain.ErrValidation)
	}
	if mergedInto == id {
		return domentry.Entry{}, fmt.Errorf("entry cannot be merged into itself: %w", domain.ErrValidation)
	}
	if mergedInto != uuid.Nil {
		if _, err := s.repo.Get(ctx, mergedInto); err != nil {
			return domentry.Entry{}, fmt.Errorf("merge target: %w", err)
		}
	}

	t := entryrepo.TransitionState{
		From:       e.WorkflowState,
		To:         to,
		ApprovedBy: approvedBy,
		MergedInto: mergedInto,
		UpdatedBy:  userID,
	}
	if to == workflow.Published {
		t.PublishedAt = time.Now().UTC()
	}

	if err := s.repo.UpdateWorkflowState(ctx, id, t); err != nil {
		return domentry.Entry{}, fmt.Errorf("transition entry: %w", err)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return domentry.Entry{}, fmt.Errorf("reload entry: %w", err)
	}

	s.record(ctx, updated, domaudit.ActionTransition, userID, map[string]any{
		"workflow_state": map[string]any{"old": string(e.WorkflowState), "new": string(to)},
	})
	// Transitions alone do not touch the index; the document keeps its
	// previous workflow_state until the next update or reindex sweep.
	return updated, nil
}

// AddSymptom appends a symptom at the next order index and refreshes the
// entry's search document.
func (s *Service) AddSymptom(ctx context.Context, entryID uuid.UUID, sym domentry.Symptom, userID string) (domentry.Symptom, error) {
	if sym.Description == "" {
		return domentry.Symptom{}, fmt.Errorf("symptom description is required: %w", domain.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, entryID); err != nil {
		return domentry.Symptom{}, fmt.Errorf("get entry: %w", err)
	}

	sym.ID = uuid.New()
	sym.EntryID = entryID
	sym.CreatedAt = time.Now().UTC()
	if err := s.repo.AddSymptom(ctx, &sym); err != nil {
		return domentry.Symptom{}, fmt.Errorf("add symptom: %w", err)
	}

	s.auditor.Record(ctx, domaudit.Record{
		EntityType: domaudit.EntitySymptom,
		EntityID:   sym.ID.String(),
		Action:     domaudit.ActionCreate,
		UserID:     userID,
	})

	if updated, err := s.repo.GetWithRelations(ctx, entryID); err == nil {
		s.propagateUpsert(ctx, updated)
	}
	return sym, nil
}

// AddIncident links an incident occurrence to the entry.
func (s *Service) AddIncident(ctx context.Context, entryID uuid.UUID, inc domentry.Incident, userID string) (domentry.Incident, error) {
	if inc.IncidentID == "" {
		return domentry.Incident{}, fmt.Errorf("incident id is required: %w", domain.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, entryID); err != nil {
		return domentry.Incident{}, fmt.Errorf("get entry: %w", err)
	}

	inc.ID = uuid.New()
	inc.EntryID = entryID
	inc.CreatedAt = time.Now().UTC()
	if err := s.repo.AddIncident(ctx, inc); err != nil {
		return domentry.Incident{}, fmt.Errorf("add incident: %w", err)
	}

	s.auditor.Record(ctx, domaudit.Record{
		EntityType: domaudit.EntityIncident,
		EntityID:   inc.ID.String(),
		Action:     domaudit.ActionCreate,
		UserID:     userID,
	})
	return inc, nil
}

// propagateUpsert pushes the entry's document to the index. Failures are
// logged and counted, never surfaced: the authoritative write already
// succeeded.
func (s *Service) propagateUpsert(ctx context.Context, e domentry.Entry) {
	if err := s.index.IndexEntry(ctx, search.NewEntryDocument(e)); err != nil {
		s.logger.Warn("entry index propagation failed",
			zap.String("entry_id", e.ID.String()),
			zap.Error(err),
		)
		metrics.IndexPropagationFailures.WithLabelValues(search.IndexEntries, "upsert").Inc()
	}
}

func (s *Service) propagateDelete(ctx context.Context, id uuid.UUID) {
	if err := s.index.DeleteEntry(ctx, id.String()); err != nil {
		s.logger.Warn("entry index delete failed",
			zap.String("entry_id", id.String()),
			zap.Error(err),
		)
		metrics.IndexPropagationFailures.WithLabelValues(search.IndexEntries, "delete").Inc()
	}
}

func (s *Service) record(ctx context.Context, e domentry.Entry, action, userID string, diff map[string]any) {
	s.auditor.Record(ctx, domaudit.Record{
		EntityType: domaudit.EntityEntry,
		EntityID:   e.ID.String(),
		Action:     action,
		Diff:       diff,
		UserID:     userID,
	})
}

// updateDiff captures scalar field changes between the entry before and
// after an update.
func updateDiff(before, after domentry.Entry) map[string]any {
	diff := map[string]any{}
	set := func(field, old, new string) {
		if old != new {
			diff[field] = map[string]any{"old": old, "new": new}
		}
	}
	set("title", before.Title, after.Title)
	set("description", before.Description, after.Description)
	set("severity", string(before.Severity), string(after.Severity))
	set("status", string(before.Status), string(after.Status))
	set("root_cause", before.RootCause, after.RootCause)
	set("impact_summary", before.ImpactSummary, after.ImpactSummary)
	set("detection_method", before.DetectionMethod, after.DetectionMethod)
	if len(diff) == 0 {
		return nil
	}
	return diff
}
