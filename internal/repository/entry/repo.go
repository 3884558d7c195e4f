// Package entry implements entry persistence on the relational store.
package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
	"github.com/kedb-platform/kedb/internal/store"
)

const entryColumns = `id, title, description, severity, workflow_state, status,
	created_by, updated_by, approved_by, merged_into,
	root_cause, impact_summary, detection_method,
	created_at, updated_at, published_at`

// Repo provides entry data access.
type Repo struct {
	db *sql.DB
}

// New creates an entry repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Create inserts the entry together with its symptoms and incidents in one
// transaction.
func (r *Repo) Create(ctx context.Context, e *domentry.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		store.FormatID(e.ID), e.Title, e.Description, string(e.Severity),
		string(e.WorkflowState), string(e.Status),
		e.CreatedBy, e.UpdatedBy, e.ApprovedBy, store.FormatID(e.MergedInto),
		e.RootCause, e.ImpactSummary, e.DetectionMethod,
		store.FormatTime(e.CreatedAt), store.FormatTime(e.UpdatedAt),
		store.FormatTime(e.PublishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	for _, s := range e.Symptoms {
		if err := insertSymptom(ctx, tx, s); err != nil {
			return err
		}
	}
	for _, inc := range e.Incidents {
		if err := insertIncident(ctx, tx, inc); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the entry's scalar fields.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (domentry.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = $1`, store.FormatID(id))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domentry.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domentry.Entry{}, fmt.Errorf("select entry: %w", err)
	}
	return e, nil
}

// GetWithRelations returns the entry with its symptoms (in order) and
// incidents. Solutions are loaded through the solution repository.
func (r *Repo) GetWithRelations(ctx context.Context, id uuid.UUID) (domentry.Entry, error) {
	e, err := r.Get(ctx, id)
	if err != nil {
		return domentry.Entry{}, err
	}

	e.Symptoms, err = r.listSymptoms(ctx, id)
	if err != nil {
		return domentry.Entry{}, err
	}
	e.Incidents, err = r.listIncidents(ctx, id)
	if err != nil {
		return domentry.Entry{}, err
	}
	return e, nil
}

// List returns entries matching the filter, newest first.
func (r *Repo) List(
	ctx context.Context, f domentry.ListFilter, limit, offset int,
) ([]domentry.Entry, error) {
	where, args := filterClause(f)
	query := `SELECT ` + entryColumns + ` FROM entries` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) +
		` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []domentry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

// Count returns the number of entries matching the filter.
func (r *Repo) Count(ctx context.Context, f domentry.ListFilter) (int, error) {
	where, args := filterClause(f)
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Update applies the partial update and refreshes updated_by/updated_at.
func (r *Repo) Update(ctx context.Context, id uuid.UUID, u domentry.Update, updatedBy string) error {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, v)
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Severity != nil {
		add("severity", string(*u.Severity))
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.RootCause != nil {
		add("root_cause", *u.RootCause)
	}
	if u.ImpactSummary != nil {
		add("impact_summary", *u.ImpactSummary)
	}
	if u.DetectionMethod != nil {
		add("detection_method", *u.DetectionMethod)
	}
	add("updated_by", updatedBy)
	add("updated_at", store.FormatTime(time.Now()))

	args = append(args, store.FormatID(id))
	query := "UPDATE entries SET " + strings.Join(sets, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// TransitionState is the conditional write behind a workflow transition.
type TransitionState struct {
	From        workflow.State
	To          workflow.State
	ApprovedBy  string
	MergedInto  uuid.UUID
	PublishedAt time.Time
	UpdatedBy   string
}

// UpdateWorkflowState performs the transition as a compare-and-set on the
// current state. A concurrent transition that moved the entry first
// surfaces as ErrConflict, a missing entry as ErrNotFound.
func (r *Repo) UpdateWorkflowState(ctx context.Context, id uuid.UUID, t TransitionState) error {
	sets := []string{
		"workflow_state = $1",
		"updated_by = $2",
		"updated_at = $3",
	}
	args := []any{string(t.To), t.UpdatedBy, store.FormatTime(time.Now())}

	if t.ApprovedBy != "" {
		sets = append(sets, fmt.Sprintf("approved_by = $%d", len(args)+1))
		args = append(args, t.ApprovedBy)
	}
	if t.MergedInto != uuid.Nil {
		sets = append(sets, fmt.Sprintf("merged_into = $%d", len(args)+1))
		args = append(args, store.FormatID(t.MergedInto))
	}
	if !t.PublishedAt.IsZero() {
		sets = append(sets, fmt.Sprintf("published_at = $%d", len(args)+1))
		args = append(args, store.FormatTime(t.PublishedAt))
	}

	query := "UPDATE entries SET " + strings.Join(sets, ", ") +
		fmt.Sprintf(" WHERE id = $%d AND workflow_state = $%d", len(args)+1, len(args)+2)
	args = append(args, store.FormatID(id), string(t.From))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update workflow state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update workflow state: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows: either the entry is gone or another writer won the race.
	var current string
	err = r.db.QueryRowContext(ctx,
		`SELECT workflow_state FROM entries WHERE id = $1`, store.FormatID(id)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update workflow state: %w", err)
	}
	return fmt.Errorf("entry %s moved to %s by a concurrent transition: %w",
		id, current, domain.ErrConflict)
}

// AddSymptom appends the symptom at the next order index and returns it
// with the assigned index.
func (r *Repo) AddSymptom(ctx context.Context, s *domentry.Symptom) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO entry_symptoms (id, entry_id, description, order_index, symptom_type, created_at)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(order_index) + 1, 0) FROM entry_symptoms WHERE entry_id = $2),
			$4, $5)
		RETURNING order_index`,
		store.FormatID(s.ID), store.FormatID(s.EntryID), s.Description,
		s.SymptomType, store.FormatTime(s.CreatedAt),
	).Scan(&s.OrderIndex)
	if err != nil {
		return fmt.Errorf("insert symptom: %w", err)
	}
	return nil
}

// AddIncident links an external incident to the entry.
func (r *Repo) AddIncident(ctx context.Context, inc domentry.Incident) error {
	return insertIncident(ctx, r.db, inc)
}

// --- helpers ---

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSymptom(ctx context.Context, ex execer, s domentry.Symptom) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO entry_symptoms (id, entry_id, description, order_index, symptom_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		store.FormatID(s.ID), store.FormatID(s.EntryID), s.Description,
		s.OrderIndex, s.SymptomType, store.FormatTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert symptom: %w", err)
	}
	return nil
}

func insertIncident(ctx context.Context, ex execer, inc domentry.Incident) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO entry_incidents
			(id, entry_id, incident_id, incident_source, incident_url, occurred_at, resolved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		store.FormatID(inc.ID), store.FormatID(inc.EntryID), inc.IncidentID,
		inc.Source, inc.URL,
		store.FormatTime(inc.OccurredAt), store.FormatTime(inc.ResolvedAt),
		store.FormatTime(inc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

func (r *Repo) listSymptoms(ctx context.Context, entryID uuid.UUID) ([]domentry.Symptom, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entry_id, description, order_index, symptom_type, created_at
		FROM entry_symptoms WHERE entry_id = $1 ORDER BY order_index`,
		store.FormatID(entryID))
	if err != nil {
		return nil, fmt.Errorf("list symptoms: %w", err)
	}
	defer rows.Close()

	var out []domentry.Symptom
	for rows.Next() {
		var s domentry.Symptom
		var id, eID, createdAt string
		if err := rows.Scan(&id, &eID, &s.Description, &s.OrderIndex, &s.SymptomType, &createdAt); err != nil {
			return nil, fmt.Errorf("scan symptom: %w", err)
		}
		s.ID = store.ParseID(id)
		s.EntryID = store.ParseID(eID)
		s.CreatedAt = store.ParseTime(createdAt)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list symptoms: %w", err)
	}
	return out, nil
}

func (r *Repo) listIncidents(ctx context.Context, entryID uuid.UUID) ([]domentry.Incident, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entry_id, incident_id, incident_source, incident_url,
			occurred_at, resolved_at, created_at
		FROM entry_incidents WHERE entry_id = $1 ORDER BY created_at`,
		store.FormatID(entryID))
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []domentry.Incident
	for rows.Next() {
		var inc domentry.Incident
		var id, eID, occurred, resolved, created string
		if err := rows.Scan(&id, &eID, &inc.IncidentID, &inc.Source, &inc.URL,
			&occurred, &resolved, &created); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.ID = store.ParseID(id)
		inc.EntryID = store.ParseID(eID)
		inc.OccurredAt = store.ParseTime(occurred)
		inc.ResolvedAt = store.ParseTime(resolved)
		inc.CreatedAt = store.ParseTime(created)
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domentry.Entry, error) {
	var e domentry.Entry
	var id, severity, state, status, mergedInto string
	var createdAt, updatedAt, publishedAt string
	err := row.Scan(&id, &e.Title, &e.Description, &severity, &state, &status,
		&e.CreatedBy, &e.UpdatedBy, &e.ApprovedBy, &mergedInto,
		&e.RootCause, &e.ImpactSummary, &e.DetectionMethod,
		&createdAt, &updatedAt, &publishedAt)
	if err != nil {
		return domentry.Entry{}, err
	}
	e.ID = store.ParseID(id)
	e.Severity = domentry.Severity(severity)
	e.WorkflowState = workflow.State(state)
	e.Status = domentry.Status(status)
	e.MergedInto = store.ParseID(mergedInto)
	e.CreatedAt = store.ParseTime(createdAt)
	e.UpdatedAt = store.ParseTime(updatedAt)
	e.PublishedAt = store.ParseTime(publishedAt)
	return e, nil
}

func filterClause(f domentry.ListFilter) (string, []any) {
	conds := []string{}
	args := []any{}
	add := func(col, val string) {
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, val)
	}
	if f.WorkflowState != "" {
		add("workflow_state", string(f.WorkflowState))
	}
	if f.Severity != "" {
		add("severity", string(f.Severity))
	}
	if f.CreatedBy != "" {
		add("created_by", f.CreatedBy)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
