// Package solution implements solution and step persistence.
package solution

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	"github.com/kedb-platform/kedb/internal/store"
)

const solutionColumns = `id, entry_id, title, description, solution_type,
	estimated_time_minutes, prerequisites, created_by, updated_by, created_at, updated_at`

const stepColumns = `id, solution_id, order_index, action, expected_result,
	command, rollback_action, rollback_command, metadata, created_at`

// Repo provides solution data access.
type Repo struct {
	db *sql.DB
}

// New creates a solution repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Create inserts the solution with its steps in one transaction.
func (r *Repo) Create(ctx context.Context, s *domsol.Solution) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO solutions (`+solutionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		store.FormatID(s.ID), store.FormatID(s.EntryID), s.Title, s.Description,
		string(s.Type), s.EstimatedTimeMinutes, s.Prerequisites,
		s.CreatedBy, s.UpdatedBy,
		store.FormatTime(s.CreatedAt), store.FormatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert solution: %w", err)
	}

	for _, step := range s.Steps {
		if err := insertStep(ctx, tx, step); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the solution's scalar fields.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (domsol.Solution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+solutionColumns+` FROM solutions WHERE id = $1`, store.FormatID(id))
	s, err := scanSolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domsol.Solution{}, fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domsol.Solution{}, fmt.Errorf("select solution: %w", err)
	}
	return s, nil
}

// GetWithSteps returns the solution with steps in execution order.
func (r *Repo) GetWithSteps(ctx context.Context, id uuid.UUID) (domsol.Solution, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return domsol.Solution{}, err
	}
	s.Steps, err = r.listSteps(ctx, id)
	if err != nil {
		return domsol.Solution{}, err
	}
	return s, nil
}

// ListByEntry returns the entry's solutions with their steps.
func (r *Repo) ListByEntry(ctx context.Context, entryID uuid.UUID) ([]domsol.Solution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+solutionColumns+` FROM solutions WHERE entry_id = $1 ORDER BY created_at`,
		store.FormatID(entryID))
	if err != nil {
		return nil, fmt.Errorf("list solutions: %w", err)
	}
	sols, err := collectSolutions(rows)
	if err != nil {
		return nil, err
	}
	for i := range sols {
		sols[i].Steps, err = r.listSteps(ctx, sols[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return sols, nil
}

// ListAll pages over every solution, oldest first; used by the reindex
// sweep.
func (r *Repo) ListAll(ctx context.Context, limit, offset int) ([]domsol.Solution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+solutionColumns+` FROM solutions ORDER BY created_at LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list all solutions: %w", err)
	}
	return collectSolutions(rows)
}

// Update applies a partial update and refreshes updated_by/updated_at.
func (r *Repo) Update(ctx context.Context, id uuid.UUID, u domsol.Update, updatedBy string) error {
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
	if u.Type != nil {
		add("solution_type", string(*u.Type))
	}
	if u.EstimatedTimeMinutes != nil {
		add("estimated_time_minutes", *u.EstimatedTimeMinutes)
	}
	if u.Prerequisites != nil {
		add("prerequisites", *u.Prerequisites)
	}
	add("updated_by", updatedBy)
	add("updated_at", store.FormatTime(time.Now()))

	args = append(args, store.FormatID(id))
	query := "UPDATE solutions SET " + strings.Join(sets, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update solution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update solution: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes the solution; steps go with it via cascade.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM solutions WHERE id = $1`, store.FormatID(id))
	if err != nil {
		return fmt.Errorf("delete solution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete solution: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AddStep appends the step at the next order index and returns it with the
// assigned index.
func (r *Repo) AddStep(ctx context.Context, step *domsol.Step) error {
	meta, err := encodeMetadata(step.Metadata)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO solution_steps
			(id, solution_id, order_index, action, expected_result,
			 command, rollback_action, rollback_command, metadata, created_at)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(order_index) + 1, 0) FROM solution_steps WHERE solution_id = $2),
			$3, $4, $5, $6, $7, $8, $9)
		RETURNING order_index`,
		store.FormatID(step.ID), store.FormatID(step.SolutionID),
		step.Action, step.ExpectedResult, step.Command,
		step.RollbackAction, step.RollbackCommand, meta,
		store.FormatTime(step.CreatedAt),
	).Scan(&step.OrderIndex)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// GetStep returns one step.
func (r *Repo) GetStep(ctx context.Context, id uuid.UUID) (domsol.Step, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM solution_steps WHERE id = $1`, store.FormatID(id))
	step, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domsol.Step{}, fmt.Errorf("step %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domsol.Step{}, fmt.Errorf("select step: %w", err)
	}
	return step, nil
}

// UpdateStep applies a partial step update.
func (r *Repo) UpdateStep(ctx context.Context, id uuid.UUID, u domsol.StepUpdate) error {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, v)
	}

	if u.Action != nil {
		add("action", *u.Action)
	}
	if u.ExpectedResult != nil {
		add("expected_result", *u.ExpectedResult)
	}
	if u.Command != nil {
		add("command", *u.Command)
	}
	if u.RollbackAction != nil {
		add("rollback_action", *u.RollbackAction)
	}
	if u.RollbackCommand != nil {
		add("rollback_command", *u.RollbackCommand)
	}
	if u.Metadata != nil {
		meta, err := encodeMetadata(u.Metadata)
		if err != nil {
			return err
		}
		add("metadata", meta)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, store.FormatID(id))
	query := "UPDATE solution_steps SET " + strings.Join(sets, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("step %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteStep removes one step.
func (r *Repo) DeleteStep(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM solution_steps WHERE id = $1`, store.FormatID(id))
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("step %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- helpers ---

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertStep(ctx context.Context, ex execer, step domsol.Step) error {
	meta, err := encodeMetadata(step.Metadata)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO solution_steps (`+stepColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		store.FormatID(step.ID), store.FormatID(step.SolutionID), step.OrderIndex,
		step.Action, step.ExpectedResult, step.Command,
		step.RollbackAction, step.RollbackCommand, meta,
		store.FormatTime(step.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

func (r *Repo) listSteps(ctx context.Context, solutionID uuid.UUID) ([]domsol.Step, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM solution_steps WHERE solution_id = $1 ORDER BY order_index`,
		store.FormatID(solutionID))
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []domsol.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	return out, nil
}

func collectSolutions(rows *sql.Rows) ([]domsol.Solution, error) {
	defer rows.Close()
	var out []domsol.Solution
	for rows.Next() {
		s, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect solutions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSolution(row rowScanner) (domsol.Solution, error) {
	var s domsol.Solution
	var id, entryID, typ, createdAt, updatedAt string
	err := row.Scan(&id, &entryID, &s.Title, &s.Description, &typ,
		&s.EstimatedTimeMinutes, &s.Prerequisites, &s.CreatedBy, &s.UpdatedBy,
		&createdAt, &updatedAt)
	if err != nil {
		return domsol.Solution{}, err
	}
	s.ID = store.ParseID(id)
	s.EntryID = store.ParseID(entryID)
	s.Type = domsol.Type(typ)
	s.CreatedAt = store.ParseTime(createdAt)
	s.UpdatedAt = store.ParseTime(updatedAt)
	return s, nil
}

func scanStep(row rowScanner) (domsol.Step, error) {
	var step domsol.Step
	var id, solutionID, meta, createdAt string
	err := row.Scan(&id, &solutionID, &step.OrderIndex, &step.Action,
		&step.ExpectedResult, &step.Command, &step.RollbackAction,
		&step.RollbackCommand, &meta, &createdAt)
	if err != nil {
		return domsol.Step{}, err
	}
	step.ID = store.ParseID(id)
	step.SolutionID = store.ParseID(solutionID)
	step.CreatedAt = store.ParseTime(createdAt)
	step.Metadata = decodeMetadata(meta)
	return step, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode step metadata: %w", err)
	}
	return string(raw), nil
}

func decodeMetadata(s string) map[string]any {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
