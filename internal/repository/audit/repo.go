// Package audit implements audit trail persistence.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
	"github.com/kedb-platform/kedb/internal/store"
)

// Repo provides audit log data access. Records are append-only.
type Repo struct {
	db *sql.DB
}

// New creates an audit repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Insert appends one audit record.
func (r *Repo) Insert(ctx context.Context, rec domaudit.Record) error {
	diff, err := encodeDiff(rec.Diff)
	if err != nil {
		return fmt.Errorf("encode diff: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, entity_type, entity_id, action, diff, user_id, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		store.FormatID(rec.ID), rec.EntityType, rec.EntityID, rec.Action,
		diff, rec.UserID, rec.RequestID, store.FormatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// List returns matching records, newest first.
func (r *Repo) List(ctx context.Context, filter domaudit.ListFilter, limit, offset int) ([]domaudit.Record, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+" $"+strconv.Itoa(len(args)))
	}
	if filter.EntityType != "" {
		add("entity_type =", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id =", filter.EntityID)
	}
	if filter.UserID != "" {
		add("user_id =", filter.UserID)
	}
	if !filter.Since.IsZero() {
		add("created_at >=", store.FormatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		add("created_at <=", store.FormatTime(filter.Until))
	}

	query := `SELECT id, entity_type, entity_id, action, diff, user_id, request_id, created_at FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []domaudit.Record
	for rows.Next() {
		var rec domaudit.Record
		var id, diff, createdAt string
		if err := rows.Scan(&id, &rec.EntityType, &rec.EntityID, &rec.Action,
			&diff, &rec.UserID, &rec.RequestID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.ID = store.ParseID(id)
		rec.CreatedAt = store.ParseTime(createdAt)
		rec.Diff, err = decodeDiff(diff)
		if err != nil {
			return nil, fmt.Errorf("decode diff: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return out, nil
}

func encodeDiff(diff map[string]any) (string, error) {
	if len(diff) == 0 {
		return "", nil
	}
	b, err := json.Marshal(diff)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeDiff(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var diff map[string]any
	if err := json.Unmarshal([]byte(raw), &diff); err != nil {
		return nil, err
	}
	return diff, nil
}
