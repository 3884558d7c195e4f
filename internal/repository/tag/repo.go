// Package tag implements tag and entry-tag persistence.
package tag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domtag "github.com/kedb-platform/kedb/internal/domain/tag"
	"github.com/kedb-platform/kedb/internal/store"
)

// Repo provides tag data access.
type Repo struct {
	db *sql.DB
}

// New creates a tag repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Create inserts a tag. Duplicate names surface as ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, t domtag.Tag) error {
	var existing string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM tags WHERE name = $1`, t.Name).Scan(&existing)
	if err == nil {
		return fmt.Errorf("tag %q: %w", t.Name, domain.ErrAlreadyExists)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check tag name: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, category, description, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		store.FormatID(t.ID), t.Name, t.Category, t.Description, t.Color,
		store.FormatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

// Get returns one tag.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (domtag.Tag, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, category, description, color, created_at
		FROM tags WHERE id = $1`, store.FormatID(id))
	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domtag.Tag{}, fmt.Errorf("tag %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domtag.Tag{}, fmt.Errorf("select tag: %w", err)
	}
	return t, nil
}

// List returns tags, optionally filtered by category, by name.
func (r *Repo) List(ctx context.Context, category string) ([]domtag.Tag, error) {
	query := `SELECT id, name, category, description, color, created_at FROM tags`
	args := []any{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []domtag.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return out, nil
}

// Link attaches a tag to an entry. A duplicate link surfaces as
// ErrAlreadyExists.
func (r *Repo) Link(ctx context.Context, link domtag.EntryTag) error {
	var existing string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM entry_tags WHERE entry_id = $1 AND tag_id = $2`,
		store.FormatID(link.EntryID), store.FormatID(link.TagID)).Scan(&existing)
	if err == nil {
		return fmt.Errorf("entry %s tag %s: %w", link.EntryID, link.TagID, domain.ErrAlreadyExists)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check entry tag: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO entry_tags (id, entry_id, tag_id, added_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		store.FormatID(link.ID), store.FormatID(link.EntryID),
		store.FormatID(link.TagID), link.AddedBy, store.FormatTime(link.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert entry tag: %w", err)
	}
	return nil
}

// Unlink removes a tag from an entry.
func (r *Repo) Unlink(ctx context.Context, entryID, tagID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM entry_tags WHERE entry_id = $1 AND tag_id = $2`,
		store.FormatID(entryID), store.FormatID(tagID))
	if err != nil {
		return fmt.Errorf("delete entry tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry tag: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %s tag %s: %w", entryID, tagID, domain.ErrNotFound)
	}
	return nil
}

// ListByEntry returns the tags attached to an entry.
func (r *Repo) ListByEntry(ctx context.Context, entryID uuid.UUID) ([]domtag.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.category, t.description, t.color, t.created_at
		FROM tags t
		JOIN entry_tags et ON et.tag_id = t.id
		WHERE et.entry_id = $1
		ORDER BY t.name`, store.FormatID(entryID))
	if err != nil {
		return nil, fmt.Errorf("list entry tags: %w", err)
	}
	defer rows.Close()

	var out []domtag.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry tag: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entry tags: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (domtag.Tag, error) {
	var t domtag.Tag
	var id, createdAt string
	if err := row.Scan(&id, &t.Name, &t.Category, &t.Description, &t.Color, &createdAt); err != nil {
		return domtag.Tag{}, err
	}
	t.ID = store.ParseID(id)
	t.CreatedAt = store.ParseTime(createdAt)
	return t, nil
}
