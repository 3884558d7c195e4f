// Package review implements review and participant persistence.
package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domreview "github.com/kedb-platform/kedb/internal/domain/review"
	"github.com/kedb-platform/kedb/internal/store"
)

const reviewColumns = `id, entry_id, status, comments, rca_text, created_at, completed_at`

const participantColumns = `id, review_id, user_id, role, approved, comments, created_at, responded_at`

// Repo provides review data access.
type Repo struct {
	db *sql.DB
}

// New creates a review repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Create inserts the review with its participants in one transaction.
func (r *Repo) Create(ctx context.Context, rev *domreview.Review) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		store.FormatID(rev.ID), store.FormatID(rev.EntryID), string(rev.Status),
		rev.Comments, rev.RCAText,
		store.FormatTime(rev.CreatedAt), store.FormatTime(rev.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}

	for _, p := range rev.Participants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO review_participants (`+participantColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			store.FormatID(p.ID), store.FormatID(rev.ID), p.UserID, string(p.Role),
			encodeApproved(p.Approved), p.Comments,
			store.FormatTime(p.CreatedAt), store.FormatTime(p.RespondedAt))
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the review with its participants.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (domreview.Review, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, store.FormatID(id))
	rev, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domreview.Review{}, fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domreview.Review{}, fmt.Errorf("select review: %w", err)
	}

	rev.Participants, err = r.listParticipants(ctx, id)
	if err != nil {
		return domreview.Review{}, err
	}
	return rev, nil
}

// ListByEntry returns the entry's reviews, newest first, without
// participants.
func (r *Repo) ListByEntry(ctx context.Context, entryID uuid.UUID) ([]domreview.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE entry_id = $1 ORDER BY created_at DESC`,
		store.FormatID(entryID))
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []domreview.Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return out, nil
}

// Complete finishes a pending review with a terminal status. A review
// completed by another writer first surfaces as ErrConflict.
func (r *Repo) Complete(ctx context.Context, id uuid.UUID, status domreview.Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reviews SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4`,
		string(status), store.FormatTime(time.Now()),
		store.FormatID(id), string(domreview.StatusPending))
	if err != nil {
		return fmt.Errorf("complete review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete review: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx,
		`SELECT status FROM reviews WHERE id = $1`, store.FormatID(id)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("complete review: %w", err)
	}
	return fmt.Errorf("review %s already %s: %w", id, current, domain.ErrConflict)
}

// Respond records a participant's approval decision.
func (r *Repo) Respond(ctx context.Context, reviewID uuid.UUID, userID string, approved bool, comments string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE review_participants
		SET approved = $1, comments = $2, responded_at = $3
		WHERE review_id = $4 AND user_id = $5`,
		boolToInt(approved), comments, store.FormatTime(time.Now()),
		store.FormatID(reviewID), userID)
	if err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("participant %s in review %s: %w", userID, reviewID, domain.ErrNotFound)
	}
	return nil
}

func (r *Repo) listParticipants(ctx context.Context, reviewID uuid.UUID) ([]domreview.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM review_participants
		WHERE review_id = $1 ORDER BY created_at`, store.FormatID(reviewID))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []domreview.Participant
	for rows.Next() {
		var p domreview.Participant
		var id, revID, role, createdAt, respondedAt string
		var approved sql.NullInt64
		if err := rows.Scan(&id, &revID, &p.UserID, &role, &approved,
			&p.Comments, &createdAt, &respondedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.ID = store.ParseID(id)
		p.ReviewID = store.ParseID(revID)
		p.Role = domreview.Role(role)
		p.Approved = decodeApproved(approved)
		p.CreatedAt = store.ParseTime(createdAt)
		p.RespondedAt = store.ParseTime(respondedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (domreview.Review, error) {
	var rev domreview.Review
	var id, entryID, status, createdAt, completedAt string
	err := row.Scan(&id, &entryID, &status, &rev.Comments, &rev.RCAText,
		&createdAt, &completedAt)
	if err != nil {
		return domreview.Review{}, err
	}
	rev.ID = store.ParseID(id)
	rev.EntryID = store.ParseID(entryID)
	rev.Status = domreview.Status(status)
	rev.CreatedAt = store.ParseTime(createdAt)
	rev.CompletedAt = store.ParseTime(completedAt)
	return rev, nil
}

func encodeApproved(approved *bool) any {
	if approved == nil {
		return nil
	}
	return boolToInt(*approved)
}

func decodeApproved(v sql.NullInt64) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Int64 != 0
	return &b
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
