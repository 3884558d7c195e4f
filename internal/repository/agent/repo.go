// Package agent implements persistence for the agent interaction history.
package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domagent "github.com/kedb-platform/kedb/internal/domain/agent"
	"github.com/kedb-platform/kedb/internal/store"
)

const callColumns = `id, session_id, call_type, tool_name, input, output,
	latency_ms, tokens_used, cost_usd, status, error_message, created_at`

// Repo provides agent history data access.
type Repo struct {
	db *sql.DB
}

// New creates an agent repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// CreateSession inserts a session.
func (r *Repo) CreateSession(ctx context.Context, s *domagent.Session) error {
	sessionCtx, err := encodeJSON(s.Context)
	if err != nil {
		return fmt.Errorf("encode session context: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agent_sessions (id, user_id, incident_id, context, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		store.FormatID(s.ID), s.UserID, s.IncidentID, sessionCtx,
		store.FormatTime(s.CreatedAt), store.FormatTime(s.EndedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns the session with its calls in chronological order.
func (r *Repo) GetSession(ctx context.Context, id uuid.UUID) (domagent.Session, error) {
	var s domagent.Session
	var sid, sessionCtx, createdAt, endedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, incident_id, context, created_at, ended_at
		FROM agent_sessions WHERE id = $1`, store.FormatID(id)).
		Scan(&sid, &s.UserID, &s.IncidentID, &sessionCtx, &createdAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domagent.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domagent.Session{}, fmt.Errorf("select session: %w", err)
	}
	s.ID = store.ParseID(sid)
	s.CreatedAt = store.ParseTime(createdAt)
	s.EndedAt = store.ParseTime(endedAt)
	if s.Context, err = decodeJSON(sessionCtx); err != nil {
		return domagent.Session{}, fmt.Errorf("decode session context: %w", err)
	}

	s.Calls, err = r.listCalls(ctx, id)
	if err != nil {
		return domagent.Session{}, err
	}
	return s, nil
}

// EndSession stamps the session's end time. Ending an already-ended
// session is a no-op.
func (r *Repo) EndSession(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE agent_sessions SET ended_at = $1
		WHERE id = $2 AND ended_at = ''`,
		store.FormatTime(time.Now()), store.FormatID(id))
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists string
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM agent_sessions WHERE id = $1`, store.FormatID(id)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// RecordCall inserts one call with its suggestions and policy decisions in
// a single transaction.
func (r *Repo) RecordCall(ctx context.Context, call *domagent.Call,
	suggestions []domagent.Suggestion, decisions []domagent.PolicyDecision) error {

	input, err := encodeJSON(call.Input)
	if err != nil {
		return fmt.Errorf("encode call input: %w", err)
	}
	output, err := encodeJSON(call.Output)
	if err != nil {
		return fmt.Errorf("encode call output: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agent_calls (`+callColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		store.FormatID(call.ID), store.FormatID(call.SessionID),
		string(call.Type), call.ToolName, input, output,
		call.LatencyMS, call.TokensUsed, call.CostUSD,
		string(call.Status), call.ErrorMessage, store.FormatTime(call.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}

	for _, sg := range suggestions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO agent_suggestions (id, call_id, entry_id, solution_id, rank, score, accepted, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			store.FormatID(sg.ID), store.FormatID(call.ID),
			store.FormatID(sg.EntryID), store.FormatID(sg.SolutionID),
			sg.Rank, sg.Score, encodeAccepted(sg.Accepted), store.FormatTime(sg.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert suggestion: %w", err)
		}
	}

	for _, d := range decisions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO policy_decisions (id, call_id, policy, decision, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			store.FormatID(d.ID), store.FormatID(call.ID),
			d.Policy, string(d.Decision), d.Reason, store.FormatTime(d.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert policy decision: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListSuggestions returns a call's suggestions ordered by rank.
func (r *Repo) ListSuggestions(ctx context.Context, callID uuid.UUID) ([]domagent.Suggestion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, call_id, entry_id, solution_id, rank, score, accepted, created_at
		FROM agent_suggestions WHERE call_id = $1 ORDER BY rank`, store.FormatID(callID))
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	var out []domagent.Suggestion
	for rows.Next() {
		var sg domagent.Suggestion
		var id, cid, entryID, solutionID, createdAt string
		var accepted sql.NullInt64
		if err := rows.Scan(&id, &cid, &entryID, &solutionID,
			&sg.Rank, &sg.Score, &accepted, &createdAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		sg.ID = store.ParseID(id)
		sg.CallID = store.ParseID(cid)
		sg.EntryID = store.ParseID(entryID)
		sg.SolutionID = store.ParseID(solutionID)
		sg.Accepted = decodeAccepted(accepted)
		sg.CreatedAt = store.ParseTime(createdAt)
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return out, nil
}

// MarkSuggestion records whether the user accepted a suggestion.
func (r *Repo) MarkSuggestion(ctx context.Context, id uuid.UUID, accepted bool) error {
	v := 0
	if accepted {
		v = 1
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE agent_suggestions SET accepted = $1 WHERE id = $2`,
		v, store.FormatID(id))
	if err != nil {
		return fmt.Errorf("mark suggestion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark suggestion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("suggestion %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// RecordSuggestionEvent appends one suggestion-quality event.
func (r *Repo) RecordSuggestionEvent(ctx context.Context, ev *domagent.SuggestionEvent) error {
	topIDs, err := json.Marshal(ev.TopEntryIDs)
	if err != nil {
		return fmt.Errorf("encode top entry ids: %w", err)
	}
	breakdown, err := encodeJSON(ev.ScoreBreakdown)
	if err != nil {
		return fmt.Errorf("encode score breakdown: %w", err)
	}
	source, err := encodeJSON(ev.SourceContext)
	if err != nil {
		return fmt.Errorf("encode source context: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO suggestion_events (id, query, top_entry_ids, action,
			feedback_score, feedback_text, score_breakdown, source_context,
			user_id, session_id, latency_ms, model_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		store.FormatID(ev.ID), ev.Query, string(topIDs), ev.Action,
		ev.FeedbackScore, ev.FeedbackText, breakdown, source,
		ev.UserID, ev.SessionID, ev.LatencyMS, ev.ModelUsed,
		store.FormatTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert suggestion event: %w", err)
	}
	return nil
}

// ListSuggestionEvents returns a user's events, newest first.
func (r *Repo) ListSuggestionEvents(ctx context.Context, userID string, limit, offset int) ([]domagent.SuggestionEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, query, top_entry_ids, action, feedback_score, feedback_text,
			score_breakdown, source_context, user_id, session_id, latency_ms,
			model_used, created_at
		FROM suggestion_events WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list suggestion events: %w", err)
	}
	defer rows.Close()

	var out []domagent.SuggestionEvent
	for rows.Next() {
		var ev domagent.SuggestionEvent
		var id, topIDs, breakdown, source, createdAt string
		if err := rows.Scan(&id, &ev.Query, &topIDs, &ev.Action,
			&ev.FeedbackScore, &ev.FeedbackText, &breakdown, &source,
			&ev.UserID, &ev.SessionID, &ev.LatencyMS, &ev.ModelUsed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan suggestion event: %w", err)
		}
		ev.ID = store.ParseID(id)
		ev.CreatedAt = store.ParseTime(createdAt)
		if topIDs != "" {
			if err := json.Unmarshal([]byte(topIDs), &ev.TopEntryIDs); err != nil {
				return nil, fmt.Errorf("decode top entry ids: %w", err)
			}
		}
		if ev.ScoreBreakdown, err = decodeJSON(breakdown); err != nil {
			return nil, fmt.Errorf("decode score breakdown: %w", err)
		}
		if ev.SourceContext, err = decodeJSON(source); err != nil {
			return nil, fmt.Errorf("decode source context: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list suggestion events: %w", err)
	}
	return out, nil
}

func (r *Repo) listCalls(ctx context.Context, sessionID uuid.UUID) ([]domagent.Call, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM agent_calls
		WHERE session_id = $1 ORDER BY created_at`, store.FormatID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var out []domagent.Call
	for rows.Next() {
		var c domagent.Call
		var id, sid, callType, input, output, status, createdAt string
		if err := rows.Scan(&id, &sid, &callType, &c.ToolName, &input, &output,
			&c.LatencyMS, &c.TokensUsed, &c.CostUSD, &status,
			&c.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.ID = store.ParseID(id)
		c.SessionID = store.ParseID(sid)
		c.Type = domagent.CallType(callType)
		c.Status = domagent.CallStatus(status)
		c.CreatedAt = store.ParseTime(createdAt)
		if c.Input, err = decodeJSON(input); err != nil {
			return nil, fmt.Errorf("decode call input: %w", err)
		}
		if c.Output, err = decodeJSON(output); err != nil {
			return nil, fmt.Errorf("decode call output: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	return out, nil
}

func encodeJSON(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeAccepted(accepted *bool) any {
	if accepted == nil {
		return nil
	}
	if *accepted {
		return 1
	}
	return 0
}

func decodeAccepted(v sql.NullInt64) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Int64 != 0
	return &b
}
