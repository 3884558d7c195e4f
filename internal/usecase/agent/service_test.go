package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domagent "github.com/kedb-platform/kedb/internal/domain/agent"
)

type mockRepo struct {
	sessions map[uuid.UUID]domagent.Session
	calls    []domagent.Call
	suggs    map[uuid.UUID][]domagent.Suggestion
	events   []domagent.SuggestionEvent
	marked   map[uuid.UUID]bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		sessions: make(map[uuid.UUID]domagent.Session),
		suggs:    make(map[uuid.UUID][]domagent.Suggestion),
		marked:   make(map[uuid.UUID]bool),
	}
}

func (m *mockRepo) CreateSession(_ context.Context, s *domagent.Session) error {
	m.sessions[s.ID] = *s
	return nil
}

func (m *mockRepo) GetSession(_ context.Context, id uuid.UUID) (domagent.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return domagent.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) EndSession(_ context.Context, id uuid.UUID) error {
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (m *mockRepo) RecordCall(_ context.Context, call *domagent.Call,
	suggestions []domagent.Suggestion, _ []domagent.PolicyDecision) error {
	m.calls = append(m.calls, *call)
	m.suggs[call.ID] = suggestions
	return nil
}

func (m *mockRepo) ListSuggestions(_ context.Context, callID uuid.UUID) ([]domagent.Suggestion, error) {
	return m.suggs[callID], nil
}

func (m *mockRepo) MarkSuggestion(_ context.Context, id uuid.UUID, accepted bool) error {
	m.marked[id] = accepted
	return nil
}

func (m *mockRepo) RecordSuggestionEvent(_ context.Context, ev *domagent.SuggestionEvent) error {
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockRepo) ListSuggestionEvents(_ context.Context, userID string, limit, offset int) ([]domagent.SuggestionEvent, error) {
	var out []domagent.SuggestionEvent
	for _, ev := range m.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestStartSession(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)

	sess, err := svc.StartSession(context.Background(), "alice", "INC-42", map[string]any{"service": "billing"})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if sess.ID == uuid.Nil {
		t.Error("StartSession() did not assign an id")
	}
	if sess.CreatedAt.IsZero() {
		t.Error("StartSession() did not stamp created_at")
	}
	if _, ok := repo.sessions[sess.ID]; !ok {
		t.Error("session was not stored")
	}
}

func TestStartSession_RequiresUser(t *testing.T) {
	svc := New(newMockRepo())

	_, err := svc.StartSession(context.Background(), "", "", nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("StartSession() error = %v, want ErrValidation", err)
	}
}

func TestRecordCall_AssignsIDs(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)

	call := domagent.Call{
		Type:     domagent.CallSuggest,
		ToolName: "kedb_search",
		Status:   domagent.CallSuccess,
	}
	suggestions := []domagent.Suggestion{
		{EntryID: uuid.New(), Rank: 1, Score: 0.92},
		{EntryID: uuid.New(), Rank: 2, Score: 0.71},
	}
	decisions := []domagent.PolicyDecision{
		{Policy: "readonly", Decision: domagent.DecisionAllow, Reason: "suggest is read-only"},
	}

	got, err := svc.RecordCall(context.Background(), call, suggestions, decisions)
	if err != nil {
		t.Fatalf("RecordCall() error = %v", err)
	}
	if got.ID == uuid.Nil {
		t.Fatal("RecordCall() did not assign a call id")
	}

	stored := repo.suggs[got.ID]
	if len(stored) != 2 {
		t.Fatalf("stored %d suggestions, want 2", len(stored))
	}
	for i, sg := range stored {
		if sg.ID == uuid.Nil {
			t.Errorf("suggestion %d has no id", i)
		}
		if sg.CallID != got.ID {
			t.Errorf("suggestion %d call id = %s, want %s", i, sg.CallID, got.ID)
		}
	}
}

func TestRecordCall_Validation(t *testing.T) {
	svc := New(newMockRepo())

	_, err := svc.RecordCall(context.Background(), domagent.Call{Type: "browse", Status: domagent.CallSuccess}, nil, nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown type error = %v, want ErrValidation", err)
	}

	_, err = svc.RecordCall(context.Background(), domagent.Call{Type: domagent.CallRun, Status: "maybe"}, nil, nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown status error = %v, want ErrValidation", err)
	}

	bad := []domagent.PolicyDecision{{Policy: "quota", Decision: "defer"}}
	_, err = svc.RecordCall(context.Background(), domagent.Call{Type: domagent.CallRun, Status: domagent.CallDenied}, nil, bad)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown decision error = %v, want ErrValidation", err)
	}
}

func TestRecordSuggestionEvent(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)

	_, err := svc.RecordSuggestionEvent(context.Background(), domagent.SuggestionEvent{UserID: "alice"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty query error = %v, want ErrValidation", err)
	}

	ev, err := svc.RecordSuggestionEvent(context.Background(), domagent.SuggestionEvent{
		Query:       "disk full",
		UserID:      "alice",
		TopEntryIDs: []string{"e1", "e2"},
		Action:      "accepted",
	})
	if err != nil {
		t.Fatalf("RecordSuggestionEvent() error = %v", err)
	}
	if ev.ID == uuid.Nil {
		t.Error("event id was not assigned")
	}
	if len(repo.events) != 1 {
		t.Fatalf("stored %d events, want 1", len(repo.events))
	}
}

func TestListSuggestionEvents_ClampsPagination(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo)

	for i := 0; i < 3; i++ {
		repo.events = append(repo.events, domagent.SuggestionEvent{ID: uuid.New(), UserID: "alice", Query: "q"})
	}

	got, err := svc.ListSuggestionEvents(context.Background(), "alice", 0, -5)
	if err != nil {
		t.Fatalf("ListSuggestionEvents() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d events, want 3", len(got))
	}
}
