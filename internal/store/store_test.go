package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "kedb.db"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_AppliesSchema(t *testing.T) {
	s := openTestStore(t)

	tables := []string{
		"entries", "entry_symptoms", "entry_incidents",
		"solutions", "solution_steps",
		"tags", "entry_tags",
		"reviews", "review_participants",
		"audit_logs",
		"agent_sessions", "agent_calls", "agent_suggestions",
		"policy_decisions", "suggestion_events",
	}
	for _, table := range tables {
		var n int
		if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Driver: DriverSQLite, DSN: filepath.Join(dir, "kedb.db")}

	first, err := Open(cfg)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(cfg)
	if err != nil {
		t.Fatalf("second open on existing database: %v", err)
	}
	_ = second.Close()
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestWaitForReady(t *testing.T) {
	s := openTestStore(t)
	if err := s.WaitForReady(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("WaitForReady: %v", err)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)
	got := ParseTime(FormatTime(now))
	if !got.Equal(now) {
		t.Errorf("round trip changed time: %v -> %v", now, got)
	}
}

func TestTimeZero(t *testing.T) {
	if FormatTime(time.Time{}) != "" {
		t.Error("zero time must serialize to empty string")
	}
	if !ParseTime("").IsZero() {
		t.Error("empty string must parse to zero time")
	}
	if !ParseTime("garbage").IsZero() {
		t.Error("unparseable value must come back zero")
	}
}
