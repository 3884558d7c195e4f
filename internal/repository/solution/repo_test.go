package solution

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
	entryrepo "github.com/kedb-platform/kedb/internal/repository/entry"
	"github.com/kedb-platform/kedb/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	s, err := store.Open(store.Config{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "kedb.db"),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s.DB()
}

// createParentEntry satisfies the solutions.entry_id foreign key.
func createParentEntry(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	e := &domentry.Entry{
		ID: uuid.New(), Title: "parent", Description: "parent entry",
		Severity: domentry.SeverityMedium, WorkflowState: workflow.Draft,
		Status: domentry.StatusActive, CreatedBy: "alice",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := entryrepo.New(db).Create(context.Background(), e); err != nil {
		t.Fatalf("create parent entry: %v", err)
	}
	return e.ID
}

func makeSolution(entryID uuid.UUID) *domsol.Solution {
	now := time.Now().UTC()
	id := uuid.New()
	return &domsol.Solution{
		ID: id, EntryID: entryID,
		Title: "restart the daemon", Description: "bounce it",
		Type: domsol.TypeWorkaround, CreatedBy: "alice",
		CreatedAt: now, UpdatedAt: now,
		Steps: []domsol.Step{
			{ID: uuid.New(), SolutionID: id, OrderIndex: 0,
				Action: "stop service", ExpectedResult: "service stopped", CreatedAt: now},
			{ID: uuid.New(), SolutionID: id, OrderIndex: 1,
				Action: "start service", ExpectedResult: "service running",
				Command: "systemctl start app", CreatedAt: now},
		},
	}
}

func TestCreateAndGetWithSteps(t *testing.T) {
	db := testDB(t)
	repo := New(db)
	ctx := context.Background()

	s := makeSolution(createParentEntry(t, db))
	s.Steps[1].Metadata = map[string]any{"timeout_sec": float64(30)}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetWithSteps(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetWithSteps: %v", err)
	}
	if got.Title != s.Title || got.Type != domsol.TypeWorkaround {
		t.Errorf("unexpected solution: %+v", got)
	}
	if len(got.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(got.Steps))
	}
	if got.Steps[0].Action != "stop service" || got.Steps[1].Action != "start service" {
		t.Errorf("steps out of order: %+v", got.Steps)
	}
	if got.Steps[1].Metadata["timeout_sec"] != float64(30) {
		t.Errorf("metadata lost: %+v", got.Steps[1].Metadata)
	}
}

func TestDelete_CascadesSteps(t *testing.T) {
	db := testDB(t)
	repo := New(db)
	ctx := context.Background()

	s := makeSolution(createParentEntry(t, db))
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := repo.Get(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM solution_steps`).Scan(&n); err != nil {
		t.Fatalf("count steps: %v", err)
	}
	if n != 0 {
		t.Errorf("expected steps cascade-deleted, found %d", n)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo := New(testDB(t))
	if err := repo.Delete(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByEntry(t *testing.T) {
	db := testDB(t)
	repo := New(db)
	ctx := context.Background()
	entryID := createParentEntry(t, db)

	first := makeSolution(entryID)
	second := makeSolution(entryID)
	second.Steps = nil
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	for _, s := range []*domsol.Solution{first, second} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	sols, err := repo.ListByEntry(ctx, entryID)
	if err != nil {
		t.Fatalf("ListByEntry: %v", err)
	}
	if len(sols) != 2 {
		t.Fatalf("expected 2 solutions, got %d", len(sols))
	}
	if len(sols[0].Steps) != 2 {
		t.Errorf("expected steps loaded, got %d", len(sols[0].Steps))
	}
}

func TestAddStep_AssignsNextOrder(t *testing.T) {
	db := testDB(t)
	repo := New(db)
	ctx := context.Background()

	s := makeSolution(createParentEntry(t, db))
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	step := &domsol.Step{
		ID: uuid.New(), SolutionID: s.ID,
		Action: "verify", CreatedAt: time.Now().UTC(),
	}
	if err := repo.AddStep(ctx, step); err != nil {
		t.Fatalf("AddStep: %v", err)
	}
	if step.OrderIndex != 2 {
		t.Errorf("expected order_index 2, got %d", step.OrderIndex)
	}
}

func TestUpdateStep(t *testing.T) {
	db := testDB(t)
	repo := New(db)
	ctx := context.Background()

	s := makeSolution(createParentEntry(t, db))
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	action := "drain the node first"
	err := repo.UpdateStep(ctx, s.Steps[0].ID, domsol.StepUpdate{Action: &action})
	if err != nil {
		t.Fatalf("UpdateStep: %v", err)
	}

	got, err := repo.GetStep(ctx, s.Steps[0].ID)
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if got.Action != action {
		t.Errorf("step not updated: %q", got.Action)
	}
	if got.ExpectedResult != "service stopped" {
		t.Errorf("untouched field changed: %q", got.ExpectedResult)
	}
}

func TestUpdate_Partial(t *testing.T) {
	db := testDB(t)
	repo := New(db)
	ctx := context.Background()

	s := makeSolution(createParentEntry(t, db))
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	typ := domsol.TypeResolution
	minutes := 15
	if err := repo.Update(ctx, s.ID, domsol.Update{Type: &typ, EstimatedTimeMinutes: &minutes}, "bob"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := repo.Get(ctx, s.ID)
	if got.Type != domsol.TypeResolution || got.EstimatedTimeMinutes != 15 {
		t.Errorf("update not applied: %+v", got)
	}
	if got.UpdatedBy != "bob" {
		t.Errorf("updated_by not set: %q", got.UpdatedBy)
	}
}
