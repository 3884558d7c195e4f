package solution

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kedb-platform/kedb/internal/domain"
	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	"github.com/kedb-platform/kedb/internal/search"
)

// --- Mocks ---

type mockRepo struct {
	solutions map[uuid.UUID]domsol.Solution
	steps     map[uuid.UUID]domsol.Step

	deleteErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		solutions: map[uuid.UUID]domsol.Solution{},
		steps:     map[uuid.UUID]domsol.Step{},
	}
}

func (m *mockRepo) Create(_ context.Context, s *domsol.Solution) error {
	m.solutions[s.ID] = *s
	for _, step := range s.Steps {
		m.steps[step.ID] = step
	}
	return nil
}

func (m *mockRepo) Get(_ context.Context, id uuid.UUID) (domsol.Solution, error) {
	s, ok := m.solutions[id]
	if !ok {
		return domsol.Solution{}, fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *mockRepo) GetWithSteps(ctx context.Context, id uuid.UUID) (domsol.Solution, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return domsol.Solution{}, err
	}
	s.Steps = nil
	for _, step := range m.steps {
		if step.SolutionID == id {
			s.Steps = append(s.Steps, step)
		}
	}
	return s, nil
}

func (m *mockRepo) ListByEntry(_ context.Context, entryID uuid.UUID) ([]domsol.Solution, error) {
	var out []domsol.Solution
	for _, s := range m.solutions {
		if s.EntryID == entryID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, id uuid.UUID, u domsol.Update, updatedBy string) error {
	s, ok := m.solutions[id]
	if !ok {
		return fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
	}
	if u.Title != nil {
		s.Title = *u.Title
	}
	if u.Type != nil {
		s.Type = *u.Type
	}
	s.UpdatedBy = updatedBy
	m.solutions[id] = s
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.solutions[id]; !ok {
		return fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
	}
	delete(m.solutions, id)
	return nil
}

func (m *mockRepo) AddStep(_ context.Context, step *domsol.Step) error {
	n := 0
	for _, existing := range m.steps {
		if existing.SolutionID == step.SolutionID {
			n++
		}
	}
	step.OrderIndex = n
	m.steps[step.ID] = *step
	return nil
}

func (m *mockRepo) GetStep(_ context.Context, id uuid.UUID) (domsol.Step, error) {
	step, ok := m.steps[id]
	if !ok {
		return domsol.Step{}, fmt.Errorf("step %s: %w", id, domain.ErrNotFound)
	}
	return step, nil
}

func (m *mockRepo) UpdateStep(_ context.Context, id uuid.UUID, u domsol.StepUpdate) error {
	step, ok := m.steps[id]
	if !ok {
		return fmt.Errorf("step %s: %w", id, domain.ErrNotFound)
	}
	if u.Action != nil {
		step.Action = *u.Action
	}
	m.steps[id] = step
	return nil
}

func (m *mockRepo) DeleteStep(_ context.Context, id uuid.UUID) error {
	if _, ok := m.steps[id]; !ok {
		return fmt.Errorf("step %s: %w", id, domain.ErrNotFound)
	}
	delete(m.steps, id)
	return nil
}

type mockEntries struct {
	known map[uuid.UUID]bool
}

func (m *mockEntries) Get(_ context.Context, id uuid.UUID) (domentry.Entry, error) {
	if !m.known[id] {
		return domentry.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return domentry.Entry{ID: id}, nil
}

type mockIndexer struct {
	indexed   []search.SolutionDocument
	deleted   []string
	indexErr  error
	deleteErr error
}

func (m *mockIndexer) IndexSolution(_ context.Context, doc search.SolutionDocument) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.indexed = append(m.indexed, doc)
	return nil
}

func (m *mockIndexer) DeleteSolution(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockRecorder struct {
	records []domaudit.Record
}

func (m *mockRecorder) Record(_ context.Context, rec domaudit.Record) {
	m.records = append(m.records, rec)
}

func setup() (*Service, *mockRepo, *mockEntries, *mockIndexer, *mockRecorder) {
	repo := newMockRepo()
	entries := &mockEntries{known: map[uuid.UUID]bool{}}
	index := &mockIndexer{}
	auditor := &mockRecorder{}
	return New(repo, entries, index, auditor, zap.NewNop()), repo, entries, index, auditor
}

// --- Tests ---

func TestCreate_BuildsStepsTextDocument(t *testing.T) {
	svc, _, entries, index, _ := setup()
	entryID := uuid.New()
	entries.known[entryID] = true

	sol := &domsol.Solution{
		EntryID: entryID, Title: "free disk space", Type: domsol.TypeResolution,
		Steps: []domsol.Step{
			{Action: "rotate logs", ExpectedResult: "space reclaimed"},
			{Action: "restart service"},
		},
	}
	created, err := svc.Create(context.Background(), sol, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Steps[0].OrderIndex != 0 || created.Steps[1].OrderIndex != 1 {
		t.Errorf("step order not assigned: %+v", created.Steps)
	}

	if len(index.indexed) != 1 {
		t.Fatalf("expected 1 indexed document, got %d", len(index.indexed))
	}
	if index.indexed[0].StepsText != "rotate logs space reclaimed restart service" {
		t.Errorf("steps_text = %q", index.indexed[0].StepsText)
	}
}

func TestCreate_EntryMustExist(t *testing.T) {
	svc, _, _, _, _ := setup()
	sol := &domsol.Solution{EntryID: uuid.New(), Title: "t"}
	_, err := svc.Create(context.Background(), sol, "alice")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_IndexFailureSwallowed(t *testing.T) {
	svc, repo, entries, index, _ := setup()
	entryID := uuid.New()
	entries.known[entryID] = true
	index.indexErr = errors.New("index down")

	created, err := svc.Create(context.Background(), &domsol.Solution{EntryID: entryID, Title: "t"}, "alice")
	if err != nil {
		t.Fatalf("Create should not surface index errors: %v", err)
	}
	if _, ok := repo.solutions[created.ID]; !ok {
		t.Fatal("store write missing")
	}
}

func TestDelete_StoreFirstThenIndex(t *testing.T) {
	svc, repo, entries, index, auditor := setup()
	entryID := uuid.New()
	entries.known[entryID] = true

	created, err := svc.Create(context.Background(), &domsol.Solution{EntryID: entryID, Title: "t"}, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID, "bob"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := repo.solutions[created.ID]; ok {
		t.Error("solution still in store")
	}
	if len(index.deleted) != 1 || index.deleted[0] != created.ID.String() {
		t.Errorf("expected index delete, got %+v", index.deleted)
	}

	last := auditor.records[len(auditor.records)-1]
	if last.Action != domaudit.ActionDelete || last.EntityType != domaudit.EntitySolution {
		t.Errorf("unexpected audit record: %+v", last)
	}
}

func TestDelete_StoreFailureSkipsIndex(t *testing.T) {
	svc, repo, entries, index, _ := setup()
	entryID := uuid.New()
	entries.known[entryID] = true

	created, _ := svc.Create(context.Background(), &domsol.Solution{EntryID: entryID, Title: "t"}, "alice")
	repo.deleteErr = errors.New("store down")

	if err := svc.Delete(context.Background(), created.ID, "bob"); err == nil {
		t.Fatal("expected store error to surface")
	}
	if len(index.deleted) != 0 {
		t.Errorf("index delete should not run after store failure: %+v", index.deleted)
	}
}

func TestAddStep_ReindexesSolution(t *testing.T) {
	svc, _, entries, index, _ := setup()
	entryID := uuid.New()
	entries.known[entryID] = true

	created, _ := svc.Create(context.Background(), &domsol.Solution{
		EntryID: entryID, Title: "t",
		Steps: []domsol.Step{{Action: "first"}},
	}, "alice")

	step, err := svc.AddStep(context.Background(), created.ID, domsol.Step{Action: "second"}, "bob")
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}
	if step.OrderIndex != 1 {
		t.Errorf("order_index = %d, want 1", step.OrderIndex)
	}
	if len(index.indexed) != 2 {
		t.Errorf("expected re-index after AddStep, got %d upserts", len(index.indexed))
	}
}

func TestUpdateStep_WrongSolutionRejected(t *testing.T) {
	svc, _, entries, _, _ := setup()
	entryID := uuid.New()
	entries.known[entryID] = true

	created, _ := svc.Create(context.Background(), &domsol.Solution{
		EntryID: entryID, Title: "t",
		Steps: []domsol.Step{{Action: "first"}},
	}, "alice")

	action := "changed"
	_, err := svc.UpdateStep(context.Background(), uuid.New(), created.Steps[0].ID,
		domsol.StepUpdate{Action: &action}, "bob")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for mismatched solution, got %v", err)
	}
}

func TestUpdate_InvalidType(t *testing.T) {
	svc, _, _, _, _ := setup()
	bad := domsol.Type("patch")
	_, err := svc.Update(context.Background(), uuid.New(), domsol.Update{Type: &bad}, "bob")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
