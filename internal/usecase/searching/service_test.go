package searching

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kedb-platform/kedb/internal/domain"
	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
	"github.com/kedb-platform/kedb/internal/search"
)

// --- Mocks ---

type mockIndex struct {
	ensureCalls int
	lastFilter  string
	lastLimit   int

	entryDocs    []search.EntryDocument
	solutionDocs []search.SolutionDocument

	entryResult search.EntryResult
	searchErr   error
	indexErr    error
}

func (m *mockIndex) EnsureIndexes(_ context.Context) error {
	m.ensureCalls++
	return nil
}

func (m *mockIndex) SearchEntries(_ context.Context, _, filter string, limit, _ int) (search.EntryResult, error) {
	m.lastFilter = filter
	m.lastLimit = limit
	return m.entryResult, m.searchErr
}

func (m *mockIndex) SearchSolutions(_ context.Context, _, filter string, limit, _ int) (search.SolutionResult, error) {
	m.lastFilter = filter
	m.lastLimit = limit
	return search.SolutionResult{}, m.searchErr
}

func (m *mockIndex) IndexEntry(_ context.Context, doc search.EntryDocument) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.entryDocs = append(m.entryDocs, doc)
	return nil
}

func (m *mockIndex) IndexSolution(_ context.Context, doc search.SolutionDocument) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.solutionDocs = append(m.solutionDocs, doc)
	return nil
}

func (m *mockIndex) Health(_ context.Context) error { return nil }

type mockEntrySource struct {
	entries []domentry.Entry
}

func (m *mockEntrySource) List(_ context.Context, _ domentry.ListFilter, limit, offset int) ([]domentry.Entry, error) {
	if offset >= len(m.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.entries) {
		end = len(m.entries)
	}
	return m.entries[offset:end], nil
}

func (m *mockEntrySource) GetWithRelations(_ context.Context, id uuid.UUID) (domentry.Entry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return domentry.Entry{}, domain.ErrNotFound
}

type mockSolutionSource struct {
	solutions []domsol.Solution
}

func (m *mockSolutionSource) ListAll(_ context.Context, limit, offset int) ([]domsol.Solution, error) {
	if offset >= len(m.solutions) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.solutions) {
		end = len(m.solutions)
	}
	return m.solutions[offset:end], nil
}

func (m *mockSolutionSource) GetWithSteps(_ context.Context, id uuid.UUID) (domsol.Solution, error) {
	for _, s := range m.solutions {
		if s.ID == id {
			return s, nil
		}
	}
	return domsol.Solution{}, domain.ErrNotFound
}

// --- Tests ---

func TestSearchEntries_CompilesFiltersAndMeasures(t *testing.T) {
	index := &mockIndex{entryResult: search.EntryResult{
		Hits:               []search.EntryHit{{Score: 0.9}},
		EstimatedTotalHits: 7,
	}}
	svc := New(index, &mockEntrySource{}, &mockSolutionSource{}, zap.NewNop())

	page, err := svc.SearchEntries(context.Background(), "disk",
		EntryFilters{Severity: "high", WorkflowState: "published"}, 10, 0)
	if err != nil {
		t.Fatalf("SearchEntries: %v", err)
	}

	if index.lastFilter != `severity = "high" AND workflow_state = "published"` {
		t.Errorf("filter = %q", index.lastFilter)
	}
	if page.EstimatedTotal != 7 || len(page.Hits) != 1 {
		t.Errorf("unexpected page: %+v", page)
	}
	if page.TookMS < 0 {
		t.Errorf("TookMS = %d", page.TookMS)
	}
}

func TestSearchEntries_UnreachableIndex(t *testing.T) {
	index := &mockIndex{searchErr: errors.New("connection refused")}
	svc := New(index, &mockEntrySource{}, &mockSolutionSource{}, zap.NewNop())

	_, err := svc.SearchEntries(context.Background(), "disk", EntryFilters{}, 10, 0)
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestSearchSolutions_ClampsLimit(t *testing.T) {
	index := &mockIndex{}
	svc := New(index, &mockEntrySource{}, &mockSolutionSource{}, zap.NewNop())

	_, err := svc.SearchSolutions(context.Background(), "restart", SolutionFilters{EntryID: "e1"}, 5000, 0)
	if err != nil {
		t.Fatalf("SearchSolutions: %v", err)
	}
	if index.lastLimit != 100 {
		t.Errorf("limit = %d, want clamped to 100", index.lastLimit)
	}
	if index.lastFilter != `entry_id = "e1"` {
		t.Errorf("filter = %q", index.lastFilter)
	}
}

func TestReindex_SweepsBothIndexes(t *testing.T) {
	entries := &mockEntrySource{}
	for i := 0; i < 3; i++ {
		entries.entries = append(entries.entries, domentry.Entry{
			ID: uuid.New(), Title: "e", Severity: domentry.SeverityLow,
			Symptoms: []domentry.Symptom{{Description: "sym"}},
		})
	}
	solutions := &mockSolutionSource{solutions: []domsol.Solution{
		{ID: uuid.New(), Title: "s", Type: domsol.TypeWorkaround},
	}}
	index := &mockIndex{}
	svc := New(index, entries, solutions, zap.NewNop())

	report, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}

	if index.ensureCalls != 1 {
		t.Errorf("EnsureIndexes calls = %d", index.ensureCalls)
	}
	if report.EntriesIndexed != 3 || report.SolutionsIndexed != 1 || report.Failures != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(index.entryDocs) != 3 || index.entryDocs[0].Symptoms != "sym" {
		t.Errorf("entry documents wrong: %+v", index.entryDocs)
	}
}

func TestReindex_SkipsRetiredEntries(t *testing.T) {
	retired := domentry.Entry{
		ID: uuid.New(), Title: "old pain", Severity: domentry.SeverityLow,
		WorkflowState: workflow.Retired,
	}
	active := domentry.Entry{
		ID: uuid.New(), Title: "live pain", Severity: domentry.SeverityLow,
		WorkflowState: workflow.Published,
	}
	entries := &mockEntrySource{entries: []domentry.Entry{retired, active}}
	index := &mockIndex{}
	svc := New(index, entries, &mockSolutionSource{}, zap.NewNop())

	report, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}

	// Retiring deletes the entry's document; the sweep must not put it back.
	if report.EntriesIndexed != 1 {
		t.Errorf("EntriesIndexed = %d, want 1", report.EntriesIndexed)
	}
	for _, doc := range index.entryDocs {
		if doc.ID == retired.ID.String() {
			t.Fatalf("retired entry %s was reindexed", retired.ID)
		}
	}
	if len(index.entryDocs) != 1 || index.entryDocs[0].ID != active.ID.String() {
		t.Errorf("entry documents = %+v, want only %s", index.entryDocs, active.ID)
	}
}

func TestReindex_CountsFailuresAndContinues(t *testing.T) {
	entries := &mockEntrySource{entries: []domentry.Entry{
		{ID: uuid.New(), Title: "a"},
		{ID: uuid.New(), Title: "b"},
	}}
	index := &mockIndex{indexErr: errors.New("index down")}
	svc := New(index, entries, &mockSolutionSource{}, zap.NewNop())

	report, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex should continue past document failures: %v", err)
	}
	if report.Failures != 2 || report.EntriesIndexed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}
