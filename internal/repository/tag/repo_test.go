package tag

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
	domtag "github.com/kedb-platform/kedb/internal/domain/tag"
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

func makeTag(name, category string) domtag.Tag {
	return domtag.Tag{
		ID: uuid.New(), Name: name, Category: category,
		Color: "#336699", CreatedAt: time.Now().UTC(),
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	repo := New(testDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, makeTag("postgres", "service")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, makeTag("postgres", "component"))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestList_FilterByCategory(t *testing.T) {
	repo := New(testDB(t))
	ctx := context.Background()

	for _, tg := range []domtag.Tag{
		makeTag("postgres", "service"),
		makeTag("kafka", "service"),
		makeTag("prod", "environment"),
	} {
		if err := repo.Create(ctx, tg); err != nil {
			t.Fatalf("Create %s: %v", tg.Name, err)
		}
	}

	services, err := repo.List(ctx, "service")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("expected 2 service tags, got %d", len(services))
	}
	if services[0].Name != "kafka" || services[1].Name != "postgres" {
		t.Errorf("expected name order, got %+v", services)
	}

	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 tags, got %d", len(all))
	}
}

func TestLinkUnlink(t *testing.T) {
	db := testDB(t)
	repo := New(db)
	ctx := context.Background()
	entryID := createParentEntry(t, db)

	tg := makeTag("postgres", "service")
	if err := repo.Create(ctx, tg); err != nil {
		t.Fatalf("Create: %v", err)
	}

	link := domtag.EntryTag{
		ID: uuid.New(), EntryID: entryID, TagID: tg.ID,
		AddedBy: "alice", CreatedAt: time.Now().UTC(),
	}
	if err := repo.Link(ctx, link); err != nil {
		t.Fatalf("Link: %v", err)
	}

	link.ID = uuid.New()
	if err := repo.Link(ctx, link); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on duplicate link, got %v", err)
	}

	tags, err := repo.ListByEntry(ctx, entryID)
	if err != nil {
		t.Fatalf("ListByEntry: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "postgres" {
		t.Errorf("unexpected entry tags: %+v", tags)
	}

	if err := repo.Unlink(ctx, entryID, tg.ID); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := repo.Unlink(ctx, entryID, tg.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second unlink, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := New(testDB(t))
	if _, err := repo.Get(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
