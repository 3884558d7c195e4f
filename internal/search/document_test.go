package search

import (
	"testing"
	"time"

	"github.com/google/uuid"

	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
)

func TestNewEntryDocument_JoinsSymptomsInOrder(t *testing.T) {
	e := domentry.Entry{
		ID: uuid.New(), Title: "host out of disk",
		Severity: domentry.SeverityHigh, WorkflowState: workflow.Published,
		CreatedBy: "alice",
		CreatedAt: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
		Symptoms: []domentry.Symptom{
			{Description: "disk full", OrderIndex: 0},
			{Description: "oom killed", OrderIndex: 1},
		},
	}

	doc := NewEntryDocument(e)
	if doc.Symptoms != "disk full oom killed" {
		t.Errorf("symptoms = %q, want space-joined in order", doc.Symptoms)
	}
	if doc.Severity != "high" || doc.WorkflowState != "published" {
		t.Errorf("unexpected doc: %+v", doc)
	}
	if doc.CreatedAt != "2026-01-05T12:00:00Z" {
		t.Errorf("created_at = %q", doc.CreatedAt)
	}
}

func TestNewEntryDocument_SkipsEmptySymptoms(t *testing.T) {
	e := domentry.Entry{
		ID: uuid.New(), Title: "t",
		Symptoms: []domentry.Symptom{
			{Description: "disk full", OrderIndex: 0},
			{Description: "", OrderIndex: 1},
			{Description: "oom killed", OrderIndex: 2},
		},
	}
	doc := NewEntryDocument(e)
	if doc.Symptoms != "disk full oom killed" {
		t.Errorf("symptoms = %q, want empty descriptions dropped", doc.Symptoms)
	}
}

func TestNewEntryDocument_NoSymptoms(t *testing.T) {
	doc := NewEntryDocument(domentry.Entry{ID: uuid.New(), Title: "t"})
	if doc.Symptoms != "" {
		t.Errorf("symptoms = %q, want empty", doc.Symptoms)
	}
	if doc.CreatedAt != "" {
		t.Errorf("created_at = %q, want empty for zero time", doc.CreatedAt)
	}
}

func TestNewSolutionDocument_StepsText(t *testing.T) {
	s := domsol.Solution{
		ID: uuid.New(), EntryID: uuid.New(),
		Title: "free disk space", Type: domsol.TypeResolution,
		Steps: []domsol.Step{
			{Action: "rotate logs", ExpectedResult: "space reclaimed"},
			{Action: "restart service"},
		},
	}

	doc := NewSolutionDocument(s)
	if doc.StepsText != "rotate logs space reclaimed restart service" {
		t.Errorf("steps_text = %q", doc.StepsText)
	}
	if doc.SolutionType != "resolution" {
		t.Errorf("solution_type = %q", doc.SolutionType)
	}
}
