package search

import (
	"strings"
	"time"

	domentry "github.com/kedb-platform/kedb/internal/domain/entry"
	domsol "github.com/kedb-platform/kedb/internal/domain/solution"
)

// EntryDocument is the denormalized entry projection written to the index.
// It is derived, never authoritative: always reconstructible from the store.
type EntryDocument struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Severity      string `json:"severity"`
	WorkflowState string `json:"workflow_state"`
	CreatedBy     string `json:"created_by"`
	CreatedAt     string `json:"created_at,omitempty"`
	RootCause     string `json:"root_cause"`
	Symptoms      string `json:"symptoms"`
}

// SolutionDocument is the denormalized solution projection.
type SolutionDocument struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	SolutionType string `json:"solution_type"`
	EntryID      string `json:"entry_id"`
	CreatedAt    string `json:"created_at,omitempty"`
	StepsText    string `json:"steps_text"`
}

// NewEntryDocument flattens an entry and its symptoms into an index
// document. Symptom descriptions are space-joined in order_index order;
// empty descriptions are skipped.
func NewEntryDocument(e domentry.Entry) EntryDocument {
	descriptions := make([]string, 0, len(e.Symptoms))
	for _, s := range e.Symptoms {
		if s.Description == "" {
			continue
		}
		descriptions = append(descriptions, s.Description)
	}
	return EntryDocument{
		ID:            e.ID.String(),
		Title:         e.Title,
		Description:   e.Description,
		Severity:      string(e.Severity),
		WorkflowState: string(e.WorkflowState),
		CreatedBy:     e.CreatedBy,
		CreatedAt:     formatTime(e.CreatedAt),
		RootCause:     e.RootCause,
		Symptoms:      strings.Join(descriptions, " "),
	}
}

// NewSolutionDocument flattens a solution and its steps into an index
// document. Each step contributes "action expected_result" to steps_text,
// in step order.
func NewSolutionDocument(s domsol.Solution) SolutionDocument {
	parts := make([]string, 0, 2*len(s.Steps))
	for _, step := range s.Steps {
		if step.Action != "" {
			parts = append(parts, step.Action)
		}
		if step.ExpectedResult != "" {
			parts = append(parts, step.ExpectedResult)
		}
	}
	return SolutionDocument{
		ID:           s.ID.String(),
		Title:        s.Title,
		Description:  s.Description,
		SolutionType: string(s.Type),
		EntryID:      s.EntryID.String(),
		CreatedAt:    formatTime(s.CreatedAt),
		StepsText:    strings.Join(parts, " "),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
