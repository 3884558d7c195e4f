// Package entry defines the Entry aggregate: a cataloged known problem with
// its symptoms, linked incidents and workflow position.
package entry

import (
	"time"

	"github.com/google/uuid"

	"github.com/kedb-platform/kedb/internal/domain/solution"
	"github.com/kedb-platform/kedb/internal/domain/workflow"
)

// Severity classifies the impact of the problem.
type Severity string

// Severity levels, highest first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// IsValid reports whether s is a known severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Status is the entry's operational status, independent of workflow state.
type Status string

// Operational statuses.
const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusArchived
}

// Entry is a known problem record. MergedInto is set only while
// WorkflowState is merged; PublishedAt only once the entry has been
// published.
type Entry struct {
	ID              uuid.UUID
	Title           string
	Description     string
	Severity        Severity
	WorkflowState   workflow.State
	Status          Status
	CreatedBy       string
	UpdatedBy       string
	ApprovedBy      string
	MergedInto      uuid.UUID
	RootCause       string
	ImpactSummary   string
	DetectionMethod string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PublishedAt     time.Time

	Symptoms  []Symptom
	Incidents []Incident
	Solutions []solution.Solution
}

// Symptom is an observable indicator of the problem. OrderIndex defines the
// display and concatenation order within the entry.
type Symptom struct {
	ID          uuid.UUID
	EntryID     uuid.UUID
	Description string
	OrderIndex  int
	SymptomType string
	CreatedAt   time.Time
}

// Incident links the entry to an occurrence in an external incident system.
type Incident struct {
	ID         uuid.UUID
	EntryID    uuid.UUID
	IncidentID string
	Source     string
	URL        string
	OccurredAt time.Time
	ResolvedAt time.Time
	CreatedAt  time.Time
}

// ListFilter narrows entry listings. Zero values mean "no filter".
type ListFilter struct {
	WorkflowState workflow.State
	Severity      Severity
	CreatedBy     string
}

// Update is a partial field update. Nil pointers leave the field untouched.
type Update struct {
	Title           *string
	Description     *string
	Severity        *Severity
	Status          *Status
	RootCause       *string
	ImpactSummary   *string
	DetectionMethod *string
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Severity == nil &&
		u.Status == nil && u.RootCause == nil && u.ImpactSummary == nil &&
		u.DetectionMethod == nil
}
