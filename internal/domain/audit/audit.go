// Package audit defines the audit trail record written on every mutation.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the audit trail.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionRetire     = "retire"
	ActionDelete     = "delete"
	ActionTransition = "transition"
)

// Entity types recorded in the audit trail.
const (
	EntityEntry    = "entry"
	EntitySymptom  = "entry_symptom"
	EntityIncident = "entry_incident"
	EntitySolution = "solution"
	EntityStep     = "solution_step"
)

// Record is one audit trail row: who did what to which entity. Diff holds
// field-level changes as {field: {old, new}}.
type Record struct {
	ID         uuid.UUID
	EntityType string
	EntityID   string
	Action     string
	Diff       map[string]any
	UserID     string
	RequestID  string
	CreatedAt  time.Time
}

// ListFilter narrows audit queries. Zero values mean "no filter".
type ListFilter struct {
	EntityType string
	EntityID   string
	UserID     string
	Since      time.Time
	Until      time.Time
}
