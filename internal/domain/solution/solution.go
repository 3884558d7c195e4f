// Package solution defines solutions attached to entries: a workaround or
// resolution composed of ordered remediation steps.
package solution

import (
	"time"

	"github.com/google/uuid"
)

// Type distinguishes temporary workarounds from permanent resolutions.
type Type string

// Solution types.
const (
	TypeWorkaround Type = "workaround"
	TypeResolution Type = "resolution"
)

// IsValid reports whether t is a known solution type.
func (t Type) IsValid() bool {
	return t == TypeWorkaround || t == TypeResolution
}

// Solution belongs to exactly one entry and owns its steps.
type Solution struct {
	ID                   uuid.UUID
	EntryID              uuid.UUID
	Title                string
	Description          string
	Type                 Type
	EstimatedTimeMinutes int
	Prerequisites        string
	CreatedBy            string
	UpdatedBy            string
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Steps []Step
}

// Step is one ordered remediation action. OrderIndex defines execution
// order within the solution.
type Step struct {
	ID              uuid.UUID
	SolutionID      uuid.UUID
	OrderIndex      int
	Action          string
	ExpectedResult  string
	Command         string
	RollbackAction  string
	RollbackCommand string
	Metadata        map[string]any
	CreatedAt       time.Time
}

// Update is a partial solution update. Nil pointers leave fields untouched.
type Update struct {
	Title                *string
	Description          *string
	Type                 *Type
	EstimatedTimeMinutes *int
	Prerequisites        *string
}

// StepUpdate is a partial step update.
type StepUpdate struct {
	Action          *string
	ExpectedResult  *string
	Command         *string
	RollbackAction  *string
	RollbackCommand *string
	Metadata        map[string]any
}
