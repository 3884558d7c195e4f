// Package review defines review sessions held before an entry is published.
package review

import (
	"time"

	"github.com/google/uuid"
)

// Status is the review's approval outcome.
type Status string

// Review statuses. Pending is the only non-terminal status.
const (
	StatusPending          Status = "pending"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusChangesRequested Status = "changes_requested"
)

// IsValid reports whether s is a known review status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusChangesRequested:
		return true
	}
	return false
}

// Terminal reports whether s ends the review.
func (s Status) Terminal() bool {
	return s.IsValid() && s != StatusPending
}

// Role is a participant's role in the review.
type Role string

// Participant roles.
const (
	RoleLead     Role = "lead"
	RoleReviewer Role = "reviewer"
	RoleObserver Role = "observer"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleLead || r == RoleReviewer || r == RoleObserver
}

// Review is a review session for one entry.
type Review struct {
	ID          uuid.UUID
	EntryID     uuid.UUID
	Status      Status
	Comments    string
	RCAText     string
	CreatedAt   time.Time
	CompletedAt time.Time

	Participants []Participant
}

// Participant is a user taking part in a review. Approved is nil until the
// participant responds.
type Participant struct {
	ID          uuid.UUID
	ReviewID    uuid.UUID
	UserID      string
	Role        Role
	Approved    *bool
	Comments    string
	CreatedAt   time.Time
	RespondedAt time.Time
}
