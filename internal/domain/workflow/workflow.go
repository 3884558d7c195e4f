// Package workflow defines the entry publication state machine: which states
// exist, which transitions are legal, and the errors raised when a caller
// requests an illegal one.
package workflow

import (
	"fmt"
	"strings"

	"github.com/kedb-platform/kedb/internal/domain"
)

// State is an entry's position in the draft-to-publication lifecycle.
type State string

// Workflow states. Draft is the only initial state; Retired and Merged are
// terminal.
const (
	Draft     State = "draft"
	InReview  State = "in_review"
	Published State = "published"
	Retired   State = "retired"
	Merged    State = "merged"
)

// transitions maps each state to its allowed successors.
var transitions = map[State][]State{
	Draft:     {InReview, Retired},
	InReview:  {Draft, Published, Retired},
	Published: {Retired, Merged},
	Retired:   {},
	Merged:    {},
}

// IsValid reports whether s is one of the five workflow states.
func (s State) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0 && s.IsValid()
}

// Next returns the allowed successor states of s.
func Next(s State) []State {
	next := transitions[s]
	out := make([]State, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowsUpdate reports whether general field updates are permitted in s.
// This is a separate guard from the transition table: only draft and
// in_review entries are editable.
func AllowsUpdate(s State) bool {
	return s == Draft || s == InReview
}

// Error is a workflow guard failure. It unwraps to domain.ErrWorkflow and
// carries enough detail for the transport layer to surface the legal
// alternatives to the caller.
type Error struct {
	From    State
	To      State
	Allowed []State
	msg     string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return domain.ErrWorkflow }

// NewTransitionError reports an illegal from -> to transition. The message
// enumerates the legal next states, or states that none exist for terminal
// states.
func NewTransitionError(from, to State) *Error {
	allowed := Next(from)
	var detail string
	if len(allowed) == 0 {
		detail = fmt.Sprintf("no valid transitions from %s", from)
	} else {
		names := make([]string, len(allowed))
		for i, s := range allowed {
			names[i] = string(s)
		}
		detail = "valid transitions: " + strings.Join(names, ", ")
	}
	return &Error{
		From:    from,
		To:      to,
		Allowed: allowed,
		msg:     fmt.Sprintf("invalid transition from %s to %s: %s", from, to, detail),
	}
}

// NewUpdateError reports a field update attempted outside draft/in_review.
func NewUpdateError(current State) *Error {
	return &Error{
		From:    current,
		Allowed: Next(current),
		msg:     fmt.Sprintf("cannot update entry in %s state", current),
	}
}
