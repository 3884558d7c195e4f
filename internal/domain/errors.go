// Package domain holds the KEDB entities and the sentinel errors shared by
// every layer of the service.
package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation signals an input that fails domain validation.
	ErrValidation = errors.New("validation failed")
	// ErrWorkflow signals an operation forbidden by the entry's workflow state.
	ErrWorkflow = errors.New("workflow violation")
	// ErrConflict signals a lost race on a conditional state update.
	ErrConflict = errors.New("state conflict")
	// ErrSearchUnavailable signals that the search index cannot serve a live query.
	ErrSearchUnavailable = errors.New("search unavailable")
)
