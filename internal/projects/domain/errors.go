package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrNotOwner          = errors.New("actor does not own this project")
	ErrRoleForbidden     = errors.New("actor role is not allowed to do this")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPaymentPending    = errors.New("payment has not been confirmed by the provider")
)

// ValidationError reports a pre-submission field problem. It never reaches
// the record store: callers surface it and keep the entered data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionError carries the attempted move so handlers can report it
// without consulting the record again.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %q to %q", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
