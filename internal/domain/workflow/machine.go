package workflow

import (
	"context"
	"errors"
)

var (
	// ErrInvalidTransition means the trigger is not allowed from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState means the stored status is not a lifecycle state
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed wraps the first guard error that blocked a trigger
	ErrGuardFailed = errors.New("guard condition failed")
)

// IsConflict reports whether err means the request is in the wrong state
// for the attempted operation
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrInvalidState)
}

// StateMachine tracks one request's lifecycle state
type StateMachine interface {
	State() State

	// CanFire reports whether trigger is configured for the current
	// state. Guards are not run.
	CanFire(trigger Trigger) bool

	// Fire runs the guards of trigger and moves to the first target whose
	// guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists the configured triggers in name order
	PermittedTriggers() []Trigger
}
