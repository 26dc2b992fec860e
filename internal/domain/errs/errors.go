// Package errs defines the failure taxonomy shared by the domain, the
// application services and the HTTP adapter.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

var (
	// ErrNotFound is returned when a request, expense or receipt does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when a request changed status between being
	// read and being written
	ErrConflict = errors.New("request was modified concurrently")
)

// ValidationError lists field-level violations. It never accompanies a
// state change: the operation that returns it has not mutated anything.
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// NewValidationError creates a ValidationError with a headline message
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: map[string]string{}}
}

// Add records a violation for field. The first reason for a field wins.
func (e *ValidationError) Add(field, reason string) *ValidationError {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = reason
	}
	return e
}

// Merge copies violations from other, prefixing each field name
func (e *ValidationError) Merge(prefix string, other *ValidationError) *ValidationError {
	if other == nil {
		return e
	}
	for field, reason := range other.Fields {
		e.Add(prefix+field, reason)
	}
	return e
}

// HasErrors returns true if any field violation was recorded
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns e if it has violations, nil otherwise
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// FieldNames returns the violated fields in sorted order
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

// Combined returns every violation as a single multierr value for logging
func (e *ValidationError) Combined() error {
	var err error
	for _, f := range e.FieldNames() {
		err = multierr.Append(err, fmt.Errorf("%s: %s", f, e.Fields[f]))
	}
	return err
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.FieldNames() {
		parts = append(parts, f+": "+e.Fields[f])
	}
	if e.Message == "" {
		return strings.Join(parts, "; ")
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// AuthorizationError blocks an action the actor may not perform, either
// because of who they are or because of the state the target is in
type AuthorizationError struct {
	ActorID string
	Action  string
	Reason  string
}

// NewAuthorizationError creates an AuthorizationError
func NewAuthorizationError(actorID, action, reason string) *AuthorizationError {
	return &AuthorizationError{ActorID: actorID, Action: action, Reason: reason}
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not allowed to %s: %s", e.Action, e.Reason)
}

// NetworkError wraps a failure talking to an external collaborator.
// Callers should offer a retry instead of asking for different input.
type NetworkError struct {
	Op  string
	Err error
}

// NewNetworkError wraps err as a retriable failure of op
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err}
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Retriable is always true for network failures
func (e *NetworkError) Retriable() bool {
	return true
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsAuthorization reports whether err carries an AuthorizationError
func IsAuthorization(err error) bool {
	var a *AuthorizationError
	return errors.As(err, &a)
}

// IsNetwork reports whether err carries a NetworkError
func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}
