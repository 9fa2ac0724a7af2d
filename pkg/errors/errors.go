package errors

import (
	"errors"
	"fmt"
	"time"
)

// Common application errors with proper types for error handling

var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied indicates the user doesn't have permission
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates missing or invalid authentication
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates a conflict with existing data (overlapping windows, duplicates)
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition indicates a lifecycle transition from a disallowed state
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrUpstreamUnavailable indicates an external collaborator could not be reached
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)

// ValidationError describes malformed input. It is always returned before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Reason, ErrInvalidInput)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// OverlapError reports a time conflict with an existing slot or session.
type OverlapError struct {
	Kind       string // "slot" or "session"
	ConflictID string
	Start      time.Time
	End        time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s overlaps existing %s %s [%s, %s): %s",
		e.Kind, e.Kind, e.ConflictID,
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339), ErrConflict)
}

func (e *OverlapError) Unwrap() error { return ErrConflict }

// InvalidTransitionError names the current state and the requested transition.
type InvalidTransitionError struct {
	From   string
	Event  string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s session in state %s", e.Event, e.From)
	if e.To != "" {
		msg += " (requested " + e.To + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NotFoundError creates a not found error with context
func NotFoundError(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

// AccessDeniedError creates an access denied error with context
func AccessDeniedError(reason string) error {
	if reason != "" {
		return fmt.Errorf("%s: %w", reason, ErrAccessDenied)
	}
	return ErrAccessDenied
}

// InvalidInputError creates a validation error for a single field
func InvalidInputError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamError marks err as a collaborator failure
func UpstreamError(service string, err error) error {
	return fmt.Errorf("%s: %w: %w", service, ErrUpstreamUnavailable, err)
}

// InternalError creates an internal error with context
func InternalError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInternal)
}

// Is checks if an error matches a target error (works with wrapped errors)
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
