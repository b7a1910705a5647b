// Package shared contains common domain types and errors used across the
// gamification domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "achievement", "leaderboard"
	Op      string // Operation that failed, e.g., "AwardXP"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Progress domain errors
var (
	ErrProfileNotFound  = NewDomainError("progress", "GetProfile", ErrNotFound, "gamification profile not found")
	ErrEmptyUserID      = NewDomainError("progress", "Validate", ErrInvalidID, "user id is required")
	ErrNegativeXP       = NewDomainError("progress", "AwardXP", ErrNegativeValue, "xp amount cannot be negative")
	ErrUnknownReason    = NewDomainError("progress", "AwardXP", ErrInvalidInput, "unknown xp reason")
	ErrInvalidSourceRef = NewDomainError("progress", "AwardXP", ErrInvalidInput, "source ref must be non-empty")
	ErrInvalidDailyGoal = NewDomainError("progress", "SetDailyGoal", ErrValueOutOfRange, "daily goal out of range")
	ErrEmptyAttemptID   = NewDomainError("progress", "RecordCompletion", ErrInvalidID, "attempt id is required")
	ErrDuplicateGrantID = NewDomainError("progress", "InsertGrant", ErrAlreadyExists, "grant id already recorded")
)

// Achievement domain errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
)

// Leaderboard domain errors
var (
	ErrInvalidPeriodType = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "unknown leaderboard period type")
	ErrEmptyClassID      = NewDomainError("leaderboard", "Validate", ErrInvalidID, "class id is required")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}
