package domain

import (
	"errors"
	"fmt"
)

// -----------------------------
// TransientError
// -----------------------------

// FaultKind classifies why a poll cycle failed.
type FaultKind string

const (
	FaultNetwork FaultKind = "network"
	FaultStatus  FaultKind = "status"
	FaultDecode  FaultKind = "decode"
	FaultStore   FaultKind = "store"
	FaultPanic   FaultKind = "panic"
)

// TransientError is a poll-cycle failure that does not prevent later cycles
// from succeeding. StatusCode is zero unless Kind is FaultStatus.
type TransientError struct {
	Kind       FaultKind
	StatusCode int
	Err        error
}

func NewTransientError(kind FaultKind, err error) *TransientError {
	return &TransientError{Kind: kind, Err: err}
}

func NewStatusError(statusCode int, body string) *TransientError {
	return &TransientError{
		Kind:       FaultStatus,
		StatusCode: statusCode,
		Err:        fmt.Errorf("unexpected status %d: %s", statusCode, body),
	}
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient %s fault: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transient %s fault", e.Kind)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// AsTransient returns err as a *TransientError, classifying anything else
// under fallback.
func AsTransient(err error, fallback FaultKind) *TransientError {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) {
		return te
	}
	return NewTransientError(fallback, err)
}

// -----------------------------
// NotFoundError
// -----------------------------

type NotFoundError struct {
	Resource string
	Key      string
}

func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// -----------------------------
// ValidationError
// -----------------------------

type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		Message: message,
	}
}

func NewValidationErrorWithCause(message string, cause error) *ValidationError {
	return &ValidationError{
		Message: message,
		Cause:   cause,
	}
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
