package apperror

import (
	"errors"
	"fmt"
)

// Reason codes carried by ValidationError and BusinessRuleError.
const (
	ReasonInvalidTitle           = "InvalidTitle"
	ReasonInvalidDescription     = "InvalidDescription"
	ReasonInvalidCategory        = "InvalidCategory"
	ReasonInvalidTargetValue     = "InvalidTargetValue"
	ReasonInvalidValue           = "InvalidValue"
	ReasonInvalidUnit            = "InvalidUnit"
	ReasonInvalidNotes           = "InvalidNotes"
	ReasonInvalidDeadline        = "InvalidDeadline"
	ReasonInvalidKeyResultsCount = "InvalidKeyResultsCount"
	ReasonInvalidStatus          = "InvalidStatus"

	ReasonMinimumKeyResults       = "MinimumKeyResultsRequired"
	ReasonMaximumKeyResults       = "MaximumKeyResultsReached"
	ReasonInvalidStatusTransition = "InvalidStatusTransition"
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Reason, e.Message)
}

// BusinessRuleError reports structurally valid input that would break a domain invariant.
type BusinessRuleError struct {
	Reason  string
	Message string
}

func (e *BusinessRuleError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("business rule violated: %s", e.Reason)
	}
	return fmt.Sprintf("business rule violated: %s: %s", e.Reason, e.Message)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConcurrencyError is a transient conflict raised by the store. It is the only
// error class the orchestrator retries.
type ConcurrencyError struct {
	Op  string
	Err error
}

func (e *ConcurrencyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("concurrent modification during %s", e.Op)
	}
	return fmt.Sprintf("concurrent modification during %s: %v", e.Op, e.Err)
}

func (e *ConcurrencyError) Unwrap() error {
	return e.Err
}

func Validation(reason, format string, args ...any) error {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func BusinessRule(reason, format string, args ...any) error {
	return &BusinessRuleError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string, id fmt.Stringer) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

func Concurrency(op string, err error) error {
	return &ConcurrencyError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsBusinessRule(err error) bool {
	var be *BusinessRuleError
	return errors.As(err, &be)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

func IsConcurrency(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

// ReasonOf returns the reason code of a validation or business rule error, or
// an empty string for any other error.
func ReasonOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	var be *BusinessRuleError
	if errors.As(err, &be) {
		return be.Reason
	}
	return ""
}
