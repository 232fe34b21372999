package services

import (
	"errors"
	"fmt"

	"github.com/edtestlab/exam-engine/internal/validator"
)

// Sentinel errors. Handlers map these to the HTTP error taxonomy; ownership
// failures surface as not-found so the existence of foreign attempts is
// never revealed.
var (
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")

	ErrAssignmentNotFound   = errors.New("assignment not found")
	ErrAssignmentInactive   = errors.New("assignment is not active")
	ErrAssignmentNotStarted = errors.New("assignment window has not opened")
	ErrAssignmentEnded      = errors.New("assignment window has closed")

	ErrTestNotFound       = errors.New("test not found")
	ErrNotClassMember     = errors.New("student is not an active member of the class")
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")

	ErrUserNotFound = errors.New("user not found")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationErrors is re-exported so handlers can errors.As against the
// services package alone.
type ValidationErrors = validator.ValidationErrors

// PermissionError carries who tried to do what to which resource.
type PermissionError struct {
	UserID   string
	Resource string
	ID       uint
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ID, e.Reason)
}

func NewPermissionError(userID string, id uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:   userID,
		Resource: resource,
		ID:       id,
		Action:   action,
		Reason:   reason,
	}
}

// BusinessRuleError reports a domain-rule violation that is not a plain
// validation failure.
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business_logic",
	}}
}
