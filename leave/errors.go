package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientBalance    = generic.ErrInsufficientBalance
	ErrOverlappingRequest     = errors.New("overlapping leave request")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotAuthorized          = errors.New("not authorized")
	ErrNotFound               = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OverlapError names the existing request whose dates collide.
type OverlapError struct {
	EmployeeID EmployeeID
	ExistingID RequestID
	Start      generic.TimePoint
	End        generic.TimePoint
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("employee %s already has request %d covering %s..%s",
		e.EmployeeID, e.ExistingID, e.Start, e.End)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingRequest }

type TransitionError struct {
	ID     RequestID
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("request %d cannot move from %s to %s", e.ID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

type AuthorizationError struct {
	Actor  EmployeeID
	Action string
	Target RequestID
}

func (e *AuthorizationError) Error() string {
	if e.Target == 0 {
		return fmt.Sprintf("%s is not allowed to %s", e.Actor, e.Action)
	}
	return fmt.Sprintf("%s is not allowed to %s request %d", e.Actor, e.Action, e.Target)
}

func (e *AuthorizationError) Unwrap() error { return ErrNotAuthorized }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func RequestNotFound(id RequestID) error {
	return &NotFoundError{Kind: "leave request", ID: fmt.Sprint(id)}
}

func EmployeeNotFound(id EmployeeID) error {
	return &NotFoundError{Kind: "employee", ID: string(id)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Error codes shared by logs, metrics and the HTTP layer.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeOverlappingRequest  = "OVERLAPPING_REQUEST"
	CodeInvalidTransition   = "INVALID_STATE_TRANSITION"
	CodeNotAuthorized       = "NOT_AUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeCancelled           = "CANCELLED"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorCode classifies err into one of the codes above.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrOverlappingRequest):
		return CodeOverlappingRequest
	case errors.Is(err, ErrInvalidStateTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrNotAuthorized):
		return CodeNotAuthorized
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	}
	return CodeInternal
}

// IsBusinessError reports whether err is a rule rejection rather than a
// storage or programming failure.
func IsBusinessError(err error) bool {
	switch ErrorCode(err) {
	case CodeInternal, CodeCancelled:
		return false
	}
	return true
}
