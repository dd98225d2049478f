package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// Codes used only by the HTTP layer.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeRateLimited     = "RATE_LIMITED"
)

// apiError is the HTTP rendition of an engine error.
type apiError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *apiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *apiError) Unwrap() error { return e.Err }

func badRequest(message string, err error) *apiError {
	return &apiError{Code: leave.CodeValidation, Message: message, Status: http.StatusBadRequest, Err: err}
}

var statusByCode = map[string]int{
	leave.CodeValidation:          http.StatusBadRequest,
	leave.CodeInsufficientBalance: http.StatusConflict,
	leave.CodeOverlappingRequest:  http.StatusConflict,
	leave.CodeInvalidTransition:   http.StatusConflict,
	leave.CodeNotAuthorized:       http.StatusForbidden,
	leave.CodeNotFound:            http.StatusNotFound,
	leave.CodeCancelled:           http.StatusServiceUnavailable,
}

// toAPIError classifies err. Business errors keep their own message;
// anything else is reported as an internal error without details.
func toAPIError(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return badRequest(validationMessage(verrs[0]), err)
	}

	code := leave.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		return &apiError{Code: leave.CodeInternal, Message: "internal error", Status: http.StatusInternalServerError, Err: err}
	}
	return &apiError{Code: code, Message: err.Error(), Status: status, Err: err}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "datetime":
		return fe.Field() + " must be a YYYY-MM-DD date"
	}
	return fe.Field() + " is invalid"
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	ae := toAPIError(err)
	if ae.Status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", ae.Code), zap.Error(err))
	}
	writeJSON(w, ae.Status, ErrorBody{Error: ErrorDetail{Code: ae.Code, Message: ae.Message}})
}
