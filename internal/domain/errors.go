package domain

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeNotAuthorized     = "NOT_AUTHORIZED"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
)

// Error is the taxonomy shared by every mutation path. Read paths never
// return one for missing data; they return a nil record instead.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(status int, code, message string, details any) *Error {
	return &Error{Status: status, Code: code, Message: message, Details: details}
}

func ValidationError(message string, details any) *Error {
	return newError(http.StatusBadRequest, CodeValidation, message, details)
}

func NotFoundError(kind Kind, id string) *Error {
	return newError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s %s not found", kind, id), nil)
}

func AuthorizationError(message string) *Error {
	return newError(http.StatusForbidden, CodeNotAuthorized, message, nil)
}

func ConflictError(message string) *Error {
	return newError(http.StatusConflict, CodeConflict, message, nil)
}

func InvalidTransitionError(from, to SessionStatus) *Error {
	return newError(http.StatusConflict, CodeInvalidTransition, fmt.Sprintf("cannot move session from %s to %s", from, to), nil)
}

// IsCode reports whether err is a domain Error carrying the given code.
func IsCode(err error, code string) bool {
	var domainErr *Error
	return errors.As(err, &domainErr) && domainErr.Code == code
}
