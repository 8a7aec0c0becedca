package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Is reports whether err carries the given application error code.
func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InvalidParticipants marks a malformed or self-referential user pairing.
func InvalidParticipants(message string) *AppError {
	return &AppError{
		Code:    "INVALID_PARTICIPANTS",
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NotAParticipant marks an actor without an active participant row.
func NotAParticipant() *AppError {
	return &AppError{
		Code:    "NOT_A_PARTICIPANT",
		Message: "User is not a participant in this conversation",
		Status:  http.StatusForbidden,
	}
}

// ConversationClosed marks a write attempted on an archived or deleted thread.
func ConversationClosed(message string) *AppError {
	return &AppError{
		Code:    "CONVERSATION_CLOSED",
		Message: message,
		Status:  http.StatusConflict,
	}
}

// InvalidReply marks a parent message that does not belong to the same
// conversation as the reply.
func InvalidReply(message string) *AppError {
	return &AppError{
		Code:    "INVALID_REPLY",
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// StorageUnavailable is surfaced after the store adapter has already retried
// once; the caller is expected to retry the whole command.
func StorageUnavailable(err error) *AppError {
	return &AppError{
		Code:    "STORAGE_UNAVAILABLE",
		Message: "Storage is temporarily unavailable, please retry",
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    "TOO_MANY_REQUESTS",
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}
