package errors

import (
	"errors"
	"fmt"
)

// AppError carries a stable business error code alongside a user-facing
// message and an optional underlying cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError creates a new error with the given code and message.
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap returns a copy of e carrying err as its cause. The original message
// is preserved so store failures surface with context intact.
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is reports whether err is (or wraps) an AppError with target's code.
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode returns the business code of err, or CodeServerError for
// anything that is not an AppError.
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// GetMessage returns the user-facing message of err.
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

const (
	CodeSuccess = 0

	// auth 10000-10999
	CodeTokenInvalid = 10001
	CodeTokenExpired = 10002
	CodeForbidden    = 10003

	// validation 11000-11999
	CodeInvalidParams = 11001
	CodeEmptyMessage  = 11002

	// messaging 12000-12999
	CodeConversationNotFound = 12001
	CodeMessageNotFound      = 12002
	CodeNotParticipant       = 12003
	CodeNotAuthor            = 12004

	// system 50000-50999
	CodeServerError  = 50001
	CodeDBError      = 50002
	CodeStorageError = 50003
)

// auth
var (
	ErrTokenInvalid = NewError(CodeTokenInvalid, "token is invalid")
	ErrTokenExpired = NewError(CodeTokenExpired, "token has expired")
	ErrForbidden    = NewError(CodeForbidden, "operation not permitted")
)

// validation
var (
	ErrInvalidParams = NewError(CodeInvalidParams, "invalid parameters")
	ErrEmptyMessage  = NewError(CodeEmptyMessage, "message needs text or at least one attachment")
)

// messaging
var (
	ErrConversationNotFound = NewError(CodeConversationNotFound, "conversation not found")
	ErrMessageNotFound      = NewError(CodeMessageNotFound, "message not found")
	ErrNotParticipant       = NewError(CodeNotParticipant, "user is not an active participant")
	ErrNotAuthor            = NewError(CodeNotAuthor, "only the author may delete a message")
)

// system
var (
	ErrServerError  = NewError(CodeServerError, "internal server error")
	ErrDBError      = NewError(CodeDBError, "database error")
	ErrStorageError = NewError(CodeStorageError, "object storage error")
)
