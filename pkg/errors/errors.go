// Package errors provides the structured error type shared by every pipeline
// stage and the API layer. Stage boundaries return *AppError so callers can
// tell data defects from precondition violations without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a failure category.
type ErrorCode string

func (c ErrorCode) String() string { return string(c) }

const (
	// CodeDataDefect covers missing or degenerate columns, non-numeric values in
	// numeric columns and empty post-cleaning datasets.
	CodeDataDefect ErrorCode = "DATA_DEFECT"
	// CodePrecondition covers stages invoked out of order.
	CodePrecondition ErrorCode = "PRECONDITION_FAILED"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeInternal     ErrorCode = "INTERNAL"
)

var httpStatus = map[ErrorCode]int{
	CodeDataDefect:   http.StatusUnprocessableEntity,
	CodePrecondition: http.StatusConflict,
	CodeInvalidInput: http.StatusBadRequest,
	CodeNotFound:     http.StatusNotFound,
	CodeInternal:     http.StatusInternalServerError,
}

// AppError is the error carrier used at stage boundaries.
type AppError struct {
	Code    ErrorCode
	Message string
	Detail  string
	Cause   error
}

// Error formats as "[CODE] message: detail".
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any *AppError with the same code, so
// errors.Is(err, errors.New(CodeDataDefect, "")) works through wrapping.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of e with Detail set.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a copy of e with Cause set.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// New creates an AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new AppError. A nil cause yields nil.
func Wrap(cause error, code ErrorCode, message string) *AppError {
	if cause == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: cause}
}

func DataDefect(format string, args ...interface{}) *AppError {
	return Newf(CodeDataDefect, format, args...)
}

func Precondition(format string, args ...interface{}) *AppError {
	return Newf(CodePrecondition, format, args...)
}

func InvalidInput(format string, args ...interface{}) *AppError {
	return Newf(CodeInvalidInput, format, args...)
}

func NotFound(format string, args ...interface{}) *AppError {
	return Newf(CodeNotFound, format, args...)
}

func Internal(format string, args ...interface{}) *AppError {
	return Newf(CodeInternal, format, args...)
}

// CodeOf returns the code of the first AppError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// HTTPStatus maps err to a response status. Nil maps to 200.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status, ok := httpStatus[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
