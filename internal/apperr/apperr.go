// Package apperr implements the error taxonomy every Postgate component
// bubbles errors through to the HTTP boundary, where a single mapper turns
// them into the wire envelope {"error": ..., "code": ...}.
package apperr

import "net/http"

// Code is one of the closed set of wire error codes from the error table.
type Code string

const (
	CodeParseError       Code = "PARSE_ERROR"
	CodeRowLimitExceeded Code = "ROW_LIMIT_EXCEEDED"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeDatabaseNotFound Code = "DATABASE_NOT_FOUND"
	CodeTimeout          Code = "TIMEOUT"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeDatabaseError    Code = "DATABASE_ERROR"
	CodeInternalError    Code = "INTERNAL_ERROR"
)

var statusForCode = map[Code]int{
	CodeParseError:       http.StatusBadRequest,
	CodeRowLimitExceeded: http.StatusBadRequest,
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeDatabaseNotFound: http.StatusNotFound,
	CodeTimeout:          http.StatusGatewayTimeout,
	CodeUnavailable:      http.StatusServiceUnavailable,
	CodeDatabaseError:    http.StatusInternalServerError,
	CodeInternalError:    http.StatusInternalServerError,
}

// CodedError is the single error type that crosses the HTTP boundary.
// Every component-level error is either already one of these or gets wrapped
// into one by its caller; no error reaches the handler un-mapped.
type CodedError struct {
	Code    Code
	Message string
}

func (e *CodedError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status the error table assigns to this code.
func (e *CodedError) StatusCode() int {
	if s, ok := statusForCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(code Code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

func ParseError(message string) *CodedError       { return New(CodeParseError, message) }
func RowLimitExceeded(message string) *CodedError  { return New(CodeRowLimitExceeded, message) }
func Unauthorized(message string) *CodedError      { return New(CodeUnauthorized, message) }
func DatabaseNotFound(message string) *CodedError  { return New(CodeDatabaseNotFound, message) }
func Timeout(message string) *CodedError           { return New(CodeTimeout, message) }
func Unavailable(message string) *CodedError       { return New(CodeUnavailable, message) }
func DatabaseError(message string) *CodedError     { return New(CodeDatabaseError, message) }
func InternalError(message string) *CodedError     { return New(CodeInternalError, message) }

// Is reports whether err is an instance of T. Mirrors the teacher's generic
// type-assertion helper for branching on a specific custom error type.
func Is[T error](err error) bool {
	_, ok := err.(T)
	return ok
}

// AsCoded unwraps err into a *CodedError, falling back to INTERNAL_ERROR for
// anything that reached the boundary unmapped — no error is ever silently
// swallowed or returned as a raw 500 without a code.
func AsCoded(err error) *CodedError {
	if ce, ok := err.(*CodedError); ok {
		return ce
	}
	return InternalError(err.Error())
}
