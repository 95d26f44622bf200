package widget

import (
	"errors"
	"fmt"
	"math"
)

// ErrorCode categorizes repository errors.
type ErrorCode string

const (
	// CodeValidation indicates a malformed create or update request.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeNotFound indicates the operation targets an id that is not live.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodePage indicates a requested page lies outside the current listing.
	CodePage ErrorCode = "PAGE"
)

// Error is returned for every caller-facing failure of a repository.
// None of these errors are transient; retrying the same call yields the same
// result unless concurrent writers change the widget set (relevant for
// CodePage only).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ID is the widget the error refers to, zero if none.
	ID ID
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s: %s (id=%d)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates an Error for an invalid request.
func NewValidationError(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// NewZOverflowError creates a validation Error for a placement at z that
// would push a widget past the largest representable z.
func NewZOverflowError(z int) *Error {
	return NewValidationError(fmt.Sprintf("no room above z %d: the maximum z is %d", z, math.MaxInt))
}

// NewNotFoundError creates an Error for a missing widget.
func NewNotFoundError(id ID) *Error {
	return &Error{Code: CodeNotFound, Message: "widget not found", ID: id}
}

// NewPageError creates an Error for an out-of-range page request.
func NewPageError(page, size, total int) *Error {
	return &Error{
		Code:    CodePage,
		Message: fmt.Sprintf("page %d is out of bounds with size %d; total widgets: %d", page, size, total),
	}
}

// IsValidation reports whether err is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsPageError reports whether err is a pagination error.
func IsPageError(err error) bool {
	return hasCode(err, CodePage)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
