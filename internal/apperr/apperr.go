// Package apperr defines the machine-readable business error codes returned
// by platform services. Handlers branch on the code; infrastructure failures
// stay plain errors and surface as generic server errors.
package apperr

import (
	"errors"
	"fmt"
)

// Business error codes.
const (
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeSlotNotFound       = "SLOT_NOT_FOUND"
	CodeTreeNotInitialized = "TREE_NOT_INITIALIZED"
	CodeSlotAlreadyOwned   = "SLOT_ALREADY_OWNED"
	CodeCannotAssignRoot   = "CANNOT_ASSIGN_ROOT"
	CodeUnsupportedCase    = "UNSUPPORTED_CASE"
	CodeUnknownTier        = "UNKNOWN_TIER"
	CodeConflict           = "CONFLICT"
	CodeInsufficientPoints = "INSUFFICIENT_POINTS"
	CodeRoundNotActive     = "ROUND_NOT_ACTIVE"
	CodeClaimLimitReached  = "CLAIM_LIMIT_REACHED"
)

// Error is a business-rule violation with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a coded business error.
func New(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the business code carried by err, or "" when err is not a
// business error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given business code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
