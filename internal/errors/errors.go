package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess           Code = 0
	CodeInternal          Code = 1
	CodeUsage             Code = 2
	CodeAuth              Code = 10
	CodeRateLimited       Code = 11
	CodeUnavailable       Code = 12
	CodeUnsupported       Code = 13
	CodeBlocked           Code = 16
	CodeNotFound          Code = 17
	CodeNoAddress         Code = 18
	CodeInsufficientFunds Code = 19
	CodeStorage           Code = 20
	CodeEngine            Code = 21
)

// Type returns the snake_case name rendered in JSON error bodies.
func (c Code) Type() string {
	switch c {
	case CodeSuccess:
		return "ok"
	case CodeUsage:
		return "usage_error"
	case CodeAuth:
		return "vault_error"
	case CodeRateLimited:
		return "rate_limited"
	case CodeUnavailable:
		return "node_unavailable"
	case CodeUnsupported:
		return "unsupported"
	case CodeBlocked:
		return "command_blocked"
	case CodeNotFound:
		return "not_found"
	case CodeNoAddress:
		return "no_address"
	case CodeInsufficientFunds:
		return "insufficient_funds"
	case CodeStorage:
		return "storage_error"
	case CodeEngine:
		return "engine_error"
	default:
		return "internal_error"
	}
}

// Error is a typed CLI error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if cliErr, ok := As(err); ok {
		return cliErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func ExitCode(err error) int {
	return int(CodeOf(err))
}
