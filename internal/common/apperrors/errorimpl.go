package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

type appError struct {
	msg        string
	base       error
	wrapped    []error
	statusCode int
}

// New creates a root error with the given message.
func New(msg string) Error {
	return &appError{msg: msg}
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll appends the messages of wrapped errors that are not part of the base chain.
func (e *appError) ErrorAll() string {
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.wrapped {
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statusCode: e.statusCode,
	}
}

func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		wrapped:    e.wrapped,
		statusCode: e.statusCode,
	}
}

func (e *appError) Msgf(format string, args ...any) Error {
	return e.Msg(fmt.Sprintf(format, args...))
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return &appError{
		msg:        msg,
		base:       e,
		wrapped:    appendNonNil(e.wrapped, errs),
		statusCode: e.statusCode,
	}
}

func (e *appError) Err(errs ...error) Error {
	return e.MsgErr(e.msg, errs...)
}

func (e *appError) StatusCode() int {
	return e.statusCode
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statusCode = code
	return &cp
}

// Is matches the base chain and every wrapped error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if e == target {
		return true
	}
	if e.base != nil && errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrapped {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func appendNonNil(dst []error, errs []error) []error {
	out := make([]error, 0, len(dst)+len(errs))
	out = append(out, dst...)
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
