// Package apperrors provides chainable application errors. An error created from another error
// with New, Msg, Msgf or MsgErr keeps the parent as its base, so errors.Is matches every ancestor
// in the chain. This lets packages declare a small tree of sentinel errors and return specific
// messages that still match the broad category.
package apperrors

// Error is an application error that can derive further errors from itself.
type Error interface {
	error
	// Unwrap returns the parent error, for errors.Is and errors.As.
	Unwrap() error

	// New derives a sentinel with its own message.
	New(msg string) Error
	// Msg derives an error with a new message, keeping wrapped errors.
	Msg(msg string) Error
	// Msgf is Msg with formatting.
	Msgf(format string, args ...any) Error
	// MsgErr derives an error with a new message that also wraps errs.
	MsgErr(msg string, errs ...error) Error
	// Err keeps the message and wraps errs.
	Err(errs ...error) Error
	// StatusCode returns the associated HTTP status code, 0 if unset.
	StatusCode() int
	// SetStatusCode returns a copy with the status code set.
	SetStatusCode(code int) Error
	// ErrorAll returns the message followed by all wrapped error messages.
	ErrorAll() string
}
