package peer

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned for an invalid or inconsistent configuration,
	// including unreadable TLS material and parameters that differ between
	// parties.
	ErrConfig = errors.New("invalid configuration")

	// ErrColumnMismatch is returned when the parties do not agree on the
	// number of columns.
	ErrColumnMismatch = errors.New("column mismatch")

	// ErrProtocolAbort is returned when a request fails after the first
	// message was sent. The session is aborted.
	ErrProtocolAbort = errors.New("protocol aborted")

	// ErrDivisionByZero is returned by an average over zero rows.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrInvalidInput is returned for an unknown operation, a value that
	// cannot be encoded or a negative row count.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionAborted is returned by a session that aborted earlier.
	ErrSessionAborted = errors.New("session aborted")
)

// AbortError tells which round of which request failed, and why.
type AbortError struct {
	Request uint64
	Round   int
	Err     error
}

// NewAbortError returns a new abort error.
func NewAbortError(request uint64, round int, err error) *AbortError {
	return &AbortError{Request: request, Round: round, Err: err}
}

// Error implements error.
func (e *AbortError) Error() string {
	return fmt.Sprintf("request %d aborted in round %d: %v", e.Request, e.Round, e.Err)
}

// Is makes every AbortError match ErrProtocolAbort.
func (e *AbortError) Is(target error) bool {
	return target == ErrProtocolAbort
}

// Unwrap returns the cause of the abort.
func (e *AbortError) Unwrap() error {
	return e.Err
}
