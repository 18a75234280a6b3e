package dbconn

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigError.
	ErrConfiguration = errors.New("dbconn: invalid configuration")

	// ErrExhausted is matched by every *ExhaustedError.
	ErrExhausted = errors.New("dbconn: connection attempts exhausted")

	// ErrPending is returned when a bounded wait elapses while the connect
	// sequence is still running. It is not a failure: the sequence keeps
	// going and a later Acquire may observe its result.
	ErrPending = errors.New("dbconn: connection pending")
)

// ConfigError reports a missing or malformed connection URI. It is never
// retried.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dbconn: %s: %v", e.Reason, e.Err)
	}
	return "dbconn: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// ExhaustedError is returned when every attempt of a connect sequence
// failed. LastErr is the error of the final attempt.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("dbconn: gave up after %d attempt(s): %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// TransientConnectError is a single failed attempt inside a connect
// sequence. It drives the backoff loop and is logged, never returned.
type TransientConnectError struct {
	Attempt int
	Err     error
}

func (e *TransientConnectError) Error() string {
	return fmt.Sprintf("dbconn: attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *TransientConnectError) Unwrap() error { return e.Err }
