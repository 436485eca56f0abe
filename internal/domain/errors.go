package domain

import "errors"

// Sentinels shared by the orchestrator, the stores and the gateway.
var (
	ErrInvalidArgs      = errf("invalid arguments")
	ErrNotFound         = errf("room or match not found")
	ErrAlreadySubmitted = errf("already submitted")
	ErrStaleParticipant = errf("participant is no longer connected")
	ErrExpiredWindow    = errf("quiz window has ended")
	ErrRoomFull         = errf("room is full")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Signal codes sent to clients in error events.
const (
	CodeInvalid     = "INVALID_ARGUMENT"
	CodeNotFound    = "NOT_FOUND"
	CodeUnavailable = "UNAVAILABLE"
	CodeInternal    = "INTERNAL"
)

// SignalError carries a stable client-facing code for an error.
type SignalError struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *SignalError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *SignalError) Unwrap() error { return e.Err }

// Unavailable marks an infrastructure failure the client should retry.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &SignalError{Code: CodeUnavailable, Retryable: true, Err: err}
}

// Classify maps an error onto a client code and retry hint.
func Classify(err error) (code string, retryable bool) {
	var se *SignalError
	switch {
	case err == nil:
		return "", false
	case errors.As(err, &se):
		return se.Code, se.Retryable
	case errors.Is(err, ErrInvalidArgs):
		return CodeInvalid, false
	case errors.Is(err, ErrNotFound):
		return CodeNotFound, false
	default:
		return CodeInternal, true
	}
}
