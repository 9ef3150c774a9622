package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCallTimeout marks a call that did not finish within its deadline.
	ErrCallTimeout = errors.New("call deadline exceeded")
	// ErrRetriesExhausted marks a call whose every attempt failed retryably.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrCallCanceled marks a call abandoned because the caller's context ended.
	ErrCallCanceled = errors.New("call canceled")
)

// ErrorKind is the final disposition of a failed call.
type ErrorKind string

const (
	KindPermanent ErrorKind = "permanent"
	KindExhausted ErrorKind = "exhausted"
	KindTimeout   ErrorKind = "timeout"
	KindCanceled  ErrorKind = "canceled"
)

// CallError is returned by the executor for every failed call.
type CallError struct {
	Platform string
	Label    string
	Attempts int
	Kind     ErrorKind
	Err      error
}

func (e *CallError) Error() string {
	if e == nil {
		return "call failed"
	}

	var sb strings.Builder
	sb.WriteString(e.Platform)
	sb.WriteString(" call")
	if e.Label != "" {
		sb.WriteString(fmt.Sprintf(" %q", e.Label))
	}
	switch e.Kind {
	case KindTimeout:
		sb.WriteString(fmt.Sprintf(" timed out after %d attempt(s)", e.Attempts))
	case KindCanceled:
		sb.WriteString(fmt.Sprintf(" canceled after %d attempt(s)", e.Attempts))
	case KindExhausted:
		sb.WriteString(fmt.Sprintf(" failed after %d attempt(s): retries exhausted", e.Attempts))
	default:
		sb.WriteString(fmt.Sprintf(" failed after %d attempt(s)", e.Attempts))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes the kind sentinel and, except for timeouts, the underlying
// error. A timeout never unwraps to the platform's error so callers can tell
// "rejected" apart from "gave up waiting".
func (e *CallError) Unwrap() []error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindTimeout:
		return []error{ErrCallTimeout}
	case KindCanceled:
		return []error{ErrCallCanceled}
	case KindExhausted:
		return []error{ErrRetriesExhausted, e.Err}
	default:
		if e.Err == nil {
			return nil
		}
		return []error{e.Err}
	}
}

// IsTimeout reports whether err is an executor deadline failure.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrCallTimeout)
}
