package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrorClass tags a failure as transient or permanent.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassRetryable
	ClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// statusCoder is implemented by boundary errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// retryAfterHinter is implemented by boundary errors that carry a Retry-After hint.
type retryAfterHinter interface {
	RetryAfterHint() time.Duration
}

// Classify inspects a failure at the boundary and tags it.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() > 0 {
		return ClassifyStatus(sc.HTTPStatus())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassRetryable
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return ClassRetryable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassRetryable
	}

	return ClassUnknown
}

// ClassifyStatus maps an HTTP status code onto an ErrorClass.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassRetryable
	case status >= 500 && status <= 599:
		return ClassRetryable
	case status >= 400 && status <= 499:
		return ClassPermanent
	default:
		return ClassUnknown
	}
}

// DefaultRetryable retries network failures, 5xx and 429 only.
func DefaultRetryable(err error) bool {
	return Classify(err) == ClassRetryable
}

func retryAfter(err error) time.Duration {
	var hint retryAfterHinter
	if errors.As(err, &hint) {
		return hint.RetryAfterHint()
	}
	return 0
}
