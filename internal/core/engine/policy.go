package engine

import (
	"math"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 300 * time.Millisecond
	defaultMaxDelay   = 10 * time.Second
)

// RetryPolicy controls how a single call site retries.
//
// MaxRetries is taken literally: zero means one attempt. Use DefaultRetryPolicy
// to start from the standard three retries.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Deadline bounds the whole admitted+retried sequence. Zero uses the
	// platform's configured deadline, then the executor default.
	Deadline time.Duration

	// IsRetryable overrides DefaultRetryable when set.
	IsRetryable func(error) bool

	// Label is diagnostic only.
	Label string
}

// DefaultRetryPolicy returns 3 retries with exponential backoff from 300ms.
func DefaultRetryPolicy(label string) RetryPolicy {
	return RetryPolicy{
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		MaxDelay:   defaultMaxDelay,
		Label:      label,
	}
}

// Attempts is the total number of invocations the policy allows.
func (p RetryPolicy) Attempts() int {
	return p.normalized().MaxRetries + 1
}

// Backoff returns the delay before retry n (1-based). The delay doubles per
// retry and adds up to half of itself as jitter, so successive delays strictly
// increase until MaxDelay caps them. jitter must be in [0,1).
func (p RetryPolicy) Backoff(retry int, jitter float64) time.Duration {
	p = p.normalized()
	if retry < 1 {
		retry = 1
	}
	if jitter < 0 || jitter >= 1 {
		jitter = 0
	}

	exp := math.Pow(2, float64(retry-1))
	base := float64(p.BaseDelay) * exp
	delay := base + base*0.5*jitter
	if math.IsInf(delay, 0) || delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

func (p RetryPolicy) retryable(err error) bool {
	if p.IsRetryable != nil {
		return p.IsRetryable(err)
	}
	return DefaultRetryable(err)
}

func (p RetryPolicy) normalized() RetryPolicy {
	out := p
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = defaultBaseDelay
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = defaultMaxDelay
	}
	if out.MaxDelay < out.BaseDelay {
		out.MaxDelay = out.BaseDelay
	}
	return out
}
