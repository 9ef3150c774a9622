package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/metrics"
	"github.com/adpilot/adpilot/internal/observability"
)

// DefaultDeadline bounds a call when neither the policy nor the platform sets one.
const DefaultDeadline = 90 * time.Second

// Operation performs exactly one external call.
type Operation func(ctx context.Context) error

// Executor runs operations under a shared Limiter with retries and a deadline.
type Executor struct {
	Limiter         *Limiter
	DefaultDeadline time.Duration

	// Jitter returns a value in [0,1). Defaults to math/rand.
	Jitter func() float64

	initOnce sync.Once
}

// NewExecutor returns an executor over limiter.
func NewExecutor(limiter *Limiter) *Executor {
	if limiter == nil {
		limiter = NewLimiter()
	}
	return &Executor{Limiter: limiter, DefaultDeadline: DefaultDeadline}
}

var errInterrupted = errors.New("interrupted")

// progress is shared with a run that may outlive Do; guarded by mu.
type progress struct {
	mu       sync.Mutex
	attempts int
	lastErr  error
}

func (p *progress) begin() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	return p.attempts
}

func (p *progress) fail(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

func (p *progress) snapshot() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts, p.lastErr
}

// Do runs op under the budget for key, retrying per policy until it succeeds,
// fails permanently, exhausts its retries, or hits the deadline. When the
// deadline wins, the in-flight attempt is abandoned and its outcome discarded.
func (e *Executor) Do(ctx context.Context, key string, policy RetryPolicy, op Operation) error {
	if e == nil {
		return errors.New("executor is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key = core.NormalizeKey(key)
	if key == "" {
		return errors.New("platform key is required")
	}
	if op == nil {
		return errors.New("operation is required")
	}

	policy = policy.normalized()
	deadline := e.deadlineFor(key, policy)
	callID := uuid.New().String()

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	prog := &progress{}
	done := make(chan error, 1)
	go func() {
		done <- e.run(runCtx, key, policy, op, prog)
	}()

	var err error
	select {
	case err = <-done:
	case <-runCtx.Done():
		err = errInterrupted
	}

	if errors.Is(err, errInterrupted) {
		attempts, lastErr := prog.snapshot()
		kind := KindTimeout
		if ctx.Err() != nil {
			kind = KindCanceled
		}
		err = &CallError{Platform: key, Label: policy.Label, Attempts: attempts, Kind: kind, Err: lastErr}
		if kind == KindTimeout {
			log().Warn("Platform call deadline exceeded",
				zap.String("platform", key),
				zap.String("label", policy.Label),
				zap.String("call_id", callID),
				zap.Duration("deadline", deadline),
				zap.Int("attempts", attempts))
		}
	}

	metrics.RecordCall(key, outcome(err))
	return err
}

// Execute is Do for operations that return a value. The value of an abandoned
// attempt is never returned.
func Execute[T any](ctx context.Context, e *Executor, key string, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if op == nil {
		return zero, errors.New("operation is required")
	}

	var out T
	err := e.Do(ctx, key, policy, func(ctx context.Context) error {
		value, err := op(ctx)
		if err != nil {
			return err
		}
		out = value
		return nil
	})
	if err != nil {
		return zero, err
	}
	return out, nil
}

func (e *Executor) run(ctx context.Context, key string, policy RetryPolicy, op Operation, prog *progress) error {
	maxAttempts := policy.MaxRetries + 1

	for {
		waitStart := time.Now()
		release, err := e.limiter().Acquire(ctx, key)
		if err != nil {
			return errInterrupted
		}
		metrics.RecordQueueWait(key, time.Since(waitStart))
		metrics.SetInFlight(key, e.limiter().Snapshot(key).InFlight)

		attempt := prog.begin()
		metrics.RecordAttempt(key)
		err = op(ctx)
		release()
		metrics.SetInFlight(key, e.limiter().Snapshot(key).InFlight)

		if err == nil {
			return nil
		}
		prog.fail(err)

		if ctx.Err() != nil {
			return errInterrupted
		}
		if !policy.retryable(err) {
			return &CallError{Platform: key, Label: policy.Label, Attempts: attempt, Kind: KindPermanent, Err: err}
		}
		if attempt >= maxAttempts {
			log().Warn("Platform call retries exhausted",
				zap.String("platform", key),
				zap.String("label", policy.Label),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return &CallError{Platform: key, Label: policy.Label, Attempts: attempt, Kind: KindExhausted, Err: err}
		}

		delay := policy.Backoff(attempt, e.jitter())
		if hint := retryAfter(err); hint > delay {
			delay = min(hint, policy.MaxDelay)
		}
		metrics.RecordRetry(key)
		log().Debug("Retrying platform call",
			zap.String("platform", key),
			zap.String("label", policy.Label),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		if !sleep(ctx, delay) {
			return errInterrupted
		}
	}
}

func (e *Executor) deadlineFor(key string, policy RetryPolicy) time.Duration {
	if policy.Deadline > 0 {
		return policy.Deadline
	}
	if limit := e.limiter().Limit(key); limit.Deadline > 0 {
		return limit.Deadline
	}
	if e.DefaultDeadline > 0 {
		return e.DefaultDeadline
	}
	return DefaultDeadline
}

// limiter gives a zero-value Executor its own Limiter on first use.
func (e *Executor) limiter() *Limiter {
	e.initOnce.Do(func() {
		if e.Limiter == nil {
			e.Limiter = NewLimiter()
		}
	})
	return e.Limiter
}

func (e *Executor) jitter() float64 {
	if e.Jitter != nil {
		return e.Jitter()
	}
	return rand.Float64()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func outcome(err error) string {
	var callErr *CallError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &callErr):
		return string(callErr.Kind)
	default:
		return "invalid"
	}
}

func log() *logging.Logger {
	return observability.Logger()
}
