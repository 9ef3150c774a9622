package engine

import (
	"container/list"
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/adpilot/adpilot/internal/core"
)

// DefaultLimits provides conservative budgets per platform key.
var DefaultLimits = map[string]core.PlatformLimit{
	"anthropic":  {MaxConcurrent: 3, PerSecond: 2, Burst: 2, Deadline: 90 * time.Second},
	"meta":       {MaxConcurrent: 5, PerSecond: 5, Burst: 5},
	"google_ads": {MaxConcurrent: 4, PerSecond: 4, Burst: 4},
	"tiktok":     {MaxConcurrent: 4, PerSecond: 4, Burst: 4},
	"clickup":    {MaxConcurrent: 5, PerSecond: 5, Burst: 5},
	"hubspot":    {MaxConcurrent: 5, PerSecond: 5, Burst: 5},
	"drive":      {MaxConcurrent: 5, PerSecond: 5, Burst: 5},
}

// FallbackLimit applies to keys without a configured budget.
var FallbackLimit = core.PlatformLimit{MaxConcurrent: 5, PerSecond: 5, Burst: 5}

// Limiter admits calls per platform key. Each key gets a concurrency cap and a
// per-second pace; callers that cannot be admitted wait in a FIFO queue.
type Limiter struct {
	Limits map[string]core.PlatformLimit
	Clock  func() time.Time
	Margin float64

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	key      string
	limit    core.PlatformLimit
	inFlight int
	queue    *list.List
	pacer    *rate.Limiter
}

type waiter struct {
	ready   chan *rate.Reservation
	granted bool
}

// NewLimiter returns a limiter seeded with DefaultLimits.
func NewLimiter() *Limiter {
	limits := make(map[string]core.PlatformLimit, len(DefaultLimits))
	for key, limit := range DefaultLimits {
		limits[key] = limit
	}
	return &Limiter{Limits: limits}
}

// Acquire blocks until a slot for key is free, the caller's turn in the queue has
// come, and the per-second pace allows the call to start. The returned release
// func must be called exactly once when the call finishes; extra calls are no-ops.
func (l *Limiter) Acquire(ctx context.Context, key string) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	b := l.bucketLocked(key)
	if b.inFlight < b.limit.MaxConcurrent && b.queue.Len() == 0 {
		b.inFlight++
		reservation := b.reserve(l.now())
		l.mu.Unlock()
		return l.admit(ctx, b, reservation)
	}

	w := &waiter{ready: make(chan *rate.Reservation, 1)}
	elem := b.queue.PushBack(w)
	l.mu.Unlock()

	select {
	case reservation := <-w.ready:
		return l.admit(ctx, b, reservation)
	case <-ctx.Done():
		l.mu.Lock()
		if !w.granted {
			b.queue.Remove(elem)
			l.mu.Unlock()
			return nil, ctx.Err()
		}
		l.mu.Unlock()
		// The slot was handed over while we were giving up; pass it on.
		reservation := <-w.ready
		cancelReservation(reservation, l.now())
		l.release(b)
		return nil, ctx.Err()
	}
}

// Limit returns the effective budget for key.
func (l *Limiter) Limit(key string) core.PlatformLimit {
	return l.getLimit(core.NormalizeKey(key))
}

// Snapshot reports the admission state for key.
func (l *Limiter) Snapshot(key string) core.LimiterSnapshot {
	key = core.NormalizeKey(key)
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return core.LimiterSnapshot{Key: key, Limit: b.limit, InFlight: b.inFlight, Queued: b.queue.Len()}
	}
	return core.LimiterSnapshot{Key: key, Limit: l.getLimit(key)}
}

// Snapshots reports every configured or active key, sorted by key.
func (l *Limiter) Snapshots() []core.LimiterSnapshot {
	keys := map[string]struct{}{}
	for key := range l.limits() {
		keys[key] = struct{}{}
	}
	l.mu.Lock()
	for key := range l.buckets {
		keys[key] = struct{}{}
	}
	l.mu.Unlock()

	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	out := make([]core.LimiterSnapshot, 0, len(sorted))
	for _, key := range sorted {
		out = append(out, l.Snapshot(key))
	}
	return out
}

// ApplyOverrides merges per-key budget overrides. Keys already in use keep the
// budget they were created with.
func (l *Limiter) ApplyOverrides(overrides map[string]core.PlatformLimit) {
	if l == nil || len(overrides) == 0 {
		return
	}

	if l.Limits == nil {
		l.Limits = make(map[string]core.PlatformLimit, len(DefaultLimits))
		for key, limit := range DefaultLimits {
			l.Limits[key] = limit
		}
	}

	for key, value := range overrides {
		key = core.NormalizeKey(key)
		if key == "" {
			continue
		}
		merged := l.Limits[key]
		if value.MaxConcurrent > 0 {
			merged.MaxConcurrent = value.MaxConcurrent
		}
		if value.PerSecond > 0 {
			merged.PerSecond = value.PerSecond
		}
		if value.Burst > 0 {
			merged.Burst = value.Burst
		}
		if value.Deadline > 0 {
			merged.Deadline = value.Deadline
		}
		l.Limits[key] = merged
	}
}

// ApplySafetyMargin scales the per-second pace by a ratio (0-1].
func (l *Limiter) ApplySafetyMargin(margin float64) {
	if l == nil {
		return
	}
	if margin <= 0 || margin > 1 {
		return
	}
	l.Margin = margin
}

func (l *Limiter) admit(ctx context.Context, b *bucket, reservation *rate.Reservation) (func(), error) {
	if delay := reservationDelay(reservation, l.now()); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			cancelReservation(reservation, l.now())
			l.release(b)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(b) })
	}, nil
}

func (l *Limiter) release(b *bucket) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if front := b.queue.Front(); front != nil {
		b.queue.Remove(front)
		w := front.Value.(*waiter)
		w.granted = true
		w.ready <- b.reserve(l.now())
		return
	}
	if b.inFlight > 0 {
		b.inFlight--
	}
}

func (l *Limiter) bucketLocked(key string) *bucket {
	key = core.NormalizeKey(key)
	if l.buckets == nil {
		l.buckets = make(map[string]*bucket)
	}
	if b, ok := l.buckets[key]; ok {
		return b
	}

	limit := l.getLimit(key)
	b := &bucket{key: key, limit: limit, queue: list.New()}
	if limit.PerSecond > 0 {
		b.pacer = rate.NewLimiter(rate.Limit(limit.PerSecond), limit.Burst)
	}
	l.buckets[key] = b
	return b
}

func (b *bucket) reserve(now time.Time) *rate.Reservation {
	if b.pacer == nil {
		return nil
	}
	return b.pacer.ReserveN(now, 1)
}

func reservationDelay(r *rate.Reservation, now time.Time) time.Duration {
	if r == nil || !r.OK() {
		return 0
	}
	return r.DelayFrom(now)
}

func cancelReservation(r *rate.Reservation, now time.Time) {
	if r != nil && r.OK() {
		r.CancelAt(now)
	}
}

func (l *Limiter) limits() map[string]core.PlatformLimit {
	if l == nil || l.Limits == nil {
		return DefaultLimits
	}
	return l.Limits
}

func (l *Limiter) getLimit(key string) core.PlatformLimit {
	limit, ok := l.limits()[key]
	if !ok {
		if prefix, _, found := strings.Cut(key, ":"); found {
			limit, ok = l.limits()[prefix]
		}
	}
	if !ok {
		limit = FallbackLimit
	}
	return l.applyMargin(normalizeLimit(limit))
}

func normalizeLimit(limit core.PlatformLimit) core.PlatformLimit {
	if limit.MaxConcurrent < 1 {
		limit.MaxConcurrent = 1
	}
	if limit.PerSecond < 0 {
		limit.PerSecond = 0
	}
	if limit.Burst < 1 {
		limit.Burst = 1
	}
	return limit
}

func (l *Limiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

func (l *Limiter) applyMargin(limit core.PlatformLimit) core.PlatformLimit {
	if l == nil || l.Margin <= 0 || l.Margin > 1 || limit.PerSecond <= 0 {
		return limit
	}
	adjusted := limit.PerSecond * l.Margin
	limit.PerSecond = math.Max(adjusted, 0.1)
	return limit
}
