package cost

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/metrics"
	"github.com/adpilot/adpilot/internal/observability"
)

// Recorder accepts cost records for successful calls.
type Recorder interface {
	RecordCost(ctx context.Context, record core.CostRecord) error
}

// Sink persists priced entries.
type Sink interface {
	SaveCost(ctx context.Context, entry core.CostEntry) error
}

// Ledger prices records and writes them to a Sink.
type Ledger struct {
	Pricing Pricing
	Sink    Sink
	Clock   func() time.Time
}

// RecordCost prices record and persists it.
func (l *Ledger) RecordCost(ctx context.Context, record core.CostRecord) error {
	if l == nil || l.Sink == nil {
		return errors.New("cost ledger is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	platform := core.NormalizeKey(record.Platform)
	if platform == "" {
		return errors.New("platform is required")
	}

	entry := core.CostEntry{
		ID:           uuid.New().String(),
		Platform:     platform,
		Model:        record.Model,
		Workflow:     record.Workflow,
		ClientID:     record.ClientID,
		InputTokens:  record.InputTokens,
		OutputTokens: record.OutputTokens,
		CostCents:    l.Pricing.Cents(record),
		RecordedAt:   l.now(),
	}
	if err := l.Sink.SaveCost(ctx, entry); err != nil {
		return err
	}
	metrics.RecordCost(platform, entry.CostCents)
	return nil
}

func (l *Ledger) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

const defaultQueueSize = 64

// AsyncRecorder hands records to a background worker so callers never wait on
// the ledger. When the queue is full the record is dropped and logged.
type AsyncRecorder struct {
	next    Recorder
	timeout time.Duration
	queue   chan core.CostRecord

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncRecorder starts a worker draining into next.
func NewAsyncRecorder(next Recorder, queueSize int) *AsyncRecorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r := &AsyncRecorder{
		next:    next,
		timeout: 5 * time.Second,
		queue:   make(chan core.CostRecord, queueSize),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// RecordCost enqueues record and returns immediately.
func (r *AsyncRecorder) RecordCost(_ context.Context, record core.CostRecord) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errors.New("cost recorder is closed")
	}

	select {
	case r.queue <- record:
		return nil
	default:
		observability.Logger().Warn("Cost queue full, dropping record",
			zap.String("platform", record.Platform),
			zap.String("workflow", record.Workflow))
		return nil
	}
}

// Close stops accepting records and waits for queued ones to be written.
func (r *AsyncRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *AsyncRecorder) loop() {
	defer r.wg.Done()
	for record := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.next.RecordCost(ctx, record); err != nil {
			observability.Logger().Warn("Failed to record cost",
				zap.String("platform", record.Platform),
				zap.String("workflow", record.Workflow),
				zap.Error(err))
		}
		cancel()
	}
}
