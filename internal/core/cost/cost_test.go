package cost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/core"
)

type memorySink struct {
	mu      sync.Mutex
	entries []core.CostEntry
	err     error
}

func (m *memorySink) SaveCost(ctx context.Context, entry core.CostEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestPricingCents(t *testing.T) {
	pricing := DefaultPricing().Merge(Pricing{Platforms: map[string]float64{"Meta": 0.25}})

	tokens := pricing.Cents(core.CostRecord{Platform: "anthropic", Model: "claude-sonnet-4-5", InputTokens: 1_000_000, OutputTokens: 100_000})
	assert.InDelta(t, 450.0, tokens, 1e-9)

	flat := pricing.Cents(core.CostRecord{Platform: "meta"})
	assert.InDelta(t, 0.25, flat, 1e-9)

	override := 12.5
	assert.InDelta(t, 12.5, pricing.Cents(core.CostRecord{Platform: "anthropic", Model: "claude-sonnet-4-5", InputTokens: 10, CostCentsOverride: &override}), 1e-9)

	assert.Zero(t, pricing.Cents(core.CostRecord{Platform: "unknown"}))
}

func TestLedgerRecordsPricedEntry(t *testing.T) {
	sink := &memorySink{}
	clock := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	ledger := &Ledger{Pricing: DefaultPricing(), Sink: sink, Clock: func() time.Time { return clock }}

	err := ledger.RecordCost(context.Background(), core.CostRecord{
		Platform:     "Anthropic",
		Model:        "claude-haiku-4-5",
		Workflow:     "abtest-summary",
		ClientID:     "acme",
		InputTokens:  2000,
		OutputTokens: 400,
	})
	require.NoError(t, err)
	require.Len(t, sink.entries, 1)

	entry := sink.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "anthropic", entry.Platform)
	assert.Equal(t, clock, entry.RecordedAt)
	assert.InDelta(t, 0.4, entry.CostCents, 1e-9)
}

func TestLedgerRequiresPlatform(t *testing.T) {
	ledger := &Ledger{Sink: &memorySink{}}
	require.Error(t, ledger.RecordCost(context.Background(), core.CostRecord{}))

	var nilLedger *Ledger
	require.Error(t, nilLedger.RecordCost(context.Background(), core.CostRecord{Platform: "meta"}))
}

func TestAsyncRecorderDrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	recorder := NewAsyncRecorder(&Ledger{Sink: sink}, 16)

	for i := 0; i < 10; i++ {
		require.NoError(t, recorder.RecordCost(context.Background(), core.CostRecord{Platform: "meta", Workflow: "insights"}))
	}
	recorder.Close()
	recorder.Close()

	assert.Equal(t, 10, sink.count())
	assert.Error(t, recorder.RecordCost(context.Background(), core.CostRecord{Platform: "meta"}))
}

func TestAsyncRecorderSwallowsSinkErrors(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	recorder := NewAsyncRecorder(&Ledger{Sink: sink}, 1)

	require.NoError(t, recorder.RecordCost(context.Background(), core.CostRecord{Platform: "tiktok"}))
	recorder.Close()
	assert.Equal(t, 0, sink.count())
}
