package abtest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/ailink"
	"github.com/adpilot/adpilot/internal/ailink/driver"
	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/core/platform"
)

type stubFetcher struct {
	key      string
	variants []core.MetricVariant
	err      error
	calls    int
}

func (f *stubFetcher) Platform() string { return f.key }

func (f *stubFetcher) Fetch(_ context.Context, _ string) ([]core.MetricVariant, error) {
	f.calls++
	return f.variants, f.err
}

type memoryStore struct {
	mu       sync.Mutex
	clients  map[string]core.Client
	verdicts []core.VerdictRecord
	saveErr  error
}

func (s *memoryStore) GetClient(_ context.Context, id string) (*core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[id]
	if !ok {
		return nil, nil
	}
	return &client, nil
}

func (s *memoryStore) SaveVerdict(_ context.Context, record *core.VerdictRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	record.ID = "verdict-1"
	s.verdicts = append(s.verdicts, *record)
	return nil
}

type costSpy struct {
	records []core.CostRecord
}

func (c *costSpy) RecordCost(_ context.Context, record core.CostRecord) error {
	c.records = append(c.records, record)
	return nil
}

type summarizerStub struct {
	text string
	err  error
	req  ailink.SummaryRequest
}

func (s *summarizerStub) Summarize(_ context.Context, req ailink.SummaryRequest) (*ailink.Summary, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &ailink.Summary{Text: s.text}, nil
}

func roasVariants() []core.MetricVariant {
	return []core.MetricVariant{
		{Name: "A", Impressions: 5000, Clicks: 200, Conversions: 50, Spend: 100, ROAS: 2.5, CPA: 2},
		{Name: "B", Impressions: 5000, Clicks: 180, Conversions: 30, Spend: 100, ROAS: 1.5, CPA: 3.33},
	}
}

func newManager(fetcher *stubFetcher, store *memoryStore, costs *costSpy) *Manager {
	exec := engine.NewExecutor(engine.NewLimiter())
	exec.Jitter = func() float64 { return 0 }
	return &Manager{
		Store:     store,
		Platforms: platform.NewRegistry(fetcher),
		Executor:  exec,
		Costs:     costs,
	}
}

func TestManagerRunUsesClientKPIAndPersists(t *testing.T) {
	fetcher := &stubFetcher{key: platform.Meta, variants: roasVariants()}
	store := &memoryStore{clients: map[string]core.Client{
		"acme": {ID: "acme", Name: "Acme Co", PrimaryKPI: core.KPIROAS},
	}}
	costs := &costSpy{}
	m := newManager(fetcher, store, costs)

	record, err := m.Run(context.Background(), " ACME ", "Meta", "cmp-1")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "verdict-1", record.ID)
	assert.Equal(t, "acme", record.ClientID)
	assert.Equal(t, platform.Meta, record.Platform)
	assert.Equal(t, "cmp-1", record.CampaignID)
	assert.Equal(t, core.KPIROAS, record.Verdict.KPI)
	assert.True(t, record.Verdict.Significant)
	assert.Equal(t, "A", record.Verdict.Winner())
	assert.Empty(t, record.Summary)

	require.Len(t, store.verdicts, 1)
	require.Len(t, costs.records, 1)
	assert.Equal(t, FetchWorkflow, costs.records[0].Workflow)
	assert.Equal(t, platform.Meta, costs.records[0].Platform)
	assert.Equal(t, "acme", costs.records[0].ClientID)
}

func TestManagerRunDefaultsToConversionsForUnknownClient(t *testing.T) {
	fetcher := &stubFetcher{key: platform.TikTok, variants: roasVariants()}
	store := &memoryStore{clients: map[string]core.Client{}}
	m := newManager(fetcher, store, &costSpy{})

	record, err := m.Run(context.Background(), "newco", platform.TikTok, "cmp-9")
	require.NoError(t, err)
	assert.Equal(t, core.KPIConversions, record.Verdict.KPI)
}

func TestManagerRunAttachesSummary(t *testing.T) {
	fetcher := &stubFetcher{key: platform.Meta, variants: roasVariants()}
	store := &memoryStore{clients: map[string]core.Client{
		"acme": {ID: "acme", Name: "Acme Co", PrimaryKPI: core.KPIROAS},
	}}
	summary := &summarizerStub{text: "Variant A is ahead."}
	m := newManager(fetcher, store, &costSpy{})
	m.Summarizer = summary

	record, err := m.Run(context.Background(), "acme", platform.Meta, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, "Variant A is ahead.", record.Summary)
	assert.Equal(t, "Acme Co", summary.req.ClientName)
	assert.Equal(t, "cmp-1", summary.req.CampaignID)
}

func TestManagerRunSurvivesSummaryFailure(t *testing.T) {
	fetcher := &stubFetcher{key: platform.Meta, variants: roasVariants()}
	store := &memoryStore{clients: map[string]core.Client{}}
	m := newManager(fetcher, store, &costSpy{})
	m.Summarizer = &summarizerStub{err: errors.New("provider down")}

	record, err := m.Run(context.Background(), "acme", platform.Meta, "cmp-1")
	require.NoError(t, err)
	assert.Empty(t, record.Summary)
	require.Len(t, store.verdicts, 1)
}

func TestManagerRunPermanentFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{
		key: platform.Meta,
		err: &driver.ProviderError{Provider: platform.Meta, StatusCode: 400, Message: "bad campaign"},
	}
	store := &memoryStore{clients: map[string]core.Client{}}
	costs := &costSpy{}
	m := newManager(fetcher, store, costs)

	_, err := m.Run(context.Background(), "acme", platform.Meta, "cmp-1")
	require.Error(t, err)

	var callErr *engine.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, engine.KindPermanent, callErr.Kind)
	assert.Equal(t, 1, fetcher.calls)
	assert.Empty(t, store.verdicts)
	assert.Empty(t, costs.records)
}

func TestManagerRunValidation(t *testing.T) {
	fetcher := &stubFetcher{key: platform.Meta, variants: roasVariants()}
	m := newManager(fetcher, &memoryStore{}, &costSpy{})

	_, err := m.Run(context.Background(), "", platform.Meta, "cmp-1")
	require.Error(t, err)

	_, err = m.Run(context.Background(), "acme", platform.Meta, " ")
	require.Error(t, err)

	_, err = m.Run(context.Background(), "acme", "bing", "cmp-1")
	require.ErrorIs(t, err, platform.ErrUnknownPlatform)

	var nilManager *Manager
	_, err = nilManager.Run(context.Background(), "acme", platform.Meta, "cmp-1")
	require.Error(t, err)
}

func TestManagerRunSaveFailure(t *testing.T) {
	fetcher := &stubFetcher{key: platform.Meta, variants: roasVariants()}
	store := &memoryStore{clients: map[string]core.Client{}, saveErr: errors.New("locked")}
	m := newManager(fetcher, store, &costSpy{})

	_, err := m.Run(context.Background(), "acme", platform.Meta, "cmp-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save verdict")
}
