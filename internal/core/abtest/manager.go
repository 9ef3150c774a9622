package abtest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/ailink"
	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/core/cost"
	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/core/platform"
	"github.com/adpilot/adpilot/internal/metrics"
	"github.com/adpilot/adpilot/internal/observability"
)

// FetchWorkflow labels insight fetches in the cost ledger.
const FetchWorkflow = "abtest-fetch"

// Store is the persistence the manager needs.
type Store interface {
	GetClient(ctx context.Context, id string) (*core.Client, error)
	SaveVerdict(ctx context.Context, record *core.VerdictRecord) error
}

// Summarizer explains a verdict in client-facing prose.
type Summarizer interface {
	Summarize(ctx context.Context, req ailink.SummaryRequest) (*ailink.Summary, error)
}

// Manager runs a live A/B evaluation for one campaign.
type Manager struct {
	Store     Store
	Platforms *platform.Registry
	Executor  *engine.Executor
	Costs     cost.Recorder

	// Policy replaces the default retry policy for insight fetches when set.
	Policy *engine.RetryPolicy

	// Summarizer is optional. A failed summary never fails the run.
	Summarizer Summarizer
}

// Run fetches fresh variant metrics, evaluates them under the client's primary
// KPI and persists the verdict.
func (m *Manager) Run(ctx context.Context, clientID, platformKey, campaignID string) (*core.VerdictRecord, error) {
	if m == nil || m.Store == nil || m.Platforms == nil || m.Executor == nil {
		return nil, errors.New("abtest manager is not configured")
	}
	clientID = core.NormalizeKey(clientID)
	campaignID = strings.TrimSpace(campaignID)
	if clientID == "" {
		return nil, errors.New("client id is required")
	}
	if campaignID == "" {
		return nil, errors.New("campaign id is required")
	}

	fetcher, err := m.Platforms.Get(platformKey)
	if err != nil {
		return nil, err
	}

	client, err := m.Store.GetClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	kpi := core.KPIConversions
	clientName := clientID
	if client != nil {
		kpi = client.PrimaryKPI
		if client.Name != "" {
			clientName = client.Name
		}
	}

	policy := engine.DefaultRetryPolicy("insights")
	if m.Policy != nil {
		policy = *m.Policy
		policy.Label = "insights"
	}
	variants, err := engine.Execute(ctx, m.Executor, fetcher.Platform(), policy, func(ctx context.Context) ([]core.MetricVariant, error) {
		return fetcher.Fetch(ctx, campaignID)
	})
	if err != nil {
		return nil, err
	}
	m.recordCost(ctx, core.CostRecord{
		Platform: fetcher.Platform(),
		Workflow: FetchWorkflow,
		ClientID: clientID,
	})

	verdict := Evaluate(variants, string(kpi))
	metrics.RecordEvaluation(string(verdict.KPI), verdict.Significant)

	record := &core.VerdictRecord{
		ClientID:   clientID,
		Platform:   fetcher.Platform(),
		CampaignID: campaignID,
		Verdict:    verdict,
	}

	if m.Summarizer != nil {
		summary, err := m.Summarizer.Summarize(ctx, ailink.SummaryRequest{
			ClientID:   clientID,
			ClientName: clientName,
			Platform:   fetcher.Platform(),
			CampaignID: campaignID,
			Verdict:    verdict,
		})
		if err != nil {
			observability.Logger().Warn("Verdict summary unavailable",
				zap.String("client_id", clientID),
				zap.String("campaign_id", campaignID),
				zap.Error(err))
		} else if summary != nil {
			record.Summary = summary.Text
		}
	}

	if err := m.Store.SaveVerdict(ctx, record); err != nil {
		return nil, fmt.Errorf("save verdict: %w", err)
	}

	observability.Logger().Info("A/B test evaluated",
		zap.String("client_id", clientID),
		zap.String("platform", record.Platform),
		zap.String("campaign_id", campaignID),
		zap.String("kpi", string(verdict.KPI)),
		zap.Bool("significant", verdict.Significant),
		zap.String("winner", verdict.Winner()))

	return record, nil
}

func (m *Manager) recordCost(ctx context.Context, record core.CostRecord) {
	if m.Costs == nil {
		return
	}
	if err := m.Costs.RecordCost(ctx, record); err != nil {
		observability.Logger().Warn("Failed to record fetch cost",
			zap.String("platform", record.Platform),
			zap.Error(err))
	}
}
