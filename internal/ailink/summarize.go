package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/ailink/driver"
	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/core/cost"
	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/observability"
)

// SummaryWorkflow labels summary calls in the cost ledger.
const SummaryWorkflow = "abtest-summary"

const systemPrompt = `You write short status notes for an advertising agency's clients.
Explain the A/B test result in at most three sentences of plain language.
Do not invent numbers. If the result is not significant, say the test needs more time or data.`

// Summarizer turns verdicts into client-facing notes.
type Summarizer struct {
	Driver    driver.Driver
	Executor  *engine.Executor
	Costs     cost.Recorder
	Model     string
	MaxTokens int
	Deadline  time.Duration

	// Policy replaces the default retry policy when set.
	Policy *engine.RetryPolicy
}

// NewSummarizer wires a summarizer from config.
func NewSummarizer(drv driver.Driver, exec *engine.Executor, costs cost.Recorder, cfg Config) *Summarizer {
	return &Summarizer{
		Driver:    drv,
		Executor:  exec,
		Costs:     costs,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Deadline:  cfg.Deadline,
	}
}

// Summarize asks the provider for a summary through the executor. The cost is
// recorded only after a successful response.
func (s *Summarizer) Summarize(ctx context.Context, req SummaryRequest) (*Summary, error) {
	if s == nil || s.Driver == nil {
		return nil, errors.New("summarizer is not configured")
	}
	if s.Executor == nil {
		return nil, errors.New("executor is required")
	}

	dreq := &driver.Request{
		Model:     s.Model,
		System:    systemPrompt,
		MaxTokens: s.MaxTokens,
		Messages:  []driver.Message{{Role: "user", Content: BuildPrompt(req)}},
	}

	policy := engine.DefaultRetryPolicy(SummaryWorkflow)
	if s.Policy != nil {
		policy = *s.Policy
		policy.Label = SummaryWorkflow
	}
	if s.Deadline > 0 {
		policy.Deadline = s.Deadline
	}

	resp, err := engine.Execute(ctx, s.Executor, s.Driver.Name(), policy, func(ctx context.Context) (*driver.Response, error) {
		return s.Driver.Complete(ctx, dreq)
	})
	if err != nil {
		return nil, mapProviderError(err)
	}

	out := &Summary{Text: strings.TrimSpace(resp.Text), Model: resp.Model}
	if out.Model == "" {
		out.Model = s.Model
	}
	if resp.Usage != nil {
		out.InputTokens = resp.Usage.InputTokens
		out.OutputTokens = resp.Usage.OutputTokens
	}

	if s.Costs != nil {
		record := core.CostRecord{
			Platform:     s.Driver.Name(),
			Model:        out.Model,
			Workflow:     SummaryWorkflow,
			ClientID:     req.ClientID,
			InputTokens:  out.InputTokens,
			OutputTokens: out.OutputTokens,
		}
		if err := s.Costs.RecordCost(ctx, record); err != nil {
			observability.Logger().Warn("Failed to record summary cost",
				zap.String("client_id", req.ClientID),
				zap.Error(err))
		}
	}
	return out, nil
}

// BuildPrompt renders the verdict facts the model is allowed to use.
func BuildPrompt(req SummaryRequest) string {
	v := req.Verdict
	var sb strings.Builder

	client := req.ClientName
	if client == "" {
		client = req.ClientID
	}
	if client != "" {
		fmt.Fprintf(&sb, "Client: %s\n", client)
	}
	if req.Platform != "" {
		fmt.Fprintf(&sb, "Platform: %s\n", req.Platform)
	}
	if req.CampaignID != "" {
		fmt.Fprintf(&sb, "Campaign: %s\n", req.CampaignID)
	}
	fmt.Fprintf(&sb, "Primary KPI: %s\n", v.KPI)
	fmt.Fprintf(&sb, "Significant: %t\n", v.Significant)
	if v.Significant {
		fmt.Fprintf(&sb, "Winner: %s\n", v.Winner())
		fmt.Fprintf(&sb, "Loser: %s\n", v.Loser())
	}
	if v.Reason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", v.Reason)
	}
	fmt.Fprintf(&sb, "Improvement: %.1f%%\n", v.ImprovementPct)
	fmt.Fprintf(&sb, "Confidence: %.0f%%\n", v.ConfidencePct)
	if len(v.Ranked) > 0 {
		sb.WriteString("Ranking:\n")
		for i, r := range v.Ranked {
			fmt.Fprintf(&sb, "%d. %s (%.2f)\n", i+1, r.Name, r.Score)
		}
	}
	return sb.String()
}
