package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/adpilot/adpilot/internal/ailink"
	"github.com/adpilot/adpilot/internal/ailink/driver/anthropic"
	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/core/abtest"
	"github.com/adpilot/adpilot/internal/core/cost"
	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/core/platform"
	"github.com/adpilot/adpilot/internal/core/store"
)

// appRuntime holds the long-lived pieces a command needs. Every outbound call
// goes through the one executor so platform budgets are shared.
type appRuntime struct {
	cfg      *config.Config
	store    *store.Store
	executor *engine.Executor
	costs    *cost.AsyncRecorder
}

func newRuntime(ctx context.Context) (*appRuntime, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := openStoreWith(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ledger := &cost.Ledger{Pricing: cfg.Pricing.Pricing(), Sink: db}
	return &appRuntime{
		cfg:      cfg,
		store:    db,
		executor: buildExecutor(cfg.Executor),
		costs:    cost.NewAsyncRecorder(ledger, 0),
	}, nil
}

// Close drains pending cost records before closing the store.
func (r *appRuntime) Close() {
	if r == nil {
		return
	}
	if r.costs != nil {
		r.costs.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}

func (r *appRuntime) manager(summarize bool) (*abtest.Manager, error) {
	m := &abtest.Manager{
		Store:     r.store,
		Platforms: buildRegistry(r.cfg.Platforms),
		Executor:  r.executor,
		Costs:     r.costs,
		Policy:    retryPolicy(r.cfg.Executor),
	}
	if summarize {
		summarizer, err := buildSummarizer(r.cfg, r.executor, r.costs)
		if err != nil {
			return nil, err
		}
		m.Summarizer = summarizer
	}
	return m, nil
}

func buildLimiter(cfg config.ExecutorConfig) *engine.Limiter {
	limiter := engine.NewLimiter()
	limiter.ApplyOverrides(cfg.PlatformLimits())
	limiter.ApplySafetyMargin(cfg.SafetyMargin)
	return limiter
}

func buildExecutor(cfg config.ExecutorConfig) *engine.Executor {
	exec := engine.NewExecutor(buildLimiter(cfg))
	if cfg.DefaultDeadline > 0 {
		exec.DefaultDeadline = cfg.DefaultDeadline
	}
	return exec
}

func retryPolicy(cfg config.ExecutorConfig) *engine.RetryPolicy {
	policy := engine.DefaultRetryPolicy("")
	if cfg.MaxRetries >= 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}
	return &policy
}

// buildRegistry registers a fetcher for every enabled platform.
func buildRegistry(cfg config.PlatformsConfig) *platform.Registry {
	registry := platform.NewRegistry()
	if cfg.Meta.Enabled {
		registry.Register(&platform.MetaClient{
			BaseURL:     cfg.Meta.BaseURL,
			Version:     cfg.Meta.Version,
			AccessToken: cfg.Meta.AccessToken,
			DatePreset:  cfg.Meta.DatePreset,
		})
	}
	if cfg.GoogleAds.Enabled {
		registry.Register(&platform.GoogleAdsClient{
			BaseURL:         cfg.GoogleAds.BaseURL,
			Version:         cfg.GoogleAds.Version,
			DeveloperToken:  cfg.GoogleAds.DeveloperToken,
			AccessToken:     cfg.GoogleAds.AccessToken,
			CustomerID:      cfg.GoogleAds.CustomerID,
			LoginCustomerID: cfg.GoogleAds.LoginCustomerID,
			LookbackDays:    cfg.GoogleAds.LookbackDays,
		})
	}
	if cfg.TikTok.Enabled {
		registry.Register(&platform.TikTokClient{
			BaseURL:      cfg.TikTok.BaseURL,
			AccessToken:  cfg.TikTok.AccessToken,
			AdvertiserID: cfg.TikTok.AdvertiserID,
			LookbackDays: cfg.TikTok.LookbackDays,
		})
	}
	return registry
}

func buildSummarizer(cfg *config.Config, exec *engine.Executor, costs cost.Recorder) (*ailink.Summarizer, error) {
	ai := cfg.AILink
	if !ai.Enabled {
		return nil, fmt.Errorf("summaries are disabled (set ailink.enabled or ADPILOT_AILINK_ENABLED)")
	}
	provider := strings.ToLower(strings.TrimSpace(ai.Provider))
	if provider != "" && provider != "anthropic" {
		return nil, fmt.Errorf("unsupported ailink provider: %s", ai.Provider)
	}
	if strings.TrimSpace(ai.APIKey) == "" {
		return nil, fmt.Errorf("ailink api key is not set (ADPILOT_AILINK_API_KEY)")
	}

	client := anthropic.NewClient(ai.BaseURL, ai.APIKey)
	if ai.Model != "" {
		client.Model = ai.Model
	}
	client.Timeout = ai.Timeout

	summarizer := ailink.NewSummarizer(client, exec, costs, ai)
	summarizer.Policy = retryPolicy(cfg.Executor)
	return summarizer, nil
}
