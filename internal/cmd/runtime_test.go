package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/ailink"
	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/core/platform"
	apperrors "github.com/adpilot/adpilot/internal/errors"
	"github.com/adpilot/adpilot/internal/server/handlers"
)

func TestRetryPolicyFromConfig(t *testing.T) {
	policy := retryPolicy(config.ExecutorConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 4 * time.Second})
	assert.Equal(t, 5, policy.MaxRetries)
	assert.Equal(t, time.Second, policy.BaseDelay)
	assert.Equal(t, 4*time.Second, policy.MaxDelay)

	defaults := engine.DefaultRetryPolicy("")
	policy = retryPolicy(config.ExecutorConfig{MaxRetries: -1})
	assert.Equal(t, defaults.MaxRetries, policy.MaxRetries)
	assert.Equal(t, defaults.BaseDelay, policy.BaseDelay)
}

func TestBuildRegistryOnlyEnablesConfiguredPlatforms(t *testing.T) {
	registry := buildRegistry(config.PlatformsConfig{
		Meta:   config.MetaConfig{Enabled: true, AccessToken: "token"},
		TikTok: config.TikTokConfig{Enabled: true, AdvertiserID: "adv"},
	})
	assert.Equal(t, []string{platform.Meta, platform.TikTok}, registry.Platforms())

	_, err := registry.Get(platform.GoogleAds)
	require.ErrorIs(t, err, platform.ErrUnknownPlatform)
}

func TestBuildExecutorAppliesDeadlineAndLimits(t *testing.T) {
	exec := buildExecutor(config.ExecutorConfig{
		DefaultDeadline: 15 * time.Second,
		SafetyMargin:    1,
		Limits: map[string]config.LimitConfig{
			"meta": {MaxConcurrent: 7},
		},
	})
	assert.Equal(t, 15*time.Second, exec.DefaultDeadline)
	assert.Equal(t, 7, exec.Limiter.Limit("meta").MaxConcurrent)
}

func TestBuildSummarizerRequiresEnabledAnthropic(t *testing.T) {
	exec := buildExecutor(config.ExecutorConfig{})

	_, err := buildSummarizer(&config.Config{}, exec, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")

	cfg := &config.Config{AILink: ailink.Config{Enabled: true, Provider: "openai", APIKey: "k"}}
	_, err = buildSummarizer(cfg, exec, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")

	cfg.AILink.Provider = "anthropic"
	cfg.AILink.APIKey = ""
	_, err = buildSummarizer(cfg, exec, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestExitCodeFor(t *testing.T) {
	unknown := fmt.Errorf("run: %w", fmt.Errorf("%w: snapchat", platform.ErrUnknownPlatform))
	callErr := fmt.Errorf("fetch: %w", &engine.CallError{Platform: "meta", Attempts: 4, Kind: engine.KindExhausted, Err: errors.New("503")})

	assert.Equal(t, foundry.ExitConfigInvalid, exitCodeFor(unknown))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, exitCodeFor(callErr))
	assert.Equal(t, foundry.ExitFailure, exitCodeFor(errors.New("boom")))
	assert.Equal(t, foundry.ExitFailure, exitCodeFor(nil))
	assert.Equal(t, foundry.ExitConfigInvalid, exitCodeFor(apperrors.NewConfigInvalidError("bad limits")))
}

func TestFatalLine(t *testing.T) {
	assert.Equal(t, "FATAL: boom", fatalLine("boom", nil))
	assert.Equal(t, "FATAL: run: disk full", fatalLine("run", errors.New("disk full")))

	envelope := apperrors.WrapDatabaseError(context.Background(), errors.New("locked"), "save failed")
	line := fatalLine("run", envelope)
	assert.Contains(t, line, "[DATABASE_ERROR]: save failed")
	assert.Contains(t, line, "correlation: "+envelope.CorrelationID)
}

func TestStoreHealthCheckerWithoutStore(t *testing.T) {
	require.Error(t, storeHealthChecker{}.CheckHealth(context.Background()))
}

func TestExecutorHealthChecker(t *testing.T) {
	limiter := buildLimiter(config.ExecutorConfig{SafetyMargin: 1})
	require.NoError(t, executorHealthChecker{limiter: limiter}.CheckHealth(context.Background()))

	err := executorHealthChecker{}.CheckHealth(context.Background())
	require.Error(t, err)
	var degraded *handlers.DegradedError
	assert.False(t, errors.As(err, &degraded))
}

func TestIdentityHealthChecker(t *testing.T) {
	ctx := context.Background()
	require.Error(t, identityHealthChecker{}.CheckHealth(ctx))
	require.Error(t, identityHealthChecker{identity: &appidentity.Identity{BinaryName: "adpilot"}}.CheckHealth(ctx))
	require.NoError(t, identityHealthChecker{identity: &appidentity.Identity{
		BinaryName: "adpilot",
		EnvPrefix:  "ADPILOT_",
		ConfigName: "adpilot",
	}}.CheckHealth(ctx))
}
