package config

import (
	"time"

	"github.com/adpilot/adpilot/internal/ailink"
	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/core/cost"
)

// Config is the decoded result of the defaults, user file and environment
// layers.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Platforms PlatformsConfig `mapstructure:"platforms"`
	AILink    ailink.Config   `mapstructure:"ailink"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig holds the listener address and timeouts.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects a local libsql file or a remote Turso URL.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// ExecutorConfig tunes the shared rate-limited retry executor.
type ExecutorConfig struct {
	DefaultDeadline time.Duration `mapstructure:"default_deadline"`
	MaxRetries      int           `mapstructure:"max_retries"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`

	// SafetyMargin scales every per-second budget (0-1].
	SafetyMargin float64 `mapstructure:"safety_margin"`

	// Limits overrides the built-in budget per platform key.
	Limits map[string]LimitConfig `mapstructure:"limits"`
}

// LimitConfig is one platform's budget. Zero fields keep the built-in value.
type LimitConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	PerSecond     float64       `mapstructure:"per_second"`
	Burst         int           `mapstructure:"burst"`
	Deadline      time.Duration `mapstructure:"deadline"`
}

// PlatformLimits converts configured limits into limiter budgets.
func (c ExecutorConfig) PlatformLimits() map[string]core.PlatformLimit {
	out := make(map[string]core.PlatformLimit, len(c.Limits))
	for key, limit := range c.Limits {
		out[core.NormalizeKey(key)] = core.PlatformLimit{
			MaxConcurrent: limit.MaxConcurrent,
			PerSecond:     limit.PerSecond,
			Burst:         limit.Burst,
			Deadline:      limit.Deadline,
		}
	}
	return out
}

// PlatformsConfig holds credentials for the ad platforms.
type PlatformsConfig struct {
	Meta      MetaConfig      `mapstructure:"meta"`
	GoogleAds GoogleAdsConfig `mapstructure:"google_ads"`
	TikTok    TikTokConfig    `mapstructure:"tiktok"`
}

// MetaConfig configures the Graph API insights client.
type MetaConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BaseURL     string `mapstructure:"base_url"`
	Version     string `mapstructure:"version"`
	AccessToken string `mapstructure:"access_token"`
	DatePreset  string `mapstructure:"date_preset"`
}

// GoogleAdsConfig configures the googleAds:search client.
type GoogleAdsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	BaseURL         string `mapstructure:"base_url"`
	Version         string `mapstructure:"version"`
	DeveloperToken  string `mapstructure:"developer_token"`
	AccessToken     string `mapstructure:"access_token"`
	CustomerID      string `mapstructure:"customer_id"`
	LoginCustomerID string `mapstructure:"login_customer_id"`
	LookbackDays    int    `mapstructure:"lookback_days"`
}

// TikTokConfig configures the TikTok Business API report client.
type TikTokConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	BaseURL      string `mapstructure:"base_url"`
	AccessToken  string `mapstructure:"access_token"`
	AdvertiserID string `mapstructure:"advertiser_id"`
	LookbackDays int    `mapstructure:"lookback_days"`
}

// PricingConfig overrides built-in prices.
type PricingConfig struct {
	Models    map[string]cost.ModelPrice `mapstructure:"models"`
	Platforms map[string]float64         `mapstructure:"platforms"`
}

// Pricing merges overrides onto the built-in price list.
func (c PricingConfig) Pricing() cost.Pricing {
	return cost.DefaultPricing().Merge(cost.Pricing{Models: c.Models, Platforms: c.Platforms})
}

// LoggingConfig selects the level (trace..error) and the profile: SIMPLE
// for console-only CLI output, STRUCTURED for the API server.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// MetricsConfig controls the Prometheus exporter and its dedicated port.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled mounts /debug/pprof on the API listener.
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
