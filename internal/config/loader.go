// Package config loads adpilot configuration in three layers with
// gofulmen/config: embedded defaults under config/adpilot/v0, the user's
// XDG config file, then ADPILOT_* environment variables and runtime
// overrides.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/pathfinder"
	"github.com/fulmenhq/gofulmen/schema"
	"github.com/go-viper/mapstructure/v2"

	"github.com/adpilot/adpilot/internal/appid"
)

const fallbackAppName = "adpilot"

var (
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// EnvVarSpec maps one environment variable onto a config path.
type EnvVarSpec = gfconfig.EnvVarSpec

const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// envBindings lists the variables by suffix; getEnvSpecs adds the prefix.
// Durations travel as strings and are decoded later.
var envBindings = []EnvVarSpec{
	{Name: "HOST", Path: at("server.host"), Type: EnvString},
	{Name: "PORT", Path: at("server.port"), Type: EnvInt},
	{Name: "READ_TIMEOUT", Path: at("server.read_timeout"), Type: EnvString},
	{Name: "WRITE_TIMEOUT", Path: at("server.write_timeout"), Type: EnvString},
	{Name: "IDLE_TIMEOUT", Path: at("server.idle_timeout"), Type: EnvString},
	{Name: "SHUTDOWN_TIMEOUT", Path: at("server.shutdown_timeout"), Type: EnvString},

	{Name: "LOG_LEVEL", Path: at("logging.level"), Type: EnvString},
	{Name: "LOG_PROFILE", Path: at("logging.profile"), Type: EnvString},

	{Name: "DB_DRIVER", Path: at("store.driver"), Type: EnvString},
	{Name: "DB_PATH", Path: at("store.path"), Type: EnvString},
	{Name: "DB_URL", Path: at("store.url"), Type: EnvString},
	{Name: "DB_AUTH_TOKEN", Path: at("store.auth_token"), Type: EnvString},

	{Name: "DEFAULT_DEADLINE", Path: at("executor.default_deadline"), Type: EnvString},
	{Name: "MAX_RETRIES", Path: at("executor.max_retries"), Type: EnvInt},
	{Name: "RETRY_BASE_DELAY", Path: at("executor.base_delay"), Type: EnvString},
	{Name: "RETRY_MAX_DELAY", Path: at("executor.max_delay"), Type: EnvString},

	{Name: "META_ENABLED", Path: at("platforms.meta.enabled"), Type: EnvBool},
	{Name: "META_ACCESS_TOKEN", Path: at("platforms.meta.access_token"), Type: EnvString},
	{Name: "META_BASE_URL", Path: at("platforms.meta.base_url"), Type: EnvString},
	{Name: "GOOGLE_ADS_ENABLED", Path: at("platforms.google_ads.enabled"), Type: EnvBool},
	{Name: "GOOGLE_ADS_DEVELOPER_TOKEN", Path: at("platforms.google_ads.developer_token"), Type: EnvString},
	{Name: "GOOGLE_ADS_ACCESS_TOKEN", Path: at("platforms.google_ads.access_token"), Type: EnvString},
	{Name: "GOOGLE_ADS_CUSTOMER_ID", Path: at("platforms.google_ads.customer_id"), Type: EnvString},
	{Name: "GOOGLE_ADS_LOGIN_CUSTOMER_ID", Path: at("platforms.google_ads.login_customer_id"), Type: EnvString},
	{Name: "TIKTOK_ENABLED", Path: at("platforms.tiktok.enabled"), Type: EnvBool},
	{Name: "TIKTOK_ACCESS_TOKEN", Path: at("platforms.tiktok.access_token"), Type: EnvString},
	{Name: "TIKTOK_ADVERTISER_ID", Path: at("platforms.tiktok.advertiser_id"), Type: EnvString},

	{Name: "AILINK_ENABLED", Path: at("ailink.enabled"), Type: EnvBool},
	{Name: "AILINK_BASE_URL", Path: at("ailink.base_url"), Type: EnvString},
	{Name: "AILINK_API_KEY", Path: at("ailink.api_key"), Type: EnvString},
	{Name: "AILINK_MODEL", Path: at("ailink.model"), Type: EnvString},
	{Name: "AILINK_TIMEOUT", Path: at("ailink.timeout"), Type: EnvString},
	{Name: "AILINK_DEADLINE", Path: at("ailink.deadline"), Type: EnvString},

	{Name: "METRICS_ENABLED", Path: at("metrics.enabled"), Type: EnvBool},
	{Name: "METRICS_PORT", Path: at("metrics.port"), Type: EnvInt},
	{Name: "HEALTH_ENABLED", Path: at("health.enabled"), Type: EnvBool},
	{Name: "DEBUG_ENABLED", Path: at("debug.enabled"), Type: EnvBool},
	{Name: "DEBUG_PPROF_ENABLED", Path: at("debug.pprof_enabled"), Type: EnvBool},
}

func at(path string) []string {
	return strings.Split(path, ".")
}

// limitFields are the budget keys accepted from
// {PREFIX}LIMITS_<PLATFORM>_<FIELD>.
var limitFields = []string{"max_concurrent", "per_second", "burst", "deadline"}

// Load merges the three layers and decodes the result. It may be called
// again to reload; the latest result is what GetConfig returns.
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app identity: %w", err)
		}
		appIdentity = identity
	}

	root, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}

	envOverrides, err := loadEnvOverrides()
	if err != nil {
		return nil, err
	}

	layers := append([]map[string]any{envOverrides}, runtimeOverrides...)
	merged, diagnostics, err := gfconfig.LoadLayeredConfig(layeredOptions(root), layers...)
	if err != nil {
		return nil, fmt.Errorf("failed to load layered config: %w", err)
	}

	// Schema findings are reported, not fatal.
	for _, diag := range diagnostics {
		fmt.Fprintf(os.Stderr, "Config validation: %s: %s\n", diag.Pointer, diag.Message)
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the most recently loaded configuration.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func layeredOptions(root string) gfconfig.LayeredConfigOptions {
	return gfconfig.LayeredConfigOptions{
		Category:     "adpilot",
		Version:      "v0",
		DefaultsFile: "adpilot-defaults.yaml",
		SchemaID:     "adpilot/v0/config",
		UserPaths:    getUserConfigPaths(),
		Catalog:      schema.NewCatalog(filepath.Join(root, "schemas")),
		DefaultsRoot: filepath.Join(root, "config"),
	}
}

func decode(merged map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// findProjectRoot locates the directory holding go.mod or .git so the
// defaults and schema resolve from any working directory. On CI the
// workspace variables act as a search boundary.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	markers := []string{"go.mod", ".git"}

	for _, boundary := range ciBoundaries(cwd) {
		root, err := pathfinder.FindRepositoryRoot(cwd, markers,
			pathfinder.WithBoundary(boundary),
			pathfinder.WithMaxDepth(20),
		)
		if err == nil {
			return root, nil
		}
	}

	root, err := pathfinder.FindRepositoryRoot(cwd, markers, pathfinder.WithMaxDepth(10))
	if err != nil {
		return "", fmt.Errorf("project root not found: %w", err)
	}
	return root, nil
}

// ciBoundaries returns workspace directories that contain cwd, only when
// running under CI.
func ciBoundaries(cwd string) []string {
	if !envTrue("GITHUB_ACTIONS") && !envTrue("CI") {
		return nil
	}

	var out []string
	for _, key := range []string{"FULMEN_WORKSPACE_ROOT", "GITHUB_WORKSPACE", "CI_PROJECT_DIR", "WORKSPACE"} {
		boundary := strings.TrimSpace(os.Getenv(key))
		if boundary == "" {
			continue
		}
		boundary = filepath.Clean(boundary)
		if !filepath.IsAbs(boundary) {
			continue
		}
		if st, err := os.Stat(boundary); err != nil || !st.IsDir() {
			continue
		}
		if rel, err := filepath.Rel(boundary, cwd); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		out = append(out, boundary)
	}
	return out
}

func envTrue(key string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "true")
}

func envPrefix() string {
	if appIdentity == nil {
		return ""
	}
	prefix := appIdentity.EnvPrefix
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// getEnvSpecs expands envBindings under the identity's prefix.
func getEnvSpecs() []EnvVarSpec {
	prefix := envPrefix()
	if prefix == "" {
		return []EnvVarSpec{}
	}

	specs := make([]EnvVarSpec, 0, len(envBindings))
	for _, spec := range envBindings {
		spec.Name = prefix + spec.Name
		specs = append(specs, spec)
	}
	return specs
}

// loadEnvOverrides collects the declared variables plus the dynamic
// limit and safety margin variables.
func loadEnvOverrides() (map[string]any, error) {
	overrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if overrides == nil {
		overrides = map[string]any{}
	}

	prefix := envPrefix()
	if prefix == "" {
		return overrides, nil
	}

	if err := applyLimitEnvOverrides(prefix, overrides); err != nil {
		return nil, err
	}

	if value := strings.TrimSpace(os.Getenv(prefix + "SAFETY_MARGIN")); value != "" {
		margin, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid safety margin: %w", err)
		}
		ensureMap(overrides, "executor")["safety_margin"] = margin
	}
	return overrides, nil
}

func getUserConfigPaths() []string {
	if appIdentity == nil {
		return []string{}
	}

	configName, binaryName := appNamesForPaths()
	var legacy []string
	if strings.TrimSpace(appIdentity.BinaryName) != "" && binaryName != configName {
		legacy = append(legacy, binaryName)
	}
	return gfconfig.GetAppConfigPaths(configName, legacy...)
}

// appNamesForPaths resolves the config and binary names, each falling back
// to "adpilot".
func appNamesForPaths() (configName string, binaryName string) {
	configName, binaryName = fallbackAppName, fallbackAppName
	if appIdentity == nil {
		return configName, binaryName
	}
	if name := strings.TrimSpace(appIdentity.BinaryName); name != "" {
		binaryName = name
		configName = name
	}
	if name := strings.TrimSpace(appIdentity.ConfigName); name != "" {
		configName = name
	}
	return configName, binaryName
}

// DefaultConfigPath is the user config file under the XDG config dir.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	dir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath is <data dir>/<binary>.db, or ./<binary>.db when no data
// dir can be resolved.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dir, binaryName+".db")
}

// applyLimitEnvOverrides maps {PREFIX}LIMITS_<PLATFORM>_<FIELD> onto
// executor.limits.<platform>.<field>. Platform keys may contain underscores,
// so the field is matched from the end of the name.
func applyLimitEnvOverrides(prefix string, envOverrides map[string]any) error {
	limitsPrefix := prefix + "LIMITS_"

	for _, item := range os.Environ() {
		key, value, ok := strings.Cut(item, "=")
		if !ok || !strings.HasPrefix(key, limitsPrefix) {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		platform, field := splitLimitKey(strings.ToLower(key[len(limitsPrefix):]))
		if platform == "" || field == "" {
			continue
		}

		parsed, err := parseLimitValue(field, value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}

		limits := ensureMap(ensureMap(envOverrides, "executor"), "limits")
		ensureMap(limits, platform)[field] = parsed
	}
	return nil
}

func parseLimitValue(field, value string) (any, error) {
	switch field {
	case "max_concurrent", "burst":
		return strconv.Atoi(value)
	case "per_second":
		return strconv.ParseFloat(value, 64)
	default:
		return value, nil
	}
}

func splitLimitKey(raw string) (platform string, field string) {
	for _, candidate := range limitFields {
		if strings.HasSuffix(raw, "_"+candidate) {
			return strings.TrimSuffix(raw, "_"+candidate), candidate
		}
	}
	return "", ""
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if parent == nil {
		return map[string]any{}
	}
	if existing, ok := parent[key].(map[string]any); ok {
		return existing
	}
	next := map[string]any{}
	parent[key] = next
	return next
}
