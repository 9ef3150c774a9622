package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/config"
	errwrap "github.com/adpilot/adpilot/internal/errors"
	"github.com/adpilot/adpilot/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		log := observability.CLILogger
		identity := GetAppIdentity()
		bannerName := "doctor"
		if identity != nil && identity.BinaryName != "" {
			bannerName = identity.BinaryName + " doctor"
		}
		log.Info("=== " + bannerName + " ===")
		log.Info("")

		allChecks := true
		totalChecks := 7
		step := func(n int, label string) string {
			return fmt.Sprintf("[%d/%d] Checking %s...", n, totalChecks, label)
		}

		goVersion := runtime.Version()
		log.Info(step(1, "Go version")+" ✅ "+goVersion, zap.String("go_version", goVersion))

		version := crucible.GetVersion()
		if version.Crucible == "" || version.Gofulmen == "" {
			log.Error(step(2, "Crucible access") + " ❌ cannot read embedded versions")
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Cannot access Crucible", errwrap.NewExternalServiceError("Crucible service unavailable"))
		}
		log.Info(fmt.Sprintf("%s ✅ crucible v%s, gofulmen v%s", step(2, "Crucible access"), version.Crucible, version.Gofulmen))

		configPath := config.DefaultConfigPath()
		if configPath == "" {
			log.Error(step(3, "config directory") + " ❌ cannot resolve config directory")
			ExitWithCode(log, foundry.ExitFileNotFound, "Cannot resolve config directory", errwrap.NewInternalError("config directory not resolved"))
		}
		log.Info(step(3, "config directory")+" ✅ "+filepath.Dir(configPath), zap.String("config_dir", filepath.Dir(configPath)))

		cfg, cfgErr := config.Load(ctx)
		if cfgErr != nil {
			log.Warn(step(4, "configuration")+" ⚠️  not loaded", zap.Error(cfgErr))
			log.Warn(step(5, "database") + " ⚠️  skipped (config not loaded)")
			log.Warn(step(6, "ad platforms") + " ⚠️  skipped (config not loaded)")
			log.Warn(step(7, "summary backend") + " ⚠️  skipped (config not loaded)")
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
			return
		}
		log.Info(step(4, "configuration") + " ✅ loaded")

		if db, err := openStoreWith(ctx, cfg); err != nil {
			log.Warn(step(5, "database")+" ⚠️  cannot open store", zap.Error(err))
			allChecks = false
		} else {
			defer db.Close() //nolint:errcheck
			if err := db.Ping(ctx); err != nil {
				log.Warn(step(5, "database")+" ⚠️  ping failed", zap.Error(err))
				allChecks = false
			} else {
				log.Info(step(5, "database") + " ✅ " + describeStore(cfg.Store))
			}
		}

		problems := platformProblems(cfg.Platforms)
		switch {
		case len(buildRegistry(cfg.Platforms).Platforms()) == 0:
			log.Warn(step(6, "ad platforms") + " ⚠️  none enabled (set platforms.<name>.enabled)")
		case len(problems) > 0:
			for _, p := range problems {
				log.Warn(step(6, "ad platforms") + " ⚠️  " + p)
			}
			allChecks = false
		default:
			log.Info(step(6, "ad platforms") + " ✅ " + strings.Join(buildRegistry(cfg.Platforms).Platforms(), ", "))
		}

		if _, err := buildSummarizer(cfg, buildExecutor(cfg.Executor), nil); err != nil {
			log.Warn(step(7, "summary backend") + " ⚠️  " + err.Error())
			log.Info("       Verdicts still work; --summarize needs a configured backend.")
		} else {
			log.Info(step(7, "summary backend") + " ✅ " + cfg.AILink.Provider + " (" + cfg.AILink.Model + ")")
		}

		log.Info("")
		if allChecks {
			log.Info("✅ All checks passed!")
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		log.Info("")
		log.Info("=== End Diagnostics ===")
	},
}

// platformProblems lists missing credentials for enabled platforms.
func platformProblems(cfg config.PlatformsConfig) []string {
	var out []string
	if cfg.Meta.Enabled && strings.TrimSpace(cfg.Meta.AccessToken) == "" {
		out = append(out, "meta: access token not set (ADPILOT_META_ACCESS_TOKEN)")
	}
	if cfg.GoogleAds.Enabled {
		if strings.TrimSpace(cfg.GoogleAds.DeveloperToken) == "" || strings.TrimSpace(cfg.GoogleAds.AccessToken) == "" {
			out = append(out, "google_ads: developer token and access token are required")
		}
		if strings.TrimSpace(cfg.GoogleAds.CustomerID) == "" {
			out = append(out, "google_ads: customer id not set")
		}
	}
	if cfg.TikTok.Enabled {
		if strings.TrimSpace(cfg.TikTok.AccessToken) == "" || strings.TrimSpace(cfg.TikTok.AdvertiserID) == "" {
			out = append(out, "tiktok: access token and advertiser id are required")
		}
	}
	return out
}

func describeStore(cfg config.StoreConfig) string {
	if cfg.URL != "" {
		return cfg.URL + " (remote)"
	}
	dbPath := cfg.Path
	if dbPath == "" {
		dbPath = config.DefaultStorePath()
	}
	absPath, _ := filepath.Abs(dbPath)
	if info, err := os.Stat(absPath); err == nil {
		return fmt.Sprintf("%s (%s)", absPath, formatFileSize(info.Size()))
	}
	return absPath
}

var (
	doctorInitForce   bool
	doctorInitAPIKey  string
	doctorResetConfig bool
	doctorResetData   bool
	doctorResetAll    bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		apiKey := strings.TrimSpace(doctorInitAPIKey)
		if strings.EqualFold(apiKey, "prompt") {
			key, err := promptForValue("Enter Anthropic API key (leave blank to skip): ")
			if err != nil {
				return err
			}
			apiKey = key
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		mode := os.FileMode(0644)
		if apiKey != "" {
			mode = 0600
		}

		if err := os.WriteFile(configPath, []byte(buildInitConfig(apiKey)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.CLILogger
		configPath := config.DefaultConfigPath()
		dataDir := config.DefaultDataDir()

		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Config file:    %s (%s)", configPath, existenceStatus(fileExists(configPath))))
		if dataDir != "" {
			log.Info(fmt.Sprintf("  Data directory: %s (%s)", dataDir, existenceStatus(fileExists(dataDir))))
		} else {
			log.Info("  Data directory: (not resolved)")
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return nil
		}
		log.Info("  Database:       " + describeStore(cfg.Store))

		log.Info("")
		log.Info("Environment:")
		for _, name := range []string{
			"ADPILOT_AILINK_API_KEY",
			"ADPILOT_META_ACCESS_TOKEN",
			"ADPILOT_GOOGLE_ADS_ACCESS_TOKEN",
			"ADPILOT_TIKTOK_ACCESS_TOKEN",
		} {
			log.Info("  " + name + ": " + envStatus(name))
		}

		log.Info("")
		log.Info("Effective Settings:")
		log.Info(fmt.Sprintf("  ailink.enabled: %t", cfg.AILink.Enabled))
		log.Info(fmt.Sprintf("  executor.safety_margin: %.2f", cfg.Executor.SafetyMargin))
		log.Info(fmt.Sprintf("  platforms enabled: %s", strings.Join(buildRegistry(cfg.Platforms).Platforms(), ", ")))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			if configPath := config.DefaultConfigPath(); configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := removeIfPresent("config file", configPath); err != nil {
				return err
			}
		}

		if doctorResetData {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}

			dbPath := cfg.Store.Path
			if dbPath == "" {
				dbPath = config.DefaultStorePath()
			}
			absPath, _ := filepath.Abs(dbPath)
			// WAL mode leaves -wal and -shm files next to the database.
			for _, path := range []string{absPath, absPath + "-wal", absPath + "-shm"} {
				if err := removeIfPresent("database file", path); err != nil {
					return err
				}
			}
		}

		return nil
	},
}

// removeIfPresent deletes path, treating an already missing file as done.
func removeIfPresent(label, path string) error {
	err := os.Remove(path)
	switch {
	case err == nil:
		observability.CLILogger.Info("Removed "+label, zap.String("path", path))
	case os.IsNotExist(err):
		observability.CLILogger.Debug("Already absent: "+label, zap.String("path", path))
	default:
		return fmt.Errorf("remove %s: %w", label, err)
	}
	return nil
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		if _, err := config.Load(cmd.Context()); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitAPIKey, "api-key", "", "set the Anthropic api key or use 'prompt' to enter")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func buildInitConfig(apiKey string) string {
	lines := []string{
		"# adpilot config - created by 'adpilot doctor init'",
		"platforms:",
		"  meta:",
		"    enabled: false",
		"    # access_token: set via ADPILOT_META_ACCESS_TOKEN",
		"  google_ads:",
		"    enabled: false",
		"    customer_id: \"\"",
		"  tiktok:",
		"    enabled: false",
		"    advertiser_id: \"\"",
		"ailink:",
		"  provider: anthropic",
		"  model: claude-sonnet-4-5",
	}

	if strings.TrimSpace(apiKey) != "" {
		lines = append(lines,
			"  enabled: true",
			fmt.Sprintf("  api_key: %q", apiKey),
		)
	} else {
		lines = append(lines,
			"  enabled: false",
			"  # api_key: \"\"  # Set via ADPILOT_AILINK_API_KEY or uncomment",
		)
	}

	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(prompt string) (string, error) {
	if _, err := fmt.Fprint(os.Stdout, prompt); err != nil {
		return "", err
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
