package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("=== " + identity.BinaryName + " environment ===")
		log.Info("")
		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS/ARCH:  " + runtime.GOOS + "/" + runtime.GOARCH)
		log.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Server:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         " + cfg.Store.URL)
		} else {
			log.Info("  DB Path:        " + cfg.Store.Path)
		}
		log.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port))
		log.Info("  Config File:    " + config.DefaultConfigPath())
		log.Info("")

		log.Info("Executor:")
		log.Info("  Default Deadline: " + cfg.Executor.DefaultDeadline.String())
		log.Info(fmt.Sprintf("  Retries:          %d (base %s, max %s)", cfg.Executor.MaxRetries, cfg.Executor.BaseDelay, cfg.Executor.MaxDelay))
		log.Info(fmt.Sprintf("  Safety Margin:    %.2f", cfg.Executor.SafetyMargin))
		for _, snap := range buildLimiter(cfg.Executor).Snapshots() {
			log.Info(fmt.Sprintf("  %-12s concurrent=%d per_second=%.2f burst=%d",
				snap.Key, snap.Limit.MaxConcurrent, snap.Limit.PerSecond, snap.Limit.Burst))
		}
		log.Info("")

		log.Info("Platforms:")
		log.Info(fmt.Sprintf("  meta:       enabled=%t token=%s", cfg.Platforms.Meta.Enabled, secretStatus(cfg.Platforms.Meta.AccessToken)))
		log.Info(fmt.Sprintf("  google_ads: enabled=%t token=%s", cfg.Platforms.GoogleAds.Enabled, secretStatus(cfg.Platforms.GoogleAds.AccessToken)))
		log.Info(fmt.Sprintf("  tiktok:     enabled=%t token=%s", cfg.Platforms.TikTok.Enabled, secretStatus(cfg.Platforms.TikTok.AccessToken)))
		log.Info("")

		log.Info("AILink:")
		log.Info(fmt.Sprintf("  Enabled:  %t", cfg.AILink.Enabled))
		log.Info("  Provider: " + cfg.AILink.Provider)
		log.Info("  Model:    " + cfg.AILink.Model)
		log.Info("  API Key:  " + secretStatus(cfg.AILink.APIKey))
		log.Info("")
		log.Info("=== End Environment Information ===")
	},
}

func secretStatus(value string) string {
	if strings.TrimSpace(value) != "" {
		return "(set)"
	}
	return "(not set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
