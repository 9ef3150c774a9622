package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/config"
	errwrap "github.com/adpilot/adpilot/internal/errors"
	"github.com/adpilot/adpilot/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check: version info, configuration, and store connectivity.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		observability.CLILogger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		observability.CLILogger.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Configuration invalid", errwrap.WrapConfigInvalid(cmd.Context(), err, "config load failed"))
			return
		}
		observability.CLILogger.Info("✅ Configuration loaded")

		db, err := openStoreWith(cmd.Context(), cfg)
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Store unavailable", errwrap.WrapDatabaseError(cmd.Context(), err, "store open failed"))
			return
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup
		if err := (storeHealthChecker{store: db}).CheckHealth(cmd.Context()); err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Store unreachable", err)
			return
		}
		observability.CLILogger.Info("✅ Store reachable", zap.String("driver", db.Driver()))

		observability.CLILogger.Info("")
		observability.CLILogger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
