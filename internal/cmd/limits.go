package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/output"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show per-platform concurrency and pacing budgets",
	Long: `Show the effective budget for every platform key after config overrides
and the safety margin. A fresh process has nothing in flight, so the live
columns are only interesting from the server's /v1/limits endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		snapshots := buildLimiter(cfg.Executor).Snapshots()
		return writeOutput(cmd, "limits", func(_ output.Format, f output.Formatter) (string, error) {
			return f.FormatLimits(snapshots)
		})
	},
}

func init() {
	rootCmd.AddCommand(limitsCmd)
	addOutputFlags(limitsCmd, outputFormats)
}
