package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/output"
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Inspect the per-call cost ledger",
}

var costListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded calls, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := costQueryFromFlags(cmd)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		entries, err := db.ListCosts(cmd.Context(), query)
		if err != nil {
			return err
		}
		return writeOutput(cmd, "cost.list", func(_ output.Format, f output.Formatter) (string, error) {
			return f.FormatCosts(entries)
		})
	},
}

var costTotalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Sum recorded cost per platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := costQueryFromFlags(cmd)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		totals, err := db.CostTotals(cmd.Context(), query)
		if err != nil {
			return err
		}
		return writeOutput(cmd, "cost.totals", func(_ output.Format, f output.Formatter) (string, error) {
			return f.FormatCostTotals(totals)
		})
	},
}

func costQueryFromFlags(cmd *cobra.Command) (core.CostQuery, error) {
	clientID, _ := cmd.Flags().GetString("client")
	platformKey, _ := cmd.Flags().GetString("platform")
	since, _ := cmd.Flags().GetDuration("since")

	query := core.CostQuery{
		ClientID: strings.TrimSpace(clientID),
		Platform: strings.TrimSpace(platformKey),
	}
	if since < 0 {
		return query, fmt.Errorf("--since must be positive")
	}
	if since > 0 {
		query.Since = time.Now().Add(-since)
	}
	if cmd.Flags().Lookup("limit") != nil {
		query.Limit, _ = cmd.Flags().GetInt("limit")
	}
	return query, nil
}

func init() {
	rootCmd.AddCommand(costCmd)
	costCmd.AddCommand(costListCmd)
	costCmd.AddCommand(costTotalsCmd)

	for _, c := range []*cobra.Command{costListCmd, costTotalsCmd} {
		c.Flags().String("client", "", "filter by client id")
		c.Flags().String("platform", "", "filter by platform key")
		c.Flags().Duration("since", 0, "only entries newer than this (e.g. 168h)")
		addOutputFlags(c, outputFormats)
	}
	costListCmd.Flags().Int("limit", 50, "maximum entries to list")
}
