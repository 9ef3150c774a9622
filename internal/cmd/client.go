package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/metrics"
	"github.com/adpilot/adpilot/internal/observability"
	"github.com/adpilot/adpilot/internal/output"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage agency clients and their primary KPI",
}

var clientSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Create or update a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		kpi, _ := cmd.Flags().GetString("kpi")

		if err := validateKPI(kpi); err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		client := core.Client{ID: args[0], Name: strings.TrimSpace(name), PrimaryKPI: core.ParseKPI(kpi)}
		err = db.UpsertClient(cmd.Context(), client)
		metrics.RecordCommand("client.set", err)
		if err != nil {
			return err
		}

		observability.CLILogger.Info("Client saved",
			zap.String("client_id", core.NormalizeKey(args[0])),
			zap.String("primary_kpi", string(client.PrimaryKPI)))
		return nil
	},
}

var clientGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		client, err := db.GetClient(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if client == nil {
			return fmt.Errorf("client not found: %s", args[0])
		}
		return printClients(cmd, format, []core.Client{*client})
	},
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		clients, err := db.ListClients(cmd.Context())
		if err != nil {
			return err
		}
		return printClients(cmd, format, clients)
	},
}

func printClients(cmd *cobra.Command, format output.Format, clients []core.Client) error {
	out := cmd.OutOrStdout()
	if format == output.FormatJSON {
		if clients == nil {
			clients = []core.Client{}
		}
		payload, err := json.MarshalIndent(clients, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(payload))
		return err
	}

	lines := []string{"Clients", ""}
	if len(clients) == 0 {
		lines = append(lines, "(no clients configured)")
	}
	for _, c := range clients {
		lines = append(lines, fmt.Sprintf("%s: name=%s kpi=%s updated=%s",
			c.ID, c.Name, c.PrimaryKPI, c.UpdatedAt.UTC().Format(time.RFC3339)))
	}
	_, err := fmt.Fprint(out, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

// validateKPI rejects typos instead of silently falling back to conversions.
func validateKPI(value string) error {
	switch core.KPI(core.NormalizeKey(value)) {
	case core.KPIConversions, core.KPIROAS, core.KPICPA:
		return nil
	default:
		return fmt.Errorf("unsupported kpi %q (use conversions, roas or cpa)", value)
	}
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(clientSetCmd)
	clientCmd.AddCommand(clientGetCmd)
	clientCmd.AddCommand(clientListCmd)

	clientSetCmd.Flags().String("name", "", "display name")
	clientSetCmd.Flags().String("kpi", string(core.KPIConversions), "primary KPI: conversions|roas|cpa")

	clientGetCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
	clientListCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
}
