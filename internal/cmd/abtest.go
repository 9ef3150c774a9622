package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/core/abtest"
	"github.com/adpilot/adpilot/internal/metrics"
	"github.com/adpilot/adpilot/internal/output"
)

const outputFormats = "table|json|markdown"

var abtestCmd = &cobra.Command{
	Use:   "abtest",
	Short: "Evaluate ad variant A/B tests",
}

var abtestEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate variants from a YAML or JSON file",
	Long: `Evaluate variant metrics offline.

The file holds either a list of variants or a document with "kpi" and
"variants" keys. Use --file - to read from stdin.

Example:
  adpilot abtest evaluate --file variants.yaml --kpi roas`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		kpiFlag, _ := cmd.Flags().GetString("kpi")

		doc, err := readVariantsFile(path)
		if err != nil {
			return err
		}
		kpi := strings.TrimSpace(kpiFlag)
		if kpi == "" {
			kpi = doc.KPI
		}

		verdict := abtest.Evaluate(doc.Variants, kpi)
		metrics.RecordEvaluation(string(verdict.KPI), verdict.Significant)

		record := &core.VerdictRecord{Verdict: verdict}
		return writeOutput(cmd, "abtest.evaluate", func(_ output.Format, f output.Formatter) (string, error) {
			return f.FormatVerdict(record)
		})
	},
}

var abtestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch live metrics for a campaign and record a verdict",
	Long: `Fetch per-variant metrics from an ad platform, evaluate them under the
client's primary KPI and store the verdict.

Example:
  adpilot abtest run --client acme --platform meta --campaign 120210000000 --summarize`,
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, _ := cmd.Flags().GetString("client")
		platformKey, _ := cmd.Flags().GetString("platform")
		campaignID, _ := cmd.Flags().GetString("campaign")
		summarize, _ := cmd.Flags().GetBool("summarize")

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		manager, err := rt.manager(summarize)
		if err != nil {
			return err
		}

		record, err := manager.Run(cmd.Context(), clientID, platformKey, campaignID)
		metrics.RecordCommand("abtest.run", err)
		if err != nil {
			return err
		}

		return writeOutput(cmd, "abtest."+campaignID, func(_ output.Format, f output.Formatter) (string, error) {
			return f.FormatVerdict(record)
		})
	},
}

var abtestHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored verdicts for a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, _ := cmd.Flags().GetString("client")
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		records, err := db.ListVerdicts(cmd.Context(), clientID, limit)
		if err != nil {
			return err
		}

		return writeOutput(cmd, "abtest.history."+clientID, func(format output.Format, _ output.Formatter) (string, error) {
			if len(records) == 0 && format != output.FormatJSON {
				return "(no verdicts recorded)", nil
			}
			return output.FormatVerdictList(format, records)
		})
	},
}

// variantsDocument is the evaluate input file.
type variantsDocument struct {
	KPI      string               `yaml:"kpi"`
	Variants []core.MetricVariant `yaml:"variants"`
}

// readVariantsFile accepts a bare variant list or a variantsDocument. JSON
// input parses because YAML is a superset of it.
func readVariantsFile(path string) (*variantsDocument, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read variants: %w", err)
	}
	return parseVariants(data)
}

func parseVariants(data []byte) (*variantsDocument, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse variants: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("variants file is empty")
	}

	doc := &variantsDocument{}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&doc.Variants); err != nil {
			return nil, fmt.Errorf("parse variants: %w", err)
		}
	case yaml.MappingNode:
		if err := root.Decode(doc); err != nil {
			return nil, fmt.Errorf("parse variants: %w", err)
		}
	default:
		return nil, fmt.Errorf("variants must be a list or a mapping with a variants key")
	}

	for i, v := range doc.Variants {
		if strings.TrimSpace(v.Name) == "" {
			doc.Variants[i].Name = fmt.Sprintf("variant-%d", i+1)
		}
	}
	return doc, nil
}

func init() {
	rootCmd.AddCommand(abtestCmd)
	abtestCmd.AddCommand(abtestEvaluateCmd)
	abtestCmd.AddCommand(abtestRunCmd)
	abtestCmd.AddCommand(abtestHistoryCmd)

	abtestEvaluateCmd.Flags().String("file", "", "variants file (YAML or JSON, - for stdin)")
	abtestEvaluateCmd.Flags().String("kpi", "", "primary KPI: conversions|roas|cpa (overrides the file)")
	addOutputFlags(abtestEvaluateCmd, outputFormats)

	abtestRunCmd.Flags().String("client", "", "client id")
	abtestRunCmd.Flags().String("platform", "", "ad platform: meta|google_ads|tiktok")
	abtestRunCmd.Flags().String("campaign", "", "platform campaign id")
	abtestRunCmd.Flags().Bool("summarize", false, "attach a client-facing summary")
	_ = abtestRunCmd.MarkFlagRequired("client")
	_ = abtestRunCmd.MarkFlagRequired("platform")
	_ = abtestRunCmd.MarkFlagRequired("campaign")
	addOutputFlags(abtestRunCmd, outputFormats)

	abtestHistoryCmd.Flags().String("client", "", "client id")
	abtestHistoryCmd.Flags().Int("limit", 20, "maximum verdicts to list")
	_ = abtestHistoryCmd.MarkFlagRequired("client")
	addOutputFlags(abtestHistoryCmd, outputFormats)
}
