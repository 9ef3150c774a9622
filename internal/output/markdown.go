package output

import (
	"fmt"
	"strings"

	"github.com/adpilot/adpilot/internal/core"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatVerdict renders a verdict as Markdown.
func (f *MarkdownFormatter) FormatVerdict(record *core.VerdictRecord) (string, error) {
	if record == nil {
		return "", nil
	}
	v := record.Verdict

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(verdictTitle(record))))
	sb.WriteString(fmt.Sprintf("| Rank | Variant | %s | Role |\n", strings.ToUpper(string(v.KPI))))
	sb.WriteString("|------|---------|-----|------|\n")
	for i, r := range v.Ranked {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
			i+1,
			escapeMarkdownCell(r.Name),
			formatScore(v.KPI, r.Score),
			variantRole(v, r.Name),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Verdict**: %s", verdictStatus(v)))
	if v.Reason != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", v.Reason))
	}
	sb.WriteString(fmt.Sprintf("\n**Improvement**: %s\n**Confidence**: %s\n",
		formatPct(v.ImprovementPct), formatPct(v.ConfidencePct)))

	if record.Summary != "" {
		sb.WriteString("\n> ")
		sb.WriteString(strings.ReplaceAll(strings.TrimSpace(record.Summary), "\n", "\n> "))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// FormatCosts renders ledger entries as Markdown.
func (f *MarkdownFormatter) FormatCosts(entries []core.CostEntry) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Recorded | Platform | Workflow | Client | Model | Tokens | Cents |\n")
	sb.WriteString("|----------|----------|----------|--------|-------|--------|-------|\n")

	var total float64
	for _, e := range entries {
		total += e.CostCents
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
			formatTime(e.RecordedAt),
			escapeMarkdownCell(e.Platform),
			escapeMarkdownCell(e.Workflow),
			escapeMarkdownCell(orDash(e.ClientID)),
			escapeMarkdownCell(orDash(e.Model)),
			formatTokens(e),
			formatCents(e.CostCents),
		))
	}
	sb.WriteString(fmt.Sprintf("\n**Total**: %s cents over %d calls\n", formatCents(total), len(entries)))
	return sb.String(), nil
}

// FormatCostTotals renders per-platform spend as Markdown.
func (f *MarkdownFormatter) FormatCostTotals(totals []core.CostTotal) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Platform | Calls | Cents |\n")
	sb.WriteString("|----------|-------|-------|\n")
	for _, total := range totals {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n",
			escapeMarkdownCell(total.Platform), total.Calls, formatCents(total.CostCents)))
	}
	return sb.String(), nil
}

// FormatLimits renders limiter budgets as Markdown.
func (f *MarkdownFormatter) FormatLimits(snapshots []core.LimiterSnapshot) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Platform | Concurrent | Per Second | Burst | Deadline | In Flight | Queued |\n")
	sb.WriteString("|----------|------------|------------|-------|----------|-----------|--------|\n")
	for _, s := range snapshots {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %d | %s | %d | %d |\n",
			escapeMarkdownCell(s.Key),
			s.Limit.MaxConcurrent,
			s.Limit.PerSecond,
			s.Limit.Burst,
			formatDeadline(s.Limit.Deadline),
			s.InFlight,
			s.Queued,
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
