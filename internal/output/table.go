package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/adpilot/adpilot/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatVerdict renders the ranking as a table with the verdict in the footer.
func (f *TableFormatter) FormatVerdict(record *core.VerdictRecord) (string, error) {
	if record == nil {
		return "", nil
	}
	v := record.Verdict

	t := newTable()
	t.SetTitle(verdictTitle(record))
	t.AppendHeader(table.Row{"Rank", "Variant", strings.ToUpper(string(v.KPI)), "Role"})

	for i, r := range v.Ranked {
		t.AppendRow(table.Row{i + 1, r.Name, formatScore(v.KPI, r.Score), variantRole(v, r.Name)})
	}

	status := verdictStatus(v)
	if v.Reason != "" {
		status += " (" + v.Reason + ")"
	}
	t.AppendFooter(table.Row{
		"",
		status,
		"improvement " + formatPct(v.ImprovementPct),
		"confidence " + formatPct(v.ConfidencePct),
	})

	rendered := t.Render()
	if record.Summary != "" {
		rendered += "\n\n" + record.Summary
	}
	return rendered, nil
}

// FormatCosts renders ledger entries, newest first.
func (f *TableFormatter) FormatCosts(entries []core.CostEntry) (string, error) {
	t := newTable()
	t.AppendHeader(table.Row{"Recorded", "Platform", "Workflow", "Client", "Model", "Tokens", "Cents"})

	var total float64
	for _, e := range entries {
		total += e.CostCents
		t.AppendRow(table.Row{
			formatTime(e.RecordedAt),
			e.Platform,
			e.Workflow,
			orDash(e.ClientID),
			orDash(e.Model),
			formatTokens(e),
			formatCents(e.CostCents),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("%d calls", len(entries)), formatCents(total)})
	return t.Render(), nil
}

// FormatCostTotals renders per-platform spend.
func (f *TableFormatter) FormatCostTotals(totals []core.CostTotal) (string, error) {
	t := newTable()
	t.AppendHeader(table.Row{"Platform", "Calls", "Cents"})

	var (
		calls int64
		cents float64
	)
	for _, total := range totals {
		calls += total.Calls
		cents += total.CostCents
		t.AppendRow(table.Row{total.Platform, total.Calls, formatCents(total.CostCents)})
	}

	t.AppendFooter(table.Row{"total", calls, formatCents(cents)})
	return t.Render(), nil
}

// FormatLimits renders each platform's budget and live admission state.
func (f *TableFormatter) FormatLimits(snapshots []core.LimiterSnapshot) (string, error) {
	t := newTable()
	t.AppendHeader(table.Row{"Platform", "Concurrent", "Per Second", "Burst", "Deadline", "In Flight", "Queued"})

	for _, s := range snapshots {
		t.AppendRow(table.Row{
			s.Key,
			s.Limit.MaxConcurrent,
			fmt.Sprintf("%.2f", s.Limit.PerSecond),
			s.Limit.Burst,
			formatDeadline(s.Limit.Deadline),
			s.InFlight,
			s.Queued,
		})
	}
	return t.Render(), nil
}

// newTable keeps footers in their original case; headers stay upper-cased.
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	return t
}
