package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adpilot/adpilot/internal/core"
)

func verdictStatus(v core.TestVerdict) string {
	if v.Significant {
		return "significant"
	}
	return "not significant"
}

func verdictTitle(record *core.VerdictRecord) string {
	parts := make([]string, 0, 3)
	if record.ClientID != "" {
		parts = append(parts, record.ClientID)
	}
	if record.Platform != "" {
		parts = append(parts, record.Platform)
	}
	if record.CampaignID != "" {
		parts = append(parts, record.CampaignID)
	}
	if len(parts) == 0 {
		return "A/B test"
	}
	return strings.Join(parts, " / ")
}

// variantRole marks the winner and loser of a significant verdict.
func variantRole(v core.TestVerdict, name string) string {
	switch {
	case !v.Significant:
		return ""
	case name == v.Winner():
		return "winner"
	case name == v.Loser():
		return "loser"
	default:
		return ""
	}
}

func formatPct(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64) + "%"
}

func formatScore(kpi core.KPI, score float64) string {
	// CPA ranks on the negated value.
	if kpi == core.KPICPA {
		score = -score
	}
	return strconv.FormatFloat(score, 'f', 2, 64)
}

func formatCents(cents float64) string {
	return fmt.Sprintf("%.4f", cents)
}

func formatTokens(entry core.CostEntry) string {
	if entry.InputTokens == 0 && entry.OutputTokens == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", entry.InputTokens, entry.OutputTokens)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDeadline(d time.Duration) string {
	if d <= 0 {
		return "default"
	}
	return d.String()
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
