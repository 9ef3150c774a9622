package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adpilot/adpilot/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders command results.
type Formatter interface {
	FormatVerdict(record *core.VerdictRecord) (string, error)
	FormatCosts(entries []core.CostEntry) (string, error)
	FormatCostTotals(totals []core.CostTotal) (string, error)
	FormatLimits(snapshots []core.LimiterSnapshot) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// FormatVerdictList renders verdict history using the requested format.
func FormatVerdictList(format Format, records []core.VerdictRecord) (string, error) {
	if format == FormatJSON {
		if records == nil {
			records = []core.VerdictRecord{}
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	formatter := NewFormatter(format)
	rendered := make([]string, 0, len(records))
	for i := range records {
		value, err := formatter.FormatVerdict(&records[i])
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		rendered = append(rendered, value)
	}

	return strings.Join(rendered, "\n\n"), nil
}
