package output

import (
	"encoding/json"

	"github.com/adpilot/adpilot/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatVerdict renders a verdict record as JSON.
func (f *JSONFormatter) FormatVerdict(record *core.VerdictRecord) (string, error) {
	if record == nil {
		return "", nil
	}
	return f.marshal(record)
}

// FormatCosts renders ledger entries as a JSON array.
func (f *JSONFormatter) FormatCosts(entries []core.CostEntry) (string, error) {
	if entries == nil {
		entries = []core.CostEntry{}
	}
	return f.marshal(entries)
}

// FormatCostTotals renders per-platform totals as a JSON array.
func (f *JSONFormatter) FormatCostTotals(totals []core.CostTotal) (string, error) {
	if totals == nil {
		totals = []core.CostTotal{}
	}
	return f.marshal(totals)
}

// FormatLimits renders limiter snapshots as a JSON array.
func (f *JSONFormatter) FormatLimits(snapshots []core.LimiterSnapshot) (string, error) {
	if snapshots == nil {
		snapshots = []core.LimiterSnapshot{}
	}
	return f.marshal(snapshots)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
