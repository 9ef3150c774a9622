// Package cost prices successful external calls and records them in the ledger.
package cost

import (
	"github.com/adpilot/adpilot/internal/core"
)

// ModelPrice is expressed in cents per million tokens.
type ModelPrice struct {
	InputPerMTok  float64 `mapstructure:"input_per_mtok" json:"input_per_mtok"`
	OutputPerMTok float64 `mapstructure:"output_per_mtok" json:"output_per_mtok"`
}

// Pricing converts usage into cents.
type Pricing struct {
	Models    map[string]ModelPrice
	Platforms map[string]float64
}

// DefaultPricing covers the models and ad APIs adpilot calls out of the box.
func DefaultPricing() Pricing {
	return Pricing{
		Models: map[string]ModelPrice{
			"claude-sonnet-4-5": {InputPerMTok: 300, OutputPerMTok: 1500},
			"claude-haiku-4-5":  {InputPerMTok: 100, OutputPerMTok: 500},
		},
		Platforms: map[string]float64{
			"meta":       0,
			"google_ads": 0,
			"tiktok":     0,
		},
	}
}

// Merge overlays other onto p. Entries in other win.
func (p Pricing) Merge(other Pricing) Pricing {
	out := Pricing{
		Models:    make(map[string]ModelPrice, len(p.Models)+len(other.Models)),
		Platforms: make(map[string]float64, len(p.Platforms)+len(other.Platforms)),
	}
	for k, v := range p.Models {
		out.Models[k] = v
	}
	for k, v := range other.Models {
		out.Models[core.NormalizeKey(k)] = v
	}
	for k, v := range p.Platforms {
		out.Platforms[k] = v
	}
	for k, v := range other.Platforms {
		out.Platforms[core.NormalizeKey(k)] = v
	}
	return out
}

// Cents prices a record. An override wins, then model token prices, then the
// platform's flat per-call price.
func (p Pricing) Cents(record core.CostRecord) float64 {
	if record.CostCentsOverride != nil {
		return *record.CostCentsOverride
	}
	if model := core.NormalizeKey(record.Model); model != "" {
		if price, ok := p.Models[model]; ok {
			return float64(record.InputTokens)*price.InputPerMTok/1e6 +
				float64(record.OutputTokens)*price.OutputPerMTok/1e6
		}
	}
	return p.Platforms[core.NormalizeKey(record.Platform)]
}
