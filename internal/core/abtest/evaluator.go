// Package abtest decides whether an ad variant has beaten its siblings.
//
// The verdict is a conservative heuristic tuned for small marketing samples.
// It is not a frequentist or Bayesian significance test and the thresholds
// below are relied on elsewhere, so they are kept exactly as they are.
package abtest

import (
	"math"
	"sort"

	"github.com/adpilot/adpilot/internal/core"
)

const (
	// MinImpressions must be met by every variant before a verdict is trusted.
	MinImpressions = 1000
	// MinConversions must be met by at least one variant.
	MinConversions = 10
	// MinConfidencePct and MinImprovementPct gate significance.
	MinConfidencePct  = 90.0
	MinImprovementPct = 10.0

	maxConfidencePct = 95.0

	// ReasonInsufficientData is reported when the data gate fails.
	ReasonInsufficientData = "insufficient data"
	// ReasonTooFewVariants is reported when fewer than two variants are given.
	ReasonTooFewVariants = "at least two variants required"
)

// Score returns the variant's value under kpi. Higher is always better.
func Score(variant core.MetricVariant, kpi core.KPI) float64 {
	switch kpi {
	case core.KPIROAS:
		return variant.ROAS
	case core.KPICPA:
		return -variant.CPA
	default:
		return float64(variant.Conversions)
	}
}

// Rank scores variants under kpi and sorts them best first. Equal scores keep
// their input order.
func Rank(variants []core.MetricVariant, kpi core.KPI) []core.RankedVariant {
	ranked := make([]core.RankedVariant, 0, len(variants))
	for _, variant := range variants {
		ranked = append(ranked, core.RankedVariant{Name: variant.Name, Score: Score(variant, kpi)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Evaluate compares variants under primaryKPI and returns a verdict. It never
// fails: missing or thin data produces a non-significant verdict with a reason.
func Evaluate(variants []core.MetricVariant, primaryKPI string) core.TestVerdict {
	kpi := core.ParseKPI(primaryKPI)
	verdict := core.TestVerdict{KPI: kpi}

	if len(variants) < 2 {
		verdict.Reason = ReasonTooFewVariants
		return verdict
	}

	ranked := Rank(variants, kpi)
	verdict.Ranked = ranked

	if !hasEnoughData(variants) {
		verdict.Reason = ReasonInsufficientData
		return verdict
	}

	best, second := ranked[0], ranked[1]
	improvement := improvementPct(best.Score, second.Score)

	var totalConversions int64
	for _, variant := range variants {
		totalConversions += variant.Conversions
	}
	confidence := math.Min(maxConfidencePct,
		50+float64(totalConversions)*0.5+math.Abs(improvement)*0.5)

	verdict.ImprovementPct = improvement
	verdict.ConfidencePct = confidence
	verdict.Significant = confidence >= MinConfidencePct && math.Abs(improvement) >= MinImprovementPct

	if verdict.Significant {
		winner := best.Name
		// Improvement compares the top two; the loser is the bottom of the ranking.
		loser := ranked[len(ranked)-1].Name
		verdict.WinnerName = &winner
		verdict.LoserName = &loser
	}
	return verdict
}

func hasEnoughData(variants []core.MetricVariant) bool {
	anyConverted := false
	for _, variant := range variants {
		if variant.Impressions < MinImpressions {
			return false
		}
		if variant.Conversions >= MinConversions {
			anyConverted = true
		}
	}
	return anyConverted
}

// improvementPct is the signed change of best over second. A zero baseline
// counts as a 100% improvement.
func improvementPct(best, second float64) float64 {
	if second == 0 {
		if best == 0 {
			return 0
		}
		return 100
	}
	return (best - second) / math.Abs(second) * 100
}
