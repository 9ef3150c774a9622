package abtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/core"
)

func TestEvaluateRequiresTwoVariants(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{{Name: "A", Impressions: 5000, Conversions: 100}}, "conversions")
	assert.False(t, verdict.Significant)
	assert.Equal(t, ReasonTooFewVariants, verdict.Reason)
	assert.Nil(t, verdict.WinnerName)

	verdict = Evaluate(nil, "roas")
	assert.False(t, verdict.Significant)
}

func TestEvaluateImpressionFloor(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{
		{Name: "A", Impressions: 500, Conversions: 50, ROAS: 9.0},
		{Name: "B", Impressions: 2000, Conversions: 50, ROAS: 1.0},
	}, "roas")

	assert.False(t, verdict.Significant)
	assert.Equal(t, ReasonInsufficientData, verdict.Reason)
	assert.Nil(t, verdict.WinnerName)
	assert.Zero(t, verdict.ConfidencePct)
	require.Len(t, verdict.Ranked, 2)
	assert.Equal(t, "A", verdict.Ranked[0].Name)
}

func TestEvaluateConversionFloor(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{
		{Name: "A", Impressions: 1200, Conversions: 5},
		{Name: "B", Impressions: 1200, Conversions: 5},
	}, "conversions")

	assert.False(t, verdict.Significant)
	assert.Equal(t, ReasonInsufficientData, verdict.Reason)
}

func TestEvaluateSignificantROAS(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{
		{Name: "B", Impressions: 1600, Conversions: 35, ROAS: 3.0},
		{Name: "A", Impressions: 1500, Conversions: 40, ROAS: 4.5},
	}, "roas")

	require.True(t, verdict.Significant)
	assert.Equal(t, core.KPIROAS, verdict.KPI)
	assert.InDelta(t, 50.0, verdict.ImprovementPct, 1e-9)
	assert.InDelta(t, 95.0, verdict.ConfidencePct, 1e-9)
	assert.Equal(t, "A", verdict.Winner())
	assert.Equal(t, "B", verdict.Loser())
	assert.Empty(t, verdict.Reason)
	assert.Equal(t, []core.RankedVariant{{Name: "A", Score: 4.5}, {Name: "B", Score: 3.0}}, verdict.Ranked)
}

func TestEvaluateCPALowerWins(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{
		{Name: "B", Impressions: 3000, Conversions: 30, CPA: 35},
		{Name: "A", Impressions: 3000, Conversions: 40, CPA: 20},
	}, "cpa")

	assert.Equal(t, "A", verdict.Ranked[0].Name)
	assert.Equal(t, -20.0, verdict.Ranked[0].Score)
	// (-20 - -35) / 35 * 100
	assert.InDelta(t, 42.857142857, verdict.ImprovementPct, 1e-6)
	require.True(t, verdict.Significant)
	assert.Equal(t, "A", verdict.Winner())
}

func TestEvaluateTieNeverSignificant(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{
		{Name: "A", Impressions: 100000, Conversions: 500, ROAS: 2.5},
		{Name: "B", Impressions: 100000, Conversions: 400, ROAS: 2.5},
	}, "roas")

	assert.False(t, verdict.Significant)
	assert.Zero(t, verdict.ImprovementPct)
	assert.InDelta(t, 95.0, verdict.ConfidencePct, 1e-9)
	assert.Nil(t, verdict.WinnerName)
	assert.Nil(t, verdict.LoserName)
}

func TestEvaluateZeroBaseline(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{
		{Name: "A", Impressions: 2000, Conversions: 12},
		{Name: "B", Impressions: 2000, Conversions: 0},
	}, "conversions")

	assert.InDelta(t, 100.0, verdict.ImprovementPct, 1e-9)
	// 50 + 12*0.5 + 100*0.5 capped at 95
	assert.InDelta(t, 95.0, verdict.ConfidencePct, 1e-9)
	assert.True(t, verdict.Significant)
}

func TestEvaluateLowConfidence(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{
		{Name: "A", Impressions: 2000, Conversions: 12},
		{Name: "B", Impressions: 2000, Conversions: 10},
	}, "conversions")

	// improvement 20, confidence 50 + 11 + 10 = 71
	assert.InDelta(t, 20.0, verdict.ImprovementPct, 1e-9)
	assert.InDelta(t, 71.0, verdict.ConfidencePct, 1e-9)
	assert.False(t, verdict.Significant)
	assert.Nil(t, verdict.WinnerName)
}

func TestEvaluateSmallImprovement(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{
		{Name: "A", Impressions: 50000, Conversions: 105},
		{Name: "B", Impressions: 50000, Conversions: 100},
	}, "conversions")

	assert.InDelta(t, 5.0, verdict.ImprovementPct, 1e-9)
	assert.InDelta(t, 95.0, verdict.ConfidencePct, 1e-9)
	assert.False(t, verdict.Significant)
}

func TestEvaluateLoserIsLastRanked(t *testing.T) {
	verdict := Evaluate([]core.MetricVariant{
		{Name: "mid", Impressions: 2000, Conversions: 30},
		{Name: "top", Impressions: 2000, Conversions: 60},
		{Name: "low", Impressions: 2000, Conversions: 10},
	}, "")

	require.True(t, verdict.Significant)
	assert.Equal(t, core.KPIConversions, verdict.KPI)
	assert.Equal(t, "top", verdict.Winner())
	assert.Equal(t, "low", verdict.Loser())
}

func TestUnknownKPIUsesConversions(t *testing.T) {
	variant := core.MetricVariant{Conversions: 7, ROAS: 3, CPA: 4}
	assert.Equal(t, 7.0, Score(variant, core.ParseKPI("ctr")))
	assert.Equal(t, 3.0, Score(variant, core.ParseKPI("ROAS")))
	assert.Equal(t, -4.0, Score(variant, core.ParseKPI(" cpa ")))
}
