package core

import "time"

// KPI identifies the metric used to rank A/B test variants.
type KPI string

const (
	KPIConversions KPI = "conversions"
	KPIROAS        KPI = "roas"
	KPICPA         KPI = "cpa"
)

// ParseKPI normalizes a configured KPI. Unknown values fall back to conversions.
func ParseKPI(value string) KPI {
	switch KPI(normalize(value)) {
	case KPIROAS:
		return KPIROAS
	case KPICPA:
		return KPICPA
	default:
		return KPIConversions
	}
}

// MetricVariant is one arm of an A/B comparison, built from a fresh performance snapshot.
type MetricVariant struct {
	Name        string  `json:"name" yaml:"name"`
	Impressions int64   `json:"impressions" yaml:"impressions"`
	Clicks      int64   `json:"clicks" yaml:"clicks"`
	Conversions int64   `json:"conversions" yaml:"conversions"`
	Spend       float64 `json:"spend" yaml:"spend"`
	ROAS        float64 `json:"roas" yaml:"roas"`
	CPA         float64 `json:"cpa" yaml:"cpa"`
}

// RankedVariant is a variant name paired with its KPI score.
type RankedVariant struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// TestVerdict is the outcome of evaluating a set of variants.
type TestVerdict struct {
	Significant    bool            `json:"significant"`
	WinnerName     *string         `json:"winner_name,omitempty"`
	LoserName      *string         `json:"loser_name,omitempty"`
	ConfidencePct  float64         `json:"confidence_pct"`
	ImprovementPct float64         `json:"improvement_pct"`
	KPI            KPI             `json:"kpi"`
	Reason         string          `json:"reason,omitempty"`
	Ranked         []RankedVariant `json:"ranked,omitempty"`
}

// Winner returns the winner name or an empty string.
func (v TestVerdict) Winner() string {
	if v.WinnerName == nil {
		return ""
	}
	return *v.WinnerName
}

// Loser returns the loser name or an empty string.
func (v TestVerdict) Loser() string {
	if v.LoserName == nil {
		return ""
	}
	return *v.LoserName
}

// Client is an agency client with its configured primary KPI.
type Client struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PrimaryKPI KPI       `json:"primary_kpi"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VerdictRecord is a persisted A/B test outcome.
type VerdictRecord struct {
	ID          string      `json:"id"`
	ClientID    string      `json:"client_id"`
	Platform    string      `json:"platform"`
	CampaignID  string      `json:"campaign_id"`
	Verdict     TestVerdict `json:"verdict"`
	Summary     string      `json:"summary,omitempty"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}
