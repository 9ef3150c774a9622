package core

import "time"

// CostRecord describes one successful external call to be charged.
// CostCentsOverride, when set, replaces the priced amount.
type CostRecord struct {
	Platform          string   `json:"platform"`
	Model             string   `json:"model,omitempty"`
	Workflow          string   `json:"workflow"`
	ClientID          string   `json:"client_id,omitempty"`
	InputTokens       int      `json:"input_tokens,omitempty"`
	OutputTokens      int      `json:"output_tokens,omitempty"`
	CostCentsOverride *float64 `json:"cost_cents_override,omitempty"`
}

// CostEntry is a priced CostRecord as stored in the ledger.
type CostEntry struct {
	ID           string    `json:"id"`
	Platform     string    `json:"platform"`
	Model        string    `json:"model,omitempty"`
	Workflow     string    `json:"workflow"`
	ClientID     string    `json:"client_id,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostCents    float64   `json:"cost_cents"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// CostQuery filters ledger listings. Zero values match everything.
type CostQuery struct {
	ClientID string
	Platform string
	Since    time.Time
	Limit    int
}

// CostTotal aggregates ledger rows per platform.
type CostTotal struct {
	Platform  string  `json:"platform"`
	Calls     int64   `json:"calls"`
	CostCents float64 `json:"cost_cents"`
}
