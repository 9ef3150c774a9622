package ailink

import "github.com/adpilot/adpilot/internal/core"

// SummaryRequest asks for a client-facing explanation of a verdict.
type SummaryRequest struct {
	ClientID   string
	ClientName string
	Platform   string
	CampaignID string
	Verdict    core.TestVerdict
}

// Summary is the generated text plus the usage it cost.
type Summary struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// SummaryError captures an ailink failure without breaking the command.
type SummaryError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *SummaryError) Error() string {
	if e == nil {
		return "summary failed"
	}
	if e.Details != "" {
		return e.Code + ": " + e.Message + ": " + e.Details
	}
	return e.Code + ": " + e.Message
}

func (e *SummaryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
