package ailink

import "time"

// Config defines the AI provider used for client-facing summaries.
type Config struct {
	Enabled   bool          `mapstructure:"enabled"`
	Provider  string        `mapstructure:"provider"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// Deadline bounds the whole retried call. Zero uses the platform limit.
	Deadline time.Duration `mapstructure:"deadline"`
}
