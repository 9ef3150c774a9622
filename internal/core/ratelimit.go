package core

import "time"

// PlatformLimit is the shared budget for one platform key.
type PlatformLimit struct {
	MaxConcurrent int           `json:"max_concurrent"`
	PerSecond     float64       `json:"per_second"`
	Burst         int           `json:"burst"`
	Deadline      time.Duration `json:"deadline,omitempty"`
}

// LimiterSnapshot reports the live admission state for a platform key.
type LimiterSnapshot struct {
	Key      string        `json:"key"`
	Limit    PlatformLimit `json:"limit"`
	InFlight int           `json:"in_flight"`
	Queued   int           `json:"queued"`
}
