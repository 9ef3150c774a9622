package metrics

import (
	"time"

	"github.com/adpilot/adpilot/internal/observability"
)

// Service-level metric names
const (
	CommandsTotal       = "adpilot_commands_total"
	HealthCheckTotal    = "health_check_total"
	HealthCheckDuration = "health_check_duration_ms"
	ServerStartTime     = "server_start_time_seconds"
)

// RecordCommand records the outcome of one CLI or API workflow such as
// "abtest.run" or "client.set".
func RecordCommand(command string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CommandsTotal,
			1,
			map[string]string{
				"command": command,
				"status":  status,
			},
		)
	}
}

// RecordHealthCheck records one checker run. status is healthy, degraded,
// unhealthy or timeout.
func RecordHealthCheck(checkName string, status string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		HealthCheckTotal,
		1,
		map[string]string{
			"check":  checkName,
			"status": status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		HealthCheckDuration,
		duration,
		map[string]string{
			"check": checkName,
		},
	)
}

// SetServerStartTime records when serve began accepting requests.
func SetServerStartTime(started time.Time) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(started.Unix()),
			nil,
		)
	}
}
