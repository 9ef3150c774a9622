package metrics

import (
	"strconv"
	"time"

	"github.com/adpilot/adpilot/internal/observability"
)

// Executor and domain metric names
const (
	ExecutorCallsTotal     = "executor_calls_total"
	ExecutorAttemptsTotal  = "executor_attempts_total"
	ExecutorRetriesTotal   = "executor_retries_total"
	ExecutorQueueWait      = "executor_queue_wait_ms"
	ExecutorInFlight       = "executor_inflight"
	ABTestEvaluationsTotal = "abtest_evaluations_total"
	CostCentsTotal         = "cost_cents_total"
)

// RecordCall records the final outcome of one executor call.
func RecordCall(platform string, outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ExecutorCallsTotal,
			1,
			map[string]string{
				"platform": platform,
				"outcome":  outcome,
			},
		)
	}
}

// RecordAttempt records a single invocation of an external operation.
func RecordAttempt(platform string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ExecutorAttemptsTotal,
			1,
			map[string]string{"platform": platform},
		)
	}
}

// RecordRetry records a scheduled retry.
func RecordRetry(platform string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ExecutorRetriesTotal,
			1,
			map[string]string{"platform": platform},
		)
	}
}

// RecordQueueWait records how long a call waited for admission.
func RecordQueueWait(platform string, wait time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			ExecutorQueueWait,
			wait,
			map[string]string{"platform": platform},
		)
	}
}

// SetInFlight reports admitted calls currently running for platform.
func SetInFlight(platform string, count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ExecutorInFlight,
			float64(count),
			map[string]string{"platform": platform},
		)
	}
}

// RecordEvaluation records one A/B test verdict.
func RecordEvaluation(kpi string, significant bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ABTestEvaluationsTotal,
			1,
			map[string]string{
				"kpi":         kpi,
				"significant": strconv.FormatBool(significant),
			},
		)
	}
}

// RecordCost adds the cost of one external call, in cents.
func RecordCost(platform string, cents float64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CostCentsTotal,
			cents,
			map[string]string{"platform": platform},
		)
	}
}
