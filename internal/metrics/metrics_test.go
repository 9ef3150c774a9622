package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/observability"
)

func withCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func TestExecutorMetricsEmit(t *testing.T) {
	collector := withCollector(t)

	RecordAttempt("meta")
	RecordRetry("meta")
	RecordQueueWait("meta", 15*time.Millisecond)
	SetInFlight("meta", 2)
	RecordCall("meta", "success")
	RecordEvaluation("roas", true)
	RecordCost("anthropic", 0.42)

	for _, name := range []string{
		ExecutorAttemptsTotal,
		ExecutorRetriesTotal,
		ExecutorQueueWait,
		ExecutorInFlight,
		ExecutorCallsTotal,
		ABTestEvaluationsTotal,
		CostCentsTotal,
	} {
		assert.Equal(t, 1, collector.CountMetricsByName(name), name)
	}
}

func TestServiceAndErrorMetricsEmit(t *testing.T) {
	collector := withCollector(t)

	RecordCommand("abtest.run", nil)
	RecordCommand("abtest.run", errors.New("fetch failed"))
	RecordHealthCheck("store", "healthy", time.Millisecond)
	SetServerStartTime(time.Now())
	RecordError("TIMEOUT", 504)
	RecordErrorByEndpoint("/v1/abtests/evaluate", "TIMEOUT")
	RecordPanic()

	assert.Equal(t, 2, collector.CountMetricsByName(CommandsTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(HealthCheckTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(HealthCheckDuration))
	assert.Equal(t, 1, collector.CountMetricsByName(ServerStartTime))
	assert.Equal(t, 1, collector.CountMetricsByName(ErrorsTotalName))
	assert.Equal(t, 1, collector.CountMetricsByName(ErrorsByEndpointName))
	assert.Equal(t, 1, collector.CountMetricsByName(PanicsTotalName))
}

func TestMetricsNoopWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordCall("tiktok", "timeout")
		RecordCost("tiktok", 1)
		RecordPanic()
		RecordHealthCheck("executor", "degraded", time.Second)
	})
}
