package observability

import (
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug":     "DEBUG",
		" WARNING ": "WARN",
		"warn":      "WARN",
		"Error":     "ERROR",
		"trace":     "TRACE",
		"":          "INFO",
		"verbose":   "INFO",
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseLogLevel(input), "level %q", input)
	}
}

func TestInitLoggers(t *testing.T) {
	origCLI, origServer := CLILogger, ServerLogger
	t.Cleanup(func() { CLILogger, ServerLogger = origCLI, origServer })

	InitCLILogger("adpilot-test", true)
	require.NotNil(t, CLILogger)
	CLILogger.Debug("cli logger ready", zap.String("mode", "verbose"))

	ServerLogger = nil
	assert.Same(t, CLILogger, Logger())

	InitServerLogger("adpilot-test", "debug", "adpilot")
	require.NotNil(t, ServerLogger)
	assert.Same(t, ServerLogger, Logger())
	ServerLogger.Info("server logger ready", zap.String("platform", "meta"))
}

func TestServerLoggerConfig(t *testing.T) {
	cfg := serverLoggerConfig("adpilot", "warn", "agency")
	assert.Equal(t, logging.ProfileStructured, cfg.Profile)
	assert.Equal(t, "WARN", cfg.DefaultLevel)
	assert.Equal(t, "agency", cfg.StaticFields["namespace"])
	assert.Equal(t, "api", cfg.StaticFields["component"])
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "json", cfg.Sinks[0].Format)

	cfg = serverLoggerConfig("adpilot", "info")
	_, hasNamespace := cfg.StaticFields["namespace"]
	assert.False(t, hasNamespace)
}

func TestLoggerFallback(t *testing.T) {
	origCLI, origServer := CLILogger, ServerLogger
	t.Cleanup(func() { CLILogger, ServerLogger = origCLI, origServer })

	CLILogger, ServerLogger = nil, nil
	first := Logger()
	require.NotNil(t, first)
	assert.Same(t, first, Logger())
}

func TestResolvePort(t *testing.T) {
	port, err := resolvePort("[::]:9191")
	require.NoError(t, err)
	assert.Equal(t, 9191, port)

	_, err = resolvePort("no-port")
	assert.Error(t, err)
}

func TestInitAndStopMetrics(t *testing.T) {
	if err := InitMetrics("adpilot-test", 0, "adpilot"); err != nil {
		if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) ||
			strings.Contains(strings.ToLower(err.Error()), "not permitted") {
			t.Skipf("skipping metrics exporter test: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = StopMetrics() })

	require.NotNil(t, TelemetrySystem)
	require.NotNil(t, PrometheusExporter)
	assert.NotZero(t, GetMetricsPort())

	require.NoError(t, StopMetrics())
	assert.Nil(t, TelemetrySystem)
	assert.Nil(t, PrometheusExporter)
	assert.Zero(t, GetMetricsPort())
}
