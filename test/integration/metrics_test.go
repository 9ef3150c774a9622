package integration

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/observability"
	"github.com/adpilot/adpilot/internal/server"
	"github.com/adpilot/adpilot/internal/server/handlers"
)

const significantTest = `{
  "kpi": "conversion_rate",
  "variants": [
    {"name": "A", "impressions": 20000, "clicks": 900, "conversions": 400},
    {"name": "B", "impressions": 20000, "clicks": 700, "conversions": 250}
  ]
}`

// sandboxDenied reports socket errors from sandboxes that forbid loopback
// binds, so the suite skips instead of failing.
func sandboxDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

func startExporter(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if sandboxDenied(err) {
			t.Skipf("metrics exporter cannot bind: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = observability.StopMetrics() })
}

// startAPI serves the real router on an IPv4 loopback listener.
func startAPI(t *testing.T, opts server.Options) (string, *http.Client) {
	t.Helper()

	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info")
	handlers.InitHealthManager("test")

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if sandboxDenied(err) {
			t.Skipf("api listener cannot bind: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: server.New("127.0.0.1", 0, opts).Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts.URL, ts.Client()
}

func scrape(t *testing.T, client *http.Client, baseURL string) (*http.Response, string) {
	t.Helper()

	resp, err := client.Get(baseURL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	return resp, string(body)
}

func TestMetricsReflectAPITraffic(t *testing.T) {
	startExporter(t)
	limiter := engine.NewLimiter()
	baseURL, client := startAPI(t, server.Options{Limits: limiter})

	const requests = 40
	jobs := make(chan int, requests)
	for i := 0; i < requests; i++ {
		jobs <- i
	}
	close(jobs)

	started := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				var resp *http.Response
				var err error
				switch n % 4 {
				case 0:
					resp, err = client.Post(baseURL+"/v1/abtests/evaluate", "application/json", strings.NewReader(significantTest))
				case 1:
					resp, err = client.Get(baseURL + "/v1/limits")
				case 2:
					resp, err = client.Get(baseURL + "/health")
				default:
					resp, err = client.Get(baseURL + "/no-such-route")
				}
				if err == nil {
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(started)

	resp, body := scrape(t, client, baseURL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "test_http_requests_total")
	assert.Contains(t, body, "test_http_request_duration_ms")
	assert.Contains(t, body, "test_abtest_evaluations_total")
	assert.Less(t, elapsed, 5*time.Second)
	t.Logf("%d requests in %v", requests, elapsed)
}

func TestMetricsUsePrometheusTextFormat(t *testing.T) {
	startExporter(t)
	baseURL, client := startAPI(t, server.Options{})

	resp, err := client.Get(baseURL + "/version")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := scrape(t, client, baseURL)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain; version=0.0.4"),
		"unexpected content type %q", resp.Header.Get("Content-Type"))

	samples := 0
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		require.GreaterOrEqual(t, len(strings.Fields(line)), 2, "malformed sample %q", line)
		samples++
	}
	assert.Greater(t, samples, 0)
}

func TestMetricsUnavailableWhenDisabled(t *testing.T) {
	require.NoError(t, observability.StopMetrics())
	viper.Set("metrics.enabled", false)
	t.Cleanup(func() { viper.Set("metrics.enabled", true) })

	baseURL, client := startAPI(t, server.Options{})

	resp, err := client.Get(baseURL + "/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = scrape(t, client, baseURL)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
