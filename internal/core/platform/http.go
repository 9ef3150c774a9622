package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adpilot/adpilot/internal/ailink/driver"
	"github.com/adpilot/adpilot/internal/core"
)

const (
	defaultLookbackDays = 7
	maxPages            = 20
)

// number decodes values that platforms send either as JSON numbers or strings.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" || raw == "-" {
		*n = 0
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", raw, err)
	}
	*n = number(value)
	return nil
}

func httpClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// doJSON sends req and decodes a 2xx body into out. Other statuses become a
// ProviderError carrying the status and Retry-After hint.
func doJSON(client *http.Client, req *http.Request, provider string, now time.Time, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient(client).Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", provider, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return driver.NewProviderError(provider, resp, body, now)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", provider, err)
	}
	return nil
}

func newJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// derive fills CPA from spend and conversions, and ROAS from conversion value
// when the platform did not report it.
func derive(v core.MetricVariant, conversionValue float64) core.MetricVariant {
	if v.Conversions > 0 && v.CPA == 0 {
		v.CPA = v.Spend / float64(v.Conversions)
	}
	if v.ROAS == 0 && v.Spend > 0 && conversionValue > 0 {
		v.ROAS = conversionValue / v.Spend
	}
	return v
}

func lookbackWindow(now time.Time, days int) (time.Time, time.Time) {
	if days <= 0 {
		days = defaultLookbackDays
	}
	until := now.UTC().Truncate(24 * time.Hour)
	return until.AddDate(0, 0, -days), until
}

func requireCampaign(campaignID string) (string, error) {
	id := strings.TrimSpace(campaignID)
	if id == "" {
		return "", fmt.Errorf("campaign id is required")
	}
	return id, nil
}

func clockNow(clock func() time.Time) time.Time {
	if clock != nil {
		return clock()
	}
	return time.Now().UTC()
}
