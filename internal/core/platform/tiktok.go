package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adpilot/adpilot/internal/ailink/driver"
	"github.com/adpilot/adpilot/internal/core"
)

const (
	tiktokDefaultBaseURL = "https://business-api.tiktok.com"
	tiktokReportPath     = "/open_api/v1.3/report/integrated/get/"
	tiktokPageSize       = 200

	// TikTok answers 200 with a business code; these map onto HTTP semantics.
	tiktokCodeRateLimited = 40100
	tiktokCodeAuthFailed  = 40105
)

var tiktokMetrics = []string{"adgroup_name", "impressions", "clicks", "spend", "conversion", "complete_payment_roas"}

// TikTokClient reads ad group reports from the TikTok Business API.
type TikTokClient struct {
	BaseURL      string
	AccessToken  string
	AdvertiserID string
	LookbackDays int
	Client       *http.Client
	Clock        func() time.Time
}

type tiktokReportResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		List []struct {
			Dimensions struct {
				AdgroupID string `json:"adgroup_id"`
			} `json:"dimensions"`
			Metrics struct {
				AdgroupName string `json:"adgroup_name"`
				Impressions number `json:"impressions"`
				Clicks      number `json:"clicks"`
				Spend       number `json:"spend"`
				Conversion  number `json:"conversion"`
				ROAS        number `json:"complete_payment_roas"`
			} `json:"metrics"`
		} `json:"list"`
		PageInfo struct {
			Page      int `json:"page"`
			TotalPage int `json:"total_page"`
		} `json:"page_info"`
	} `json:"data"`
}

// Platform returns the limiter key.
func (c *TikTokClient) Platform() string {
	return TikTok
}

// Fetch returns one variant per ad group of the campaign.
func (c *TikTokClient) Fetch(ctx context.Context, campaignID string) ([]core.MetricVariant, error) {
	if c == nil || strings.TrimSpace(c.AccessToken) == "" || strings.TrimSpace(c.AdvertiserID) == "" {
		return nil, errors.New("tiktok client is not configured")
	}
	id, err := requireCampaign(campaignID)
	if err != nil {
		return nil, err
	}

	now := clockNow(c.Clock)
	var variants []core.MetricVariant
	for page := 1; page <= maxPages; page++ {
		reportURL, err := c.reportURL(id, now, page)
		if err != nil {
			return nil, err
		}
		req, err := newJSONRequest(ctx, http.MethodGet, reportURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Access-Token", c.AccessToken)

		var parsed tiktokReportResponse
		if err := doJSON(c.Client, req, TikTok, now, &parsed); err != nil {
			return nil, err
		}
		if parsed.Code != 0 {
			return nil, tiktokError(parsed.Code, parsed.Message)
		}

		for _, row := range parsed.Data.List {
			name := row.Metrics.AdgroupName
			if name == "" {
				name = row.Dimensions.AdgroupID
			}
			variant := core.MetricVariant{
				Name:        name,
				Impressions: int64(row.Metrics.Impressions),
				Clicks:      int64(row.Metrics.Clicks),
				Spend:       float64(row.Metrics.Spend),
				Conversions: int64(row.Metrics.Conversion),
				ROAS:        float64(row.Metrics.ROAS),
			}
			variants = append(variants, derive(variant, 0))
		}

		if parsed.Data.PageInfo.TotalPage <= page {
			break
		}
	}
	return variants, nil
}

func (c *TikTokClient) reportURL(campaignID string, now time.Time, page int) (string, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = tiktokDefaultBaseURL
	}

	metrics, err := json.Marshal(tiktokMetrics)
	if err != nil {
		return "", err
	}
	campaignFilter, err := json.Marshal([]string{campaignID})
	if err != nil {
		return "", err
	}
	filtering, err := json.Marshal([]map[string]string{{
		"field_name":   "campaign_ids",
		"filter_type":  "IN",
		"filter_value": string(campaignFilter),
	}})
	if err != nil {
		return "", err
	}

	since, until := lookbackWindow(now, c.LookbackDays)
	query := url.Values{}
	query.Set("advertiser_id", c.AdvertiserID)
	query.Set("report_type", "BASIC")
	query.Set("data_level", "AUCTION_ADGROUP")
	query.Set("dimensions", `["adgroup_id"]`)
	query.Set("metrics", string(metrics))
	query.Set("filtering", string(filtering))
	query.Set("start_date", since.Format(time.DateOnly))
	query.Set("end_date", until.Format(time.DateOnly))
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(tiktokPageSize))
	return base + tiktokReportPath + "?" + query.Encode(), nil
}

func tiktokError(code int, message string) error {
	status := http.StatusBadRequest
	switch code {
	case tiktokCodeRateLimited:
		status = http.StatusTooManyRequests
	case tiktokCodeAuthFailed:
		status = http.StatusUnauthorized
	default:
		if code >= 50000 {
			status = http.StatusServiceUnavailable
		}
	}
	return &driver.ProviderError{
		Provider:   TikTok,
		StatusCode: status,
		Message:    fmt.Sprintf("code %d: %s", code, strings.TrimSpace(message)),
	}
}
