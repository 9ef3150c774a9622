package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adpilot/adpilot/internal/core"
)

const (
	googleAdsDefaultBaseURL = "https://googleads.googleapis.com"
	googleAdsDefaultVersion = "v18"
	micros                  = 1_000_000
)

// GoogleAdsClient reads ad group metrics through the googleAds:search endpoint.
type GoogleAdsClient struct {
	BaseURL         string
	Version         string
	DeveloperToken  string
	AccessToken     string
	CustomerID      string
	LoginCustomerID string
	LookbackDays    int
	Client          *http.Client
	Clock           func() time.Time
}

type googleAdsSearchRequest struct {
	Query     string `json:"query"`
	PageToken string `json:"pageToken,omitempty"`
}

type googleAdsSearchResponse struct {
	Results []struct {
		AdGroup struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"adGroup"`
		Metrics struct {
			Impressions      number `json:"impressions"`
			Clicks           number `json:"clicks"`
			Conversions      number `json:"conversions"`
			ConversionsValue number `json:"conversionsValue"`
			CostMicros       number `json:"costMicros"`
		} `json:"metrics"`
	} `json:"results"`
	NextPageToken string `json:"nextPageToken"`
}

// Platform returns the limiter key.
func (c *GoogleAdsClient) Platform() string {
	return GoogleAds
}

// Fetch returns one variant per ad group of the campaign.
func (c *GoogleAdsClient) Fetch(ctx context.Context, campaignID string) ([]core.MetricVariant, error) {
	if c == nil || strings.TrimSpace(c.AccessToken) == "" || strings.TrimSpace(c.DeveloperToken) == "" {
		return nil, errors.New("google ads client is not configured")
	}
	customer := digitsOnly(c.CustomerID)
	if customer == "" {
		return nil, errors.New("google ads customer id is required")
	}
	id, err := requireCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	if digitsOnly(id) != id {
		return nil, fmt.Errorf("google ads campaign id must be numeric: %q", id)
	}

	now := clockNow(c.Clock)
	query := c.query(id, now)
	url := c.searchURL(customer)

	var variants []core.MetricVariant
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		req, err := newJSONRequest(ctx, http.MethodPost, url, googleAdsSearchRequest{Query: query, PageToken: pageToken})
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
		req.Header.Set("developer-token", c.DeveloperToken)
		if login := digitsOnly(c.LoginCustomerID); login != "" {
			req.Header.Set("login-customer-id", login)
		}

		var parsed googleAdsSearchResponse
		if err := doJSON(c.Client, req, GoogleAds, now, &parsed); err != nil {
			return nil, err
		}

		for _, row := range parsed.Results {
			name := row.AdGroup.Name
			if name == "" {
				name = row.AdGroup.ID
			}
			variant := core.MetricVariant{
				Name:        name,
				Impressions: int64(row.Metrics.Impressions),
				Clicks:      int64(row.Metrics.Clicks),
				Conversions: int64(row.Metrics.Conversions),
				Spend:       float64(row.Metrics.CostMicros) / micros,
			}
			variants = append(variants, derive(variant, float64(row.Metrics.ConversionsValue)))
		}

		if parsed.NextPageToken == "" {
			break
		}
		pageToken = parsed.NextPageToken
	}
	return variants, nil
}

func (c *GoogleAdsClient) query(campaignID string, now time.Time) string {
	since, until := lookbackWindow(now, c.LookbackDays)
	return fmt.Sprintf(`SELECT ad_group.id, ad_group.name, metrics.impressions, metrics.clicks, metrics.conversions, metrics.conversions_value, metrics.cost_micros `+
		`FROM ad_group WHERE campaign.id = %s AND segments.date BETWEEN '%s' AND '%s'`,
		campaignID, since.Format(time.DateOnly), until.Format(time.DateOnly))
}

func (c *GoogleAdsClient) searchURL(customer string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = googleAdsDefaultBaseURL
	}
	version := c.Version
	if version == "" {
		version = googleAdsDefaultVersion
	}
	return base + "/" + version + "/customers/" + customer + "/googleAds:search"
}

func digitsOnly(value string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-':
		default:
			return ""
		}
	}
	return sb.String()
}
