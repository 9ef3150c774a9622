package platform

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adpilot/adpilot/internal/core"
)

const (
	metaDefaultBaseURL = "https://graph.facebook.com"
	metaDefaultVersion = "v21.0"
	metaInsightFields  = "adset_id,adset_name,impressions,clicks,spend,actions,action_values,purchase_roas"
)

// Purchase action types in order of preference.
var metaPurchaseActions = []string{"omni_purchase", "purchase", "offsite_conversion.fb_pixel_purchase"}

// MetaClient reads ad set insights from the Meta Graph API.
type MetaClient struct {
	BaseURL     string
	Version     string
	AccessToken string
	DatePreset  string
	Client      *http.Client
	Clock       func() time.Time
}

type metaAction struct {
	ActionType string `json:"action_type"`
	Value      number `json:"value"`
}

type metaInsightsResponse struct {
	Data []struct {
		AdsetName    string       `json:"adset_name"`
		AdsetID      string       `json:"adset_id"`
		Impressions  number       `json:"impressions"`
		Clicks       number       `json:"clicks"`
		Spend        number       `json:"spend"`
		Actions      []metaAction `json:"actions"`
		ActionValues []metaAction `json:"action_values"`
		PurchaseROAS []metaAction `json:"purchase_roas"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// Platform returns the limiter key.
func (c *MetaClient) Platform() string {
	return Meta
}

// Fetch returns one variant per ad set of the campaign.
func (c *MetaClient) Fetch(ctx context.Context, campaignID string) ([]core.MetricVariant, error) {
	if c == nil || strings.TrimSpace(c.AccessToken) == "" {
		return nil, errors.New("meta client is not configured")
	}
	id, err := requireCampaign(campaignID)
	if err != nil {
		return nil, err
	}

	next := c.insightsURL(id)
	var variants []core.MetricVariant
	for page := 0; next != "" && page < maxPages; page++ {
		req, err := newJSONRequest(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		var parsed metaInsightsResponse
		if err := doJSON(c.Client, req, Meta, clockNow(c.Clock), &parsed); err != nil {
			return nil, err
		}

		for _, row := range parsed.Data {
			name := row.AdsetName
			if name == "" {
				name = row.AdsetID
			}
			variant := core.MetricVariant{
				Name:        name,
				Impressions: int64(row.Impressions),
				Clicks:      int64(row.Clicks),
				Spend:       float64(row.Spend),
				Conversions: int64(sumPurchases(row.Actions)),
				ROAS:        sumPurchases(row.PurchaseROAS),
			}
			variants = append(variants, derive(variant, sumPurchases(row.ActionValues)))
		}
		next = parsed.Paging.Next
	}
	return variants, nil
}

func (c *MetaClient) insightsURL(campaignID string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = metaDefaultBaseURL
	}
	version := c.Version
	if version == "" {
		version = metaDefaultVersion
	}
	preset := c.DatePreset
	if preset == "" {
		preset = "last_7d"
	}

	query := url.Values{}
	query.Set("level", "adset")
	query.Set("fields", metaInsightFields)
	query.Set("date_preset", preset)
	query.Set("access_token", c.AccessToken)
	return base + "/" + version + "/" + url.PathEscape(campaignID) + "/insights?" + query.Encode()
}

// sumPurchases picks the first purchase-like action so pixel and omni
// counts of the same event are not added twice.
func sumPurchases(actions []metaAction) float64 {
	for _, preferred := range metaPurchaseActions {
		for _, action := range actions {
			if action.ActionType == preferred {
				return float64(action.Value)
			}
		}
	}
	return 0
}
