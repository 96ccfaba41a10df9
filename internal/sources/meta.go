package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL         = "https://graph.facebook.com/v18.0"
	DefaultRateLimit       = 200
	DefaultRateLimitWindow = time.Hour
	DefaultLimit           = 100
	DefaultActiveStatus    = "ALL"

	requestTimeout = 30 * time.Second
	pageInfoFields = "id,name,category,category_list,link,fan_count,followers_count"
)

// DefaultCountries are the EU and LATAM markets the Ad Library exposes data
// for. They are used when a search names no country or names ALL.
var DefaultCountries = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR",
	"HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL", "PL", "PT", "RO", "SK",
	"SI", "ES", "SE", "GB", "NO", "IS", "LI", "CH",
	"BR", "AR", "CL", "CO", "MX", "PE", "UY",
}

var adFields = []string{
	"id",
	"ad_creation_time",
	"ad_creative_bodies",
	"ad_creative_link_captions",
	"ad_creative_link_descriptions",
	"ad_creative_link_titles",
	"ad_delivery_start_time",
	"ad_delivery_stop_time",
	"ad_snapshot_url",
	"bylines",
	"currency",
	"demographic_distribution",
	"impressions",
	"page_id",
	"page_name",
	"publisher_platforms",
	"spend",
	"estimated_audience_size",
	"eu_total_reach",
	"age_country_gender_reach_breakdown",
	"target_ages",
	"target_gender",
	"target_locations",
}

type graphErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// MetaAdsSource queries the Meta Ad Library (ads_archive) Graph API
type MetaAdsSource struct {
	accessToken string
	baseURL     string
	client      *resty.Client
	quota       *quota
}

var _ AdSource = (*MetaAdsSource)(nil)

// NewMetaAdsSource creates a new Meta Ad Library source. Zero values for
// baseURL, limit or window fall back to the public defaults.
func NewMetaAdsSource(accessToken, baseURL string, limit int, window time.Duration) *MetaAdsSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}

	return &MetaAdsSource{
		accessToken: accessToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      resty.New().SetTimeout(requestTimeout),
		quota:       newQuota(limit, window, time.Now),
	}
}

func (m *MetaAdsSource) GetName() string {
	return "meta"
}

func (m *MetaAdsSource) IsEnabled() bool {
	return m.accessToken != ""
}

// RemainingQuota returns how many upstream requests are left in the current window.
func (m *MetaAdsSource) RemainingQuota() int {
	return m.quota.remaining()
}

// FetchAds runs one ads_archive search and returns the raw payload.
func (m *MetaAdsSource) FetchAds(ctx context.Context, params models.SearchParams) (*models.RawPayload, error) {
	if !m.IsEnabled() {
		return nil, &FetchError{Message: "META_ACCESS_TOKEN is not configured"}
	}

	if err := m.quota.take(); err != nil {
		return nil, err
	}

	query, err := m.buildQuery(params)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(m.baseURL + "/ads_archive")
	if err != nil {
		return nil, &FetchError{Message: err.Error(), Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, upstreamError(resp)
	}

	var payload models.RawPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &FetchError{
			Message:    "invalid response body",
			StatusCode: resp.StatusCode(),
			Err:        err,
		}
	}

	logrus.Debugf("Meta ads_archive returned %d ads for %q", len(payload.Data), params.SearchTerms)
	return &payload, nil
}

// GetPageInfo fetches publisher page metadata.
func (m *MetaAdsSource) GetPageInfo(ctx context.Context, pageID string) (*models.PageInfo, error) {
	if !m.IsEnabled() {
		return nil, &FetchError{Message: "META_ACCESS_TOKEN is not configured"}
	}
	if pageID == "" {
		return nil, fmt.Errorf("page ID is required")
	}

	if err := m.quota.take(); err != nil {
		return nil, err
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"access_token": m.accessToken,
			"fields":       pageInfoFields,
		}).
		SetResult(&models.PageInfo{}).
		Get(m.baseURL + "/" + pageID)
	if err != nil {
		return nil, &FetchError{Message: err.Error(), Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, upstreamError(resp)
	}

	return resp.Result().(*models.PageInfo), nil
}

func (m *MetaAdsSource) buildQuery(params models.SearchParams) (map[string]string, error) {
	countries := params.Countries
	if len(countries) == 0 || countries[0] == "ALL" {
		countries = DefaultCountries
	}
	countriesJSON, err := json.Marshal(countries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode countries: %w", err)
	}

	activeStatus := params.ActiveStatus
	if activeStatus == "" {
		activeStatus = DefaultActiveStatus
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := map[string]string{
		"access_token":         m.accessToken,
		"search_terms":         params.SearchTerms,
		"ad_reached_countries": string(countriesJSON),
		"ad_active_status":     activeStatus,
		"limit":                strconv.Itoa(limit),
		"fields":               strings.Join(adFields, ","),
	}

	if len(params.SearchPageIDs) > 0 {
		pageIDs, err := json.Marshal(params.SearchPageIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode page IDs: %w", err)
		}
		query["search_page_ids"] = string(pageIDs)
	}
	if params.DateMin != "" {
		query["ad_delivery_date_min"] = params.DateMin
	}
	if params.DateMax != "" {
		query["ad_delivery_date_max"] = params.DateMax
	}

	return query, nil
}

func upstreamError(resp *resty.Response) *FetchError {
	message := fmt.Sprintf("upstream returned status %d", resp.StatusCode())

	var graphErr graphErrorResponse
	if err := json.Unmarshal(resp.Body(), &graphErr); err == nil && graphErr.Error.Message != "" {
		message = graphErr.Error.Message
	}

	logrus.Errorf("Meta API error (status %d): %s", resp.StatusCode(), message)
	return &FetchError{Message: message, StatusCode: resp.StatusCode()}
}
