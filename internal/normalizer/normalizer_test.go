package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func decodePayload(t *testing.T, body string) *models.RawPayload {
	t.Helper()
	var payload models.RawPayload
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	return &payload
}

func TestNormalize_BoundObjectPayload(t *testing.T) {
	payload := decodePayload(t, `{
		"data": [{
			"id": "ad123",
			"page_id": "page123",
			"page_name": "Test Page",
			"ad_creation_time": "2024-01-01T00:00:00Z",
			"ad_delivery_start_time": "2024-01-01T00:00:00Z",
			"ad_delivery_stop_time": null,
			"impressions": {"lower_bound": "1000", "upper_bound": "5000"},
			"spend": {"lower_bound": "100", "upper_bound": "500"},
			"ad_creative_bodies": ["Test body"],
			"ad_creative_link_titles": ["Test title"],
			"demographic_distribution": [
				{"age": "25-34", "gender": "male", "percentage": 0.5},
				{"age": "35-44", "gender": "female", "percentage": "0.5"}
			],
			"publisher_platforms": ["facebook", "instagram"],
			"currency": "USD",
			"ad_snapshot_url": "https://example.com/snapshot"
		}],
		"paging": {"next": "https://example.com/next"}
	}`)

	result := Normalize(payload, fixedNow)

	require.Len(t, result.Ads, 1)
	assert.Empty(t, result.Skipped)
	require.NotNil(t, result.Pagination)
	assert.Equal(t, "https://example.com/next", result.Pagination.Next)

	ad := result.Ads[0]
	assert.Equal(t, "ad123", ad.ID)
	assert.Equal(t, "page123", ad.PageID)
	assert.Equal(t, "Test Page", ad.PageName)
	assert.Equal(t, 1000.0, ad.Impressions.Min)
	assert.Equal(t, 5000.0, ad.Impressions.Max)
	assert.Equal(t, 3000.0, ad.Impressions.Average)
	assert.Equal(t, 100.0, ad.Spend.Min)
	assert.Equal(t, 500.0, ad.Spend.Max)
	assert.Equal(t, 300.0, ad.Spend.Average)
	require.NotNil(t, ad.Spend.Raw)
	assert.Equal(t, "$100 - $500", *ad.Spend.Raw)
	assert.True(t, ad.IsActive)
	assert.Equal(t, 61, ad.RuntimeDays)
	assert.Equal(t, []string{"facebook", "instagram"}, ad.Platforms)
	assert.Equal(t, []string{"Test body"}, ad.Creative.Bodies)
	assert.Equal(t, []string{}, ad.Creative.LinkCaptions)
	assert.Equal(t, "USD", ad.Currency)
	require.Len(t, ad.Demographics, 2)
	assert.Equal(t, 0.5, ad.Demographics[1].Percentage)

	require.NotNil(t, ad.Reach.DemographicBased)
	assert.Equal(t, 2, ad.Reach.DemographicBased.DemographicGroups)
	assert.Nil(t, ad.Targeting)
}

func TestNormalize_StringRanges(t *testing.T) {
	payload := decodePayload(t, `{
		"data": [{
			"id": "ad123",
			"impressions": "1,000 - 5,000",
			"spend": "$100 - $500",
			"ad_delivery_start_time": "2024-01-01T00:00:00Z"
		}]
	}`)

	result := Normalize(payload, fixedNow)
	require.Len(t, result.Ads, 1)

	ad := result.Ads[0]
	assert.Equal(t, 1000.0, ad.Impressions.Min)
	assert.Equal(t, 5000.0, ad.Impressions.Max)
	assert.Equal(t, 100.0, ad.Spend.Min)
	assert.Equal(t, 500.0, ad.Spend.Max)
	assert.Nil(t, result.Pagination)
}

func TestNormalize_RuntimeDays(t *testing.T) {
	payload := decodePayload(t, `{
		"data": [{
			"id": "ad123",
			"ad_delivery_start_time": "2024-01-01T00:00:00.000Z",
			"ad_delivery_stop_time": "2024-01-31T00:00:00.000Z"
		}]
	}`)

	result := Normalize(payload, fixedNow)
	require.Len(t, result.Ads, 1)

	ad := result.Ads[0]
	assert.Equal(t, 30, ad.RuntimeDays)
	assert.False(t, ad.IsActive)
}

func TestNormalizeAd_IsActiveIgnoresCurrentDate(t *testing.T) {
	future := map[string]interface{}{
		"id":                     "future",
		"ad_delivery_start_time": "2024-01-01",
		"ad_delivery_stop_time":  "2099-01-01",
	}

	ad, err := NormalizeAd(future, fixedNow)
	require.NoError(t, err)
	assert.False(t, ad.IsActive, "any stop time marks the ad inactive")

	ongoing := map[string]interface{}{
		"id":                     "ongoing",
		"ad_delivery_start_time": "2020-01-01",
	}

	ad, err = NormalizeAd(ongoing, fixedNow)
	require.NoError(t, err)
	assert.True(t, ad.IsActive)
}

func TestNormalizeAd_MissingFieldsDefaultToEmpty(t *testing.T) {
	for _, impressions := range []interface{}{nil, "undefined"} {
		raw := models.RawAd{"id": "bare", "impressions": impressions}

		ad, err := NormalizeAd(raw, fixedNow)
		require.NoError(t, err)

		assert.Equal(t, models.NewRange(0, 0, nil), ad.Impressions)
		assert.Equal(t, 0, ad.RuntimeDays)
		assert.NotNil(t, ad.Platforms)
		assert.NotNil(t, ad.Demographics)
		assert.NotNil(t, ad.Creative.Bodies)
		assert.NotNil(t, ad.Creative.LinkTitles)
		assert.NotNil(t, ad.Creative.LinkDescriptions)
		assert.NotNil(t, ad.Creative.LinkCaptions)
		assert.NotNil(t, ad.Reach.Breakdown)
		assert.Nil(t, ad.Reach.DemographicBased)
	}
}

func TestNormalizeAd_ReachAndTargeting(t *testing.T) {
	raw := models.RawAd{
		"id":                      "ad1",
		"eu_total_reach":          float64(12000),
		"estimated_audience_size": map[string]interface{}{"lower_bound": float64(1000), "upper_bound": float64(2000)},
		"age_country_gender_reach_breakdown": []interface{}{
			map[string]interface{}{"country": "DE"},
		},
		"target_ages":   []interface{}{"18", "65"},
		"target_gender": "All",
		"target_locations": []interface{}{
			map[string]interface{}{"name": "Germany", "excluded": false},
		},
	}

	ad, err := NormalizeAd(raw, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 12000.0, ad.Reach.EUTotal)
	assert.Equal(t, 1500.0, ad.Reach.Estimated)
	assert.Len(t, ad.Reach.Breakdown, 1)
	require.NotNil(t, ad.Targeting)
	assert.Equal(t, []string{"18", "65"}, ad.Targeting.Ages)
	assert.Equal(t, "All", ad.Targeting.Gender)
	assert.Equal(t, "Germany", ad.Targeting.Locations[0]["name"])
}

func TestNormalize_BadRecordDoesNotAbortBatch(t *testing.T) {
	payload := &models.RawPayload{
		Data: []models.RawAd{
			{"page_id": "no-id"},
			{"id": "bad-date", "ad_delivery_start_time": "yesterday"},
			{"id": "good", "impressions": "1,000"},
		},
	}

	result := Normalize(payload, fixedNow)

	require.Len(t, result.Ads, 1)
	assert.Equal(t, "good", result.Ads[0].ID)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, 0, result.Skipped[0].Index)
	assert.Equal(t, 1, result.Skipped[1].Index)
	assert.Equal(t, "bad-date", result.Skipped[1].ID)
}

func TestNormalize_EmptyData(t *testing.T) {
	result := Normalize(&models.RawPayload{}, fixedNow)
	assert.Empty(t, result.Ads)
	assert.Nil(t, result.Pagination)

	result = Normalize(nil, fixedNow)
	assert.NotNil(t, result.Ads)
	assert.Empty(t, result.Ads)
}

func TestRuntimeDays(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	partial := start.Add(36 * time.Hour)
	before := start.Add(-24 * time.Hour)

	assert.Equal(t, 0, runtimeDays(nil, nil, fixedNow))
	assert.Equal(t, 2, runtimeDays(&start, &partial, fixedNow))
	assert.Equal(t, 0, runtimeDays(&start, &before, fixedNow))
	assert.Equal(t, 61, runtimeDays(&start, nil, fixedNow))
}
