package normalizer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/sirupsen/logrus"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize converts an upstream payload into canonical ads. Records that
// cannot be normalized are skipped and reported; they never abort the batch.
func Normalize(payload *models.RawPayload, now time.Time) models.NormalizedResult {
	if payload == nil || payload.Data == nil {
		return models.NormalizedResult{Ads: []models.Ad{}}
	}

	result := models.NormalizedResult{
		Ads:        make([]models.Ad, 0, len(payload.Data)),
		Pagination: payload.Paging,
	}

	for i, raw := range payload.Data {
		ad, err := NormalizeAd(raw, now)
		if err != nil {
			var recErr *models.RecordError
			if !errors.As(err, &recErr) {
				recErr = &models.RecordError{Reason: err.Error()}
			}
			recErr.Index = i
			logrus.Warnf("Skipping ad record %d: %v", i, recErr)
			result.Skipped = append(result.Skipped, *recErr)
			continue
		}
		result.Ads = append(result.Ads, ad)
	}

	logrus.Debugf("Normalized %d ads (%d skipped)", len(result.Ads), len(result.Skipped))
	return result
}

// NormalizeAd converts one raw upstream record. now is the reference time for
// the runtime of ads that are still delivering.
func NormalizeAd(raw models.RawAd, now time.Time) (models.Ad, error) {
	id := stringValue(raw["id"])
	if id == "" {
		return models.Ad{}, &models.RecordError{Reason: "missing id"}
	}

	creationTime, err := parseTimestamp(raw, "ad_creation_time")
	if err != nil {
		return models.Ad{}, &models.RecordError{ID: id, Reason: err.Error()}
	}
	startTime, err := parseTimestamp(raw, "ad_delivery_start_time")
	if err != nil {
		return models.Ad{}, &models.RecordError{ID: id, Reason: err.Error()}
	}
	stopTime, err := parseTimestamp(raw, "ad_delivery_stop_time")
	if err != nil {
		return models.Ad{}, &models.RecordError{ID: id, Reason: err.Error()}
	}

	impressions := ParseRange(raw["impressions"], Impressions)
	spend := ParseRange(raw["spend"], Spend)
	demographics := parseDemographics(raw["demographic_distribution"])

	ad := models.Ad{
		ID:                id,
		PageID:            stringValue(raw["page_id"]),
		PageName:          stringValue(raw["page_name"]),
		CreationTime:      creationTime,
		DeliveryStartTime: startTime,
		DeliveryStopTime:  stopTime,
		RuntimeDays:       runtimeDays(startTime, stopTime, now),
		IsActive:          stopTime == nil,
		SnapshotURL:       stringValue(raw["ad_snapshot_url"]),
		Currency:          stringValue(raw["currency"]),
		Bylines:           stringValue(raw["bylines"]),
		Impressions:       impressions,
		Spend:             spend,
		Reach: models.Reach{
			Raw:              raw["reach"],
			Estimated:        audienceSize(raw["estimated_audience_size"]),
			EUTotal:          floatValue(raw["eu_total_reach"]),
			Breakdown:        mapSlice(raw["age_country_gender_reach_breakdown"]),
			DemographicBased: CalculateReachFromDemographics(demographics, impressions.Min, impressions.Max),
		},
		Targeting: parseTargeting(raw),
		Creative: models.Creative{
			Bodies:           stringSlice(raw["ad_creative_bodies"]),
			LinkTitles:       stringSlice(raw["ad_creative_link_titles"]),
			LinkDescriptions: stringSlice(raw["ad_creative_link_descriptions"]),
			LinkCaptions:     stringSlice(raw["ad_creative_link_captions"]),
		},
		Demographics: demographics,
		Platforms:    stringSlice(raw["publisher_platforms"]),
	}

	return ad, nil
}

// runtimeDays is the whole-day ceiling between start and stop (or now).
func runtimeDays(start, stop *time.Time, now time.Time) int {
	if start == nil {
		return 0
	}

	end := now
	if stop != nil {
		end = *stop
	}

	days := math.Ceil(end.Sub(*start).Hours() / 24)
	if days < 0 {
		return 0
	}
	return int(days)
}

func parseTimestamp(raw models.RawAd, key string) (*time.Time, error) {
	value, ok := raw[key].(string)
	if !ok || value == "" {
		return nil, nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("invalid %s %q", key, value)
}

func parseDemographics(v interface{}) []models.Demographic {
	items, ok := v.([]interface{})
	if !ok {
		return []models.Demographic{}
	}

	demographics := make([]models.Demographic, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		demographics = append(demographics, models.Demographic{
			Age:        stringValue(m["age"]),
			Gender:     stringValue(m["gender"]),
			Percentage: floatValue(m["percentage"]),
		})
	}

	return demographics
}

func parseTargeting(raw models.RawAd) *models.Targeting {
	ages, hasAges := raw["target_ages"]
	gender, hasGender := raw["target_gender"]
	locations, hasLocations := raw["target_locations"]
	if !hasAges && !hasGender && !hasLocations {
		return nil
	}

	return &models.Targeting{
		Ages:      stringSlice(ages),
		Gender:    stringValue(gender),
		Locations: mapSlice(locations),
	}
}

// audienceSize reads estimated_audience_size, which is either a number or a
// {lower_bound, upper_bound} object.
func audienceSize(v interface{}) float64 {
	if m, ok := v.(map[string]interface{}); ok {
		lower := floatValue(m["lower_bound"])
		upper := floatValue(m["upper_bound"])
		if upper == 0 {
			upper = lower
		}
		return (lower + upper) / 2
	}
	return floatValue(v)
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []interface{}:
		// bylines occasionally arrive as a list
		if len(val) > 0 {
			return stringValue(val[0])
		}
	}
	return ""
}

func floatValue(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return 0
}

func stringSlice(v interface{}) []string {
	switch val := v.(type) {
	case []string:
		return append([]string{}, val...)
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func mapSlice(v interface{}) []map[string]interface{} {
	items, ok := v.([]interface{})
	if !ok {
		return []map[string]interface{}{}
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}
