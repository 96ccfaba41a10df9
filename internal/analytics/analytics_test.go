package analytics

import (
	"testing"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func float(f float64) *float64 { return &f }

func boolean(b bool) *bool { return &b }

func sampleAds() []models.Ad {
	return []models.Ad{
		{
			ID:                "ad1",
			PageID:            "page1",
			PageName:          "Test Page 1",
			Impressions:       models.NewRange(1000, 5000, nil),
			Spend:             models.NewRange(100, 500, nil),
			Reach:             models.Reach{EUTotal: 2500},
			RuntimeDays:       30,
			Platforms:         []string{"facebook", "instagram"},
			DeliveryStartTime: date("2024-01-01"),
			Demographics: []models.Demographic{
				{Age: "25-34", Gender: "male", Percentage: 0.4},
				{Age: "35-44", Gender: "female", Percentage: 0.6},
			},
			Creative: models.Creative{
				Bodies:           []string{"Test ad body"},
				LinkTitles:       []string{"Test title"},
				LinkDescriptions: []string{"Test description"},
				LinkCaptions:     []string{"Test caption"},
			},
		},
		{
			ID:                "ad2",
			PageID:            "page2",
			PageName:          "Test Page 2",
			Impressions:       models.NewRange(2000, 8000, nil),
			Spend:             models.NewRange(200, 800, nil),
			Reach:             models.Reach{EUTotal: 4000},
			RuntimeDays:       45,
			Platforms:         []string{"facebook"},
			DeliveryStartTime: date("2023-11-17"),
			DeliveryStopTime:  date("2024-01-01"),
			Demographics: []models.Demographic{
				{Age: "18-24", Gender: "female", Percentage: 0.8},
				{Age: "25-34", Gender: "male", Percentage: 0.2},
			},
			Creative: models.Creative{
				Bodies:           []string{"Another test ad"},
				LinkTitles:       []string{"Another title"},
				LinkDescriptions: []string{"Another description"},
				LinkCaptions:     []string{"Another caption"},
			},
		},
	}
}

func ids(ads []models.Ad) []string {
	out := make([]string, len(ads))
	for i, ad := range ads {
		out[i] = ad.ID
	}
	return out
}

func TestSort(t *testing.T) {
	tests := []struct {
		name     string
		metric   SortMetric
		order    SortOrder
		expected []string
	}{
		{name: "Reach descending by default", metric: MetricReach, order: "", expected: []string{"ad2", "ad1"}},
		{name: "Reach ascending", metric: MetricReach, order: Ascending, expected: []string{"ad1", "ad2"}},
		{name: "Spend descending", metric: MetricSpend, order: Descending, expected: []string{"ad2", "ad1"}},
		{name: "Spend ascending", metric: MetricSpend, order: Ascending, expected: []string{"ad1", "ad2"}},
		{name: "Impressions descending", metric: MetricImpressions, order: Descending, expected: []string{"ad2", "ad1"}},
		{name: "Runtime ascending", metric: MetricRuntime, order: Ascending, expected: []string{"ad1", "ad2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ads := sampleAds()
			sorted, err := Sort(ads, tt.metric, tt.order)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(sorted))
		})
	}
}

func TestSort_SpendValues(t *testing.T) {
	sorted, err := Sort(sampleAds(), MetricSpend, Descending)
	require.NoError(t, err)
	assert.Equal(t, 500.0, sorted[0].Spend.Average)
	assert.Equal(t, 300.0, sorted[1].Spend.Average)

	sorted, err = Sort(sampleAds(), MetricSpend, Ascending)
	require.NoError(t, err)
	assert.Equal(t, 300.0, sorted[0].Spend.Average)
	assert.Equal(t, 500.0, sorted[1].Spend.Average)
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	ads := sampleAds()
	_, err := Sort(ads, MetricSpend, Descending)
	require.NoError(t, err)
	assert.Equal(t, []string{"ad1", "ad2"}, ids(ads))
}

func TestSort_ReachFallsBackThroughFigures(t *testing.T) {
	ads := []models.Ad{
		{ID: "none"},
		{ID: "demographic", Reach: models.Reach{DemographicBased: &models.ReachEstimate{Estimated: 300}}},
		{ID: "estimated", Reach: models.Reach{Estimated: 200}},
		{ID: "eu", Reach: models.Reach{EUTotal: 100, Estimated: 999}},
	}

	sorted, err := Sort(ads, MetricReach, Descending)
	require.NoError(t, err)
	assert.Equal(t, []string{"demographic", "estimated", "eu", "none"}, ids(sorted))
}

func TestSort_InvalidInput(t *testing.T) {
	_, err := Sort(sampleAds(), "clicks", Descending)
	assert.ErrorIs(t, err, ErrInvalidMetric)

	_, err = Sort(sampleAds(), MetricSpend, "sideways")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestFilter(t *testing.T) {
	restore := now
	now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { now = restore }()

	tests := []struct {
		name     string
		opts     models.FilterOptions
		expected []string
	}{
		{name: "No options", opts: models.FilterOptions{}, expected: []string{"ad1", "ad2"}},
		{name: "Search term in body", opts: models.FilterOptions{SearchTerm: "another"}, expected: []string{"ad2"}},
		{name: "Search term is case-insensitive", opts: models.FilterOptions{SearchTerm: "TEST AD BODY"}, expected: []string{"ad1"}},
		{name: "Search term in page name", opts: models.FilterOptions{SearchTerm: "page 2"}, expected: []string{"ad2"}},
		{name: "Minimum impressions", opts: models.FilterOptions{MinImpressions: float(4000)}, expected: []string{"ad2"}},
		{name: "Maximum impressions", opts: models.FilterOptions{MaxImpressions: float(4000)}, expected: []string{"ad1"}},
		{name: "Inclusive spend bounds", opts: models.FilterOptions{MinSpend: float(300), MaxSpend: float(500)}, expected: []string{"ad1", "ad2"}},
		{name: "Platform", opts: models.FilterOptions{Platform: "instagram"}, expected: []string{"ad1"}},
		{name: "Active only", opts: models.FilterOptions{ActiveOnly: boolean(true)}, expected: []string{"ad1"}},
		{name: "Inactive only", opts: models.FilterOptions{ActiveOnly: boolean(false)}, expected: []string{"ad2"}},
		{name: "Page ID", opts: models.FilterOptions{PageID: "page1"}, expected: []string{"ad1"}},
		{name: "Start date overlaps ongoing ad", opts: models.FilterOptions{StartDate: date("2024-02-01")}, expected: []string{"ad1"}},
		{name: "Start date is inclusive of stop", opts: models.FilterOptions{StartDate: date("2024-01-01")}, expected: []string{"ad1", "ad2"}},
		{name: "End date before ongoing ad started", opts: models.FilterOptions{EndDate: date("2023-12-01")}, expected: []string{"ad2"}},
		{
			name:     "Conjunctive options",
			opts:     models.FilterOptions{Platform: "facebook", MinImpressions: float(4000), ActiveOnly: boolean(true)},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ids(Filter(sampleAds(), tt.opts)))
		})
	}
}

func TestFilter_DateBoundsExcludeAdsWithoutStart(t *testing.T) {
	ads := []models.Ad{{ID: "undated"}}
	assert.Empty(t, Filter(ads, models.FilterOptions{StartDate: date("2020-01-01")}))
	assert.Len(t, Filter(ads, models.FilterOptions{}), 1)
}

func TestTopN(t *testing.T) {
	ads := sampleAds()

	top := TopN(ads, MetricReach, 1)
	require.Len(t, top, 1)
	assert.Equal(t, 4000.0, top[0].Reach.EUTotal)

	assert.Equal(t, []string{"ad2", "ad1"}, ids(TopN(ads, MetricRuntime, 10)))
	assert.Equal(t, []string{"ad2", "ad1"}, ids(TopN(ads, "unknown", 5)))
	assert.Empty(t, TopN(ads, MetricSpend, 0))
}

func TestAggregateCompetitors(t *testing.T) {
	competitors := AggregateCompetitors(sampleAds())

	require.Len(t, competitors, 2)
	assert.Equal(t, "page2", competitors[0].PageID)
	assert.Equal(t, "page1", competitors[1].PageID)
	assert.Equal(t, 1, competitors[0].TotalAds)
	assert.Equal(t, 1, competitors[1].TotalAds)
	assert.Equal(t, 0, competitors[0].ActiveAds)
	assert.Equal(t, 1, competitors[1].ActiveAds)
	assert.Equal(t, 5000.0, competitors[0].TotalImpressions.Average)
	assert.Equal(t, 5000.0, competitors[0].AverageImpressionsPerAd)
	assert.Equal(t, 500.0, competitors[0].AverageSpendPerAd)
	assert.Equal(t, []string{"facebook", "instagram"}, competitors[1].Platforms)
	assert.Equal(t, map[string]int{"18-24:female": 1, "25-34:male": 1}, competitors[0].Demographics)
}

func TestAggregateCompetitors_SamePage(t *testing.T) {
	ads := sampleAds()
	ads[1].PageID = "page1"

	competitors := AggregateCompetitors(ads)

	require.Len(t, competitors, 1)
	c := competitors[0]
	assert.Equal(t, 2, c.TotalAds)
	assert.Equal(t, 1, c.ActiveAds)
	assert.Len(t, c.Ads, 2)
	assert.Equal(t, models.RangeTotal{Min: 3000, Max: 13000, Average: 8000}, c.TotalImpressions)
	assert.Equal(t, models.RangeTotal{Min: 300, Max: 1300, Average: 800}, c.TotalSpend)
	assert.Equal(t, 4000.0, c.AverageImpressionsPerAd)
	assert.Equal(t, 400.0, c.AverageSpendPerAd)
	assert.Equal(t, []string{"facebook", "instagram"}, c.Platforms)
	assert.Equal(t, 2, c.Demographics["25-34:male"])
}

func TestAggregateCompetitors_Empty(t *testing.T) {
	assert.Empty(t, AggregateCompetitors(nil))
}

func TestSummarize(t *testing.T) {
	insights := Summarize(sampleAds())

	assert.Equal(t, 2, insights.TotalAds)
	assert.Equal(t, 8000.0, insights.TotalImpressions)
	assert.Equal(t, 800.0, insights.TotalSpend)
	assert.Equal(t, 4000.0, insights.AverageImpressions)
	assert.Equal(t, 400.0, insights.AverageSpend)
	assert.Equal(t, 2, insights.UniqueCompetitors)
	assert.Equal(t, []models.PlatformCount{
		{Platform: "facebook", Count: 2},
		{Platform: "instagram", Count: 1},
	}, insights.TopPlatforms)
}

func TestSummarize_Empty(t *testing.T) {
	insights := Summarize([]models.Ad{})

	assert.Equal(t, 0, insights.TotalAds)
	assert.Equal(t, 0.0, insights.TotalImpressions)
	assert.Equal(t, 0.0, insights.AverageSpend)
	assert.Equal(t, 0, insights.UniqueCompetitors)
	assert.NotNil(t, insights.TopPlatforms)
	assert.Empty(t, insights.TopPlatforms)
}

func TestSummarize_TopPlatformsLimitAndTies(t *testing.T) {
	ads := []models.Ad{
		{ID: "1", PageID: "p", Platforms: []string{"a", "b", "c", "d", "e", "f"}},
		{ID: "2", PageID: "p", Platforms: []string{"f"}},
	}

	insights := Summarize(ads)

	require.Len(t, insights.TopPlatforms, 5)
	assert.Equal(t, "f", insights.TopPlatforms[0].Platform)
	assert.Equal(t, 2, insights.TopPlatforms[0].Count)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{
		insights.TopPlatforms[1].Platform,
		insights.TopPlatforms[2].Platform,
		insights.TopPlatforms[3].Platform,
		insights.TopPlatforms[4].Platform,
	})
	assert.Equal(t, 1, insights.UniqueCompetitors)
}
