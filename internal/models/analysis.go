package models

// CompetitorSummary rolls up the ads of one publisher page. It is rebuilt
// for every query and has no identity of its own.
type CompetitorSummary struct {
	PageID                  string         `json:"pageId"`
	PageName                string         `json:"pageName"`
	TotalAds                int            `json:"totalAds"`
	ActiveAds               int            `json:"activeAds"`
	TotalImpressions        RangeTotal     `json:"totalImpressions"`
	TotalSpend              RangeTotal     `json:"totalSpend"`
	Ads                     []Ad           `json:"ads"`
	Platforms               []string       `json:"platforms"`
	Demographics            map[string]int `json:"demographics"` // "age:gender" -> occurrences
	AverageImpressionsPerAd float64        `json:"averageImpressionsPerAd"`
	AverageSpendPerAd       float64        `json:"averageSpendPerAd"`
}

// Insights holds aggregate statistics over a result set.
type Insights struct {
	TotalAds           int             `json:"totalAds"`
	TotalImpressions   float64         `json:"totalImpressions"`
	TotalSpend         float64         `json:"totalSpend"`
	AverageImpressions float64         `json:"averageImpressions"`
	AverageSpend       float64         `json:"averageSpend"`
	TopPlatforms       []PlatformCount `json:"topPlatforms"`
	UniqueCompetitors  int             `json:"uniqueCompetitors"`
}

type PlatformCount struct {
	Platform string `json:"platform"`
	Count    int    `json:"count"`
}
