package analytics

import (
	"sort"

	"github.com/adlibrary/ads-spy/internal/models"
)

type competitorBuilder struct {
	summary      models.CompetitorSummary
	platformSeen map[string]bool
}

// AggregateCompetitors groups ads by publisher page and rolls up their
// impressions, spend, platforms and demographics. Summaries are ordered by
// total average impressions, highest first.
func AggregateCompetitors(ads []models.Ad) []models.CompetitorSummary {
	builders := make(map[string]*competitorBuilder)
	var order []string

	for _, ad := range ads {
		b, ok := builders[ad.PageID]
		if !ok {
			b = &competitorBuilder{
				summary: models.CompetitorSummary{
					PageID:       ad.PageID,
					PageName:     ad.PageName,
					Ads:          []models.Ad{},
					Platforms:    []string{},
					Demographics: make(map[string]int),
				},
				platformSeen: make(map[string]bool),
			}
			builders[ad.PageID] = b
			order = append(order, ad.PageID)
		}

		c := &b.summary
		c.TotalAds++
		c.Ads = append(c.Ads, ad)
		c.TotalImpressions.Add(ad.Impressions)
		c.TotalSpend.Add(ad.Spend)

		if ad.DeliveryStopTime == nil {
			c.ActiveAds++
		}

		for _, platform := range ad.Platforms {
			if !b.platformSeen[platform] {
				b.platformSeen[platform] = true
				c.Platforms = append(c.Platforms, platform)
			}
		}

		for _, demo := range ad.Demographics {
			c.Demographics[demo.Key()]++
		}
	}

	summaries := make([]models.CompetitorSummary, 0, len(order))
	for _, pageID := range order {
		c := builders[pageID].summary
		c.AverageImpressionsPerAd = c.TotalImpressions.Average / float64(c.TotalAds)
		c.AverageSpendPerAd = c.TotalSpend.Average / float64(c.TotalAds)
		summaries = append(summaries, c)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TotalImpressions.Average > summaries[j].TotalImpressions.Average
	})

	return summaries
}
