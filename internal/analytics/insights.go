package analytics

import (
	"sort"

	"github.com/adlibrary/ads-spy/internal/models"
)

const topPlatformCount = 5

// Summarize computes aggregate statistics over ads.
func Summarize(ads []models.Ad) models.Insights {
	if len(ads) == 0 {
		return models.Insights{TopPlatforms: []models.PlatformCount{}}
	}

	var totalImpressions, totalSpend float64
	uniquePages := make(map[string]struct{})
	platformCounts := make(map[string]int)
	var platforms []string

	for _, ad := range ads {
		totalImpressions += ad.Impressions.Average
		totalSpend += ad.Spend.Average
		uniquePages[ad.PageID] = struct{}{}

		for _, platform := range ad.Platforms {
			if _, seen := platformCounts[platform]; !seen {
				platforms = append(platforms, platform)
			}
			platformCounts[platform]++
		}
	}

	// stable: ties keep first-encountered order
	sort.SliceStable(platforms, func(i, j int) bool {
		return platformCounts[platforms[i]] > platformCounts[platforms[j]]
	})

	top := make([]models.PlatformCount, 0, topPlatformCount)
	for i, platform := range platforms {
		if i >= topPlatformCount {
			break
		}
		top = append(top, models.PlatformCount{Platform: platform, Count: platformCounts[platform]})
	}

	return models.Insights{
		TotalAds:           len(ads),
		TotalImpressions:   totalImpressions,
		TotalSpend:         totalSpend,
		AverageImpressions: totalImpressions / float64(len(ads)),
		AverageSpend:       totalSpend / float64(len(ads)),
		TopPlatforms:       top,
		UniqueCompetitors:  len(uniquePages),
	}
}
