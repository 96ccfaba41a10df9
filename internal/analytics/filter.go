package analytics

import (
	"strings"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
)

// now is the reference time for ads without a stop time.
var now = time.Now

// Filter returns the ads matching every supplied option. Options that are
// unset do not constrain the result. The input slice is not modified.
func Filter(ads []models.Ad, opts models.FilterOptions) []models.Ad {
	filtered := make([]models.Ad, 0, len(ads))
	searchTerm := strings.ToLower(opts.SearchTerm)
	reference := now()

	for _, ad := range ads {
		if searchTerm != "" && !strings.Contains(searchableContent(ad), searchTerm) {
			continue
		}
		if opts.MinImpressions != nil && ad.Impressions.Average < *opts.MinImpressions {
			continue
		}
		if opts.MaxImpressions != nil && ad.Impressions.Average > *opts.MaxImpressions {
			continue
		}
		if opts.MinSpend != nil && ad.Spend.Average < *opts.MinSpend {
			continue
		}
		if opts.MaxSpend != nil && ad.Spend.Average > *opts.MaxSpend {
			continue
		}
		if opts.Platform != "" && !ad.HasPlatform(opts.Platform) {
			continue
		}
		if opts.ActiveOnly != nil && *opts.ActiveOnly != (ad.DeliveryStopTime == nil) {
			continue
		}
		if (opts.StartDate != nil || opts.EndDate != nil) && !overlaps(ad, opts.StartDate, opts.EndDate, reference) {
			continue
		}
		if opts.PageID != "" && ad.PageID != opts.PageID {
			continue
		}
		filtered = append(filtered, ad)
	}

	return filtered
}

func searchableContent(ad models.Ad) string {
	parts := make([]string, 0, len(ad.Creative.Bodies)+len(ad.Creative.LinkTitles)+
		len(ad.Creative.LinkDescriptions)+len(ad.Creative.LinkCaptions)+1)
	parts = append(parts, ad.Creative.Bodies...)
	parts = append(parts, ad.Creative.LinkTitles...)
	parts = append(parts, ad.Creative.LinkDescriptions...)
	parts = append(parts, ad.Creative.LinkCaptions...)
	parts = append(parts, ad.PageName)
	return strings.ToLower(strings.Join(parts, " "))
}

// overlaps reports whether the ad's delivery window [start, stop-or-now]
// intersects [from, to]. Bounds are inclusive; ads without a start time
// never match a date filter.
func overlaps(ad models.Ad, from, to *time.Time, reference time.Time) bool {
	if ad.DeliveryStartTime == nil {
		return false
	}

	end := reference
	if ad.DeliveryStopTime != nil {
		end = *ad.DeliveryStopTime
	}

	if from != nil && end.Before(*from) {
		return false
	}
	if to != nil && ad.DeliveryStartTime.After(*to) {
		return false
	}
	return true
}
