package analytics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/adlibrary/ads-spy/internal/models"
)

// SortMetric names the numeric key ads are ordered by.
type SortMetric string

const (
	MetricImpressions SortMetric = "impressions"
	MetricSpend       SortMetric = "spend"
	MetricRuntime     SortMetric = "runtime"
	MetricReach       SortMetric = "reach"
)

type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

var (
	ErrInvalidMetric = errors.New("invalid sort metric")
	ErrInvalidOrder  = errors.New("invalid sort order")
)

// ParseSortMetric validates a metric name.
func ParseSortMetric(s string) (SortMetric, error) {
	switch m := SortMetric(s); m {
	case MetricImpressions, MetricSpend, MetricRuntime, MetricReach:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMetric, s)
}

// ParseSortOrder validates an order name. An empty order means descending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case "":
		return Descending, nil
	case Ascending, Descending:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrder, s)
}

func metricValue(ad models.Ad, metric SortMetric) float64 {
	switch metric {
	case MetricImpressions:
		return ad.Impressions.Average
	case MetricSpend:
		return ad.Spend.Average
	case MetricRuntime:
		return float64(ad.RuntimeDays)
	default:
		return ad.Reach.Value()
	}
}

// Sort returns a copy of ads ordered by metric. The input keeps its order;
// the order among equal keys is unspecified.
func Sort(ads []models.Ad, metric SortMetric, order SortOrder) ([]models.Ad, error) {
	if _, err := ParseSortMetric(string(metric)); err != nil {
		return nil, err
	}
	order, err := ParseSortOrder(string(order))
	if err != nil {
		return nil, err
	}

	sorted := make([]models.Ad, len(ads))
	copy(sorted, ads)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := metricValue(sorted[i], metric), metricValue(sorted[j], metric)
		if order == Ascending {
			return a < b
		}
		return a > b
	})

	return sorted, nil
}

// TopN returns the n best ads by metric, highest first. An empty or unknown
// metric ranks by reach.
func TopN(ads []models.Ad, metric SortMetric, n int) []models.Ad {
	if n <= 0 {
		return []models.Ad{}
	}

	if _, err := ParseSortMetric(string(metric)); err != nil {
		metric = MetricReach
	}

	sorted, _ := Sort(ads, metric, Descending)
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
