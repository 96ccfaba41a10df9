package normalizer

import (
	"math"

	"github.com/adlibrary/ads-spy/internal/models"
)

// Reach extrapolation constants. They are empirical; keep them as they are
// until there is ground truth to tune against.
const (
	baseFrequency     = 4.0
	groupsPerStep     = 5.0
	minFrequency      = 1.2
	maxFrequency      = 3.0
	reachMethod       = "demographic_extrapolation"
	highConfidenceMin = 10
	midConfidenceMin  = 5
)

// CalculateReachFromDemographics estimates distinct reach from the
// demographic percentage breakdown and the impressions bounds. More groups
// imply a lower assumed frequency and therefore broader reach. The result is
// approximate and nil when the breakdown carries no usable percentages.
func CalculateReachFromDemographics(demographics []models.Demographic, min, max float64) *models.ReachEstimate {
	if len(demographics) == 0 {
		return nil
	}

	total := 0.0
	for _, d := range demographics {
		total += d.Percentage
	}
	if total == 0 {
		return nil
	}

	groups := len(demographics)
	avgImpressions := (min + max) / 2
	frequency := math.Max(minFrequency, math.Min(maxFrequency, baseFrequency-float64(groups)/groupsPerStep))

	confidence := "low"
	switch {
	case groups > highConfidenceMin:
		confidence = "high"
	case groups > midConfidenceMin:
		confidence = "medium"
	}

	return &models.ReachEstimate{
		Estimated:         int64(math.Round(avgImpressions / frequency)),
		Confidence:        confidence,
		DemographicGroups: groups,
		TotalPercentage:   int(math.Round(total * 100)),
		Method:            reachMethod,
	}
}
