package models

import "time"

// Ad is the canonical advertisement record produced by the normalizer.
// Records are treated as immutable once constructed.
type Ad struct {
	ID                string     `json:"id"`
	PageID            string     `json:"pageId"`
	PageName          string     `json:"pageName"`
	CreationTime      *time.Time `json:"creationTime,omitempty"`
	DeliveryStartTime *time.Time `json:"deliveryStartTime,omitempty"`
	DeliveryStopTime  *time.Time `json:"deliveryStopTime,omitempty"`
	RuntimeDays       int        `json:"runtimeDays"`
	IsActive          bool       `json:"isActive"`
	SnapshotURL       string     `json:"snapshotUrl,omitempty"`
	Currency          string     `json:"currency,omitempty"`
	Bylines           string     `json:"bylines,omitempty"`

	Impressions  Range         `json:"impressions"`
	Spend        Range         `json:"spend"`
	Reach        Reach         `json:"reach"`
	Targeting    *Targeting    `json:"targeting,omitempty"`
	Creative     Creative      `json:"creative"`
	Demographics []Demographic `json:"demographics"`
	Platforms    []string      `json:"platforms"`
}

// Range is an upstream-reported bound on a metric. Raw keeps the
// upstream representation for display and is nil when the field was absent.
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
	Raw     *string `json:"raw"`
}

// NewRange builds a Range with Average set to the midpoint. Inverted bounds
// are swapped so that Min <= Average <= Max always holds.
func NewRange(min, max float64, raw *string) Range {
	if min > max {
		min, max = max, min
	}
	return Range{Min: min, Max: max, Average: (min + max) / 2, Raw: raw}
}

// RangeTotal is a component-wise sum of ranges.
type RangeTotal struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// Add accumulates r into the total.
func (t *RangeTotal) Add(r Range) {
	t.Min += r.Min
	t.Max += r.Max
	t.Average += r.Average
}

// Reach holds the audience-size figures reported upstream plus the
// demographic extrapolation.
type Reach struct {
	Raw              interface{}              `json:"raw,omitempty"`
	Estimated        float64                  `json:"estimated"`
	EUTotal          float64                  `json:"euTotal"`
	Breakdown        []map[string]interface{} `json:"breakdown"`
	DemographicBased *ReachEstimate           `json:"demographicBased"`
}

// Value returns the best available reach figure: EU total, then the upstream
// estimate, then the demographic estimate. Zero values fall through.
func (r Reach) Value() float64 {
	if r.EUTotal != 0 {
		return r.EUTotal
	}
	if r.Estimated != 0 {
		return r.Estimated
	}
	if r.DemographicBased != nil && r.DemographicBased.Estimated != 0 {
		return float64(r.DemographicBased.Estimated)
	}
	return 0
}

// ReachEstimate is an approximate audience size extrapolated from the
// demographic distribution. It is a heuristic, not a measurement.
type ReachEstimate struct {
	Estimated         int64  `json:"estimated"`
	Confidence        string `json:"confidence"` // "high", "medium", "low"
	DemographicGroups int    `json:"demographicGroups"`
	TotalPercentage   int    `json:"totalPercentage"`
	Method            string `json:"method"`
}

type Targeting struct {
	Ages      []string                 `json:"ages"`
	Gender    string                   `json:"gender,omitempty"`
	Locations []map[string]interface{} `json:"locations"`
}

type Creative struct {
	Bodies           []string `json:"bodies"`
	LinkTitles       []string `json:"linkTitles"`
	LinkDescriptions []string `json:"linkDescriptions"`
	LinkCaptions     []string `json:"linkCaptions"`
}

type Demographic struct {
	Age        string  `json:"age"`
	Gender     string  `json:"gender"`
	Percentage float64 `json:"percentage"`
}

// Key identifies the demographic group as "age:gender".
func (d Demographic) Key() string {
	return d.Age + ":" + d.Gender
}

// HasPlatform reports whether the ad ran on platform.
func (a Ad) HasPlatform(platform string) bool {
	for _, p := range a.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}
