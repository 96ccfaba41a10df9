package models

import "time"

// RawAd is one loosely-typed ad object as returned by the upstream API.
type RawAd map[string]interface{}

// RawPayload is the upstream ads_archive response body.
type RawPayload struct {
	Data   []RawAd     `json:"data"`
	Paging *Pagination `json:"paging,omitempty"`
}

type Pagination struct {
	Cursors *struct {
		Before string `json:"before,omitempty"`
		After  string `json:"after,omitempty"`
	} `json:"cursors,omitempty"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// RecordError reports a raw record that could not be normalized.
type RecordError struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

func (e *RecordError) Error() string {
	if e.ID != "" {
		return "record " + e.ID + ": " + e.Reason
	}
	return "record: " + e.Reason
}

// NormalizedResult is the output of normalizing one upstream payload.
type NormalizedResult struct {
	Ads        []Ad          `json:"ads"`
	Pagination *Pagination   `json:"pagination"`
	Skipped    []RecordError `json:"skipped,omitempty"`
}

// SearchParams are the upstream query parameters. They also form the
// cache signature, so field order here is part of the cache key format.
type SearchParams struct {
	SearchTerms   string   `json:"searchTerms"`
	Countries     []string `json:"countries"`
	ActiveStatus  string   `json:"activeStatus,omitempty"` // "ALL", "ACTIVE", "INACTIVE"
	Limit         int      `json:"limit"`
	SearchPageIDs []string `json:"searchPageIds,omitempty"`
	DateMin       string   `json:"adDeliveryDateMin,omitempty"`
	DateMax       string   `json:"adDeliveryDateMax,omitempty"`
}

// FilterOptions are the in-memory filters applied after fetching. A nil or
// empty option disables that predicate.
type FilterOptions struct {
	SearchTerm     string     `json:"searchTerm,omitempty"`
	MinImpressions *float64   `json:"minImpressions,omitempty"`
	MaxImpressions *float64   `json:"maxImpressions,omitempty"`
	MinSpend       *float64   `json:"minSpend,omitempty"`
	MaxSpend       *float64   `json:"maxSpend,omitempty"`
	Platform       string     `json:"platform,omitempty"`
	ActiveOnly     *bool      `json:"activeOnly,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	PageID         string     `json:"pageId,omitempty"`
}

// SearchRequest is a full query: what to fetch, how to filter and how to order.
type SearchRequest struct {
	Params    SearchParams  `json:"params"`
	Filters   FilterOptions `json:"filters"`
	SortBy    string        `json:"sortBy,omitempty"`
	SortOrder string        `json:"sortOrder,omitempty"`
	TopN      int           `json:"topN,omitempty"`
}

// SearchResult is what a query hands to the presentation layer.
type SearchResult struct {
	Ads          []Ad                `json:"ads"`
	Insights     Insights            `json:"insights"`
	Competitors  []CompetitorSummary `json:"competitors"`
	TopAds       []Ad                `json:"topAds"`
	TotalResults int                 `json:"totalResults"`
	Pagination   *Pagination         `json:"pagination"`
	Cached       bool                `json:"cached"`
	Skipped      int                 `json:"skipped"`
}

// PageInfo is the publisher page metadata returned by the Graph API.
type PageInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	CategoryList []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"category_list,omitempty"`
	Link           string `json:"link,omitempty"`
	FanCount       int64  `json:"fan_count,omitempty"`
	FollowersCount int64  `json:"followers_count,omitempty"`
}

// ImageExtraction is the result of rendering an ad snapshot page.
type ImageExtraction struct {
	ImageURL         string          `json:"imageUrl"`
	Dimensions       ImageDimensions `json:"dimensions"`
	TotalImagesFound int             `json:"totalImagesFound"`
	AllImages        []ImageRef      `json:"allImages"`
	OriginalURL      string          `json:"originalUrl"`
	ProcessingTimeMs int64           `json:"processingTime"`
}

type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ImageRef struct {
	URL        string          `json:"url"`
	Dimensions ImageDimensions `json:"dimensions"`
	Alt        string          `json:"alt"`
}
