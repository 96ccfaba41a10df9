package models

import "time"

// Report is a periodic competitor watch report for one search term
type Report struct {
	ID          string              `json:"id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Period      string              `json:"period"` // "daily" or "weekly"
	SearchTerm  string              `json:"search_term"`
	TotalAds    int                 `json:"total_ads"`
	Insights    Insights            `json:"insights"`
	Competitors []CompetitorSummary `json:"competitors"`
	TopAds      []Ad                `json:"top_ads"`
}

// ReportRef points at an archived report
type ReportRef struct {
	ID   string `json:"id"`
	Date string `json:"date"` // YYYY-MM-DD
}

// Alert represents an urgent notification
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "new_ads", "info"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	PageID    string    `json:"page_id,omitempty"`
	Ads       []Ad      `json:"ads,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
