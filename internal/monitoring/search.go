package monitoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adlibrary/ads-spy/internal/analytics"
	"github.com/adlibrary/ads-spy/internal/cache"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/adlibrary/ads-spy/internal/normalizer"
	"github.com/adlibrary/ads-spy/internal/sources"
	"github.com/sirupsen/logrus"
)

const (
	defaultTopAds         = 10
	defaultSearchLimit    = 100
	competitorSearchLimit = 500
	defaultSearchSortBy   = analytics.MetricImpressions
)

// ValidationError reports a request that cannot be served as given.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// fetchResult is one upstream page after normalization.
type fetchResult struct {
	ads        []models.Ad
	pagination *models.Pagination
	skipped    int
	cached     bool
}

// Search fetches ads (from cache when possible), then filters, sorts and
// summarizes them.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	metric := defaultSearchSortBy
	if req.SortBy != "" {
		m, err := analytics.ParseSortMetric(req.SortBy)
		if err != nil {
			return nil, &ValidationError{Err: err}
		}
		metric = m
	}

	order, err := analytics.ParseSortOrder(req.SortOrder)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	fetched, err := s.fetch(ctx, withDefaults(req.Params))
	if err != nil {
		s.recordSearch("error")
		return nil, err
	}

	filtered := analytics.Filter(fetched.ads, req.Filters)

	sorted, err := analytics.Sort(filtered, metric, order)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	topN := req.TopN
	if topN <= 0 {
		topN = defaultTopAds
	}

	outcome := "fetched"
	if fetched.cached {
		outcome = "cached"
	}
	s.recordSearch(outcome)

	return &models.SearchResult{
		Ads:          sorted,
		Insights:     analytics.Summarize(sorted),
		Competitors:  analytics.AggregateCompetitors(sorted),
		TopAds:       analytics.TopN(sorted, metric, topN),
		TotalResults: len(sorted),
		Pagination:   fetched.pagination,
		Cached:       fetched.cached,
		Skipped:      fetched.skipped,
	}, nil
}

// Competitors returns per-advertiser summaries for a search term. An empty
// term yields no competitors without contacting the upstream API.
func (s *Service) Competitors(ctx context.Context, searchTerm string) ([]models.CompetitorSummary, error) {
	if searchTerm == "" {
		return []models.CompetitorSummary{}, nil
	}

	fetched, err := s.fetch(ctx, withDefaults(models.SearchParams{
		SearchTerms: searchTerm,
		Limit:       competitorSearchLimit,
	}))
	if err != nil {
		return nil, err
	}

	return analytics.AggregateCompetitors(fetched.ads), nil
}

// TopAds returns the n best ads for a search term ranked by metric.
func (s *Service) TopAds(ctx context.Context, searchTerm, metric string, n int) ([]models.Ad, error) {
	if n <= 0 {
		n = defaultTopAds
	}

	fetched, err := s.fetch(ctx, withDefaults(models.SearchParams{SearchTerms: searchTerm}))
	if err != nil {
		return nil, err
	}

	return analytics.TopN(fetched.ads, analytics.SortMetric(metric), n), nil
}

// PageInfo returns publisher page metadata.
func (s *Service) PageInfo(ctx context.Context, pageID string) (*models.PageInfo, error) {
	if pageID == "" {
		return nil, &ValidationError{Err: fmt.Errorf("page ID is required")}
	}
	return s.source.GetPageInfo(ctx, pageID)
}

// ClearCache drops every cached search.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	logrus.Info("Search cache cleared")
	return nil
}

func withDefaults(params models.SearchParams) models.SearchParams {
	if len(params.Countries) == 0 {
		params.Countries = []string{"ALL"}
	}
	if params.Limit <= 0 {
		params.Limit = defaultSearchLimit
	}
	return params
}

// fetch serves a search from the cache or, on a miss, from the upstream
// source. Cache failures degrade to a miss.
func (s *Service) fetch(ctx context.Context, params models.SearchParams) (*fetchResult, error) {
	key := cache.Key(params)

	ads, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		logrus.Warnf("Cache lookup failed, fetching upstream: %v", err)
	}
	s.recordCacheLookup(hit)
	if hit {
		return &fetchResult{ads: ads, cached: true}, nil
	}

	result, err := s.fetchUpstream(ctx, params)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, result.ads); err != nil {
		logrus.Warnf("Failed to cache search results: %v", err)
	}

	return result, nil
}

func (s *Service) fetchUpstream(ctx context.Context, params models.SearchParams) (*fetchResult, error) {
	start := time.Now()
	payload, err := s.source.FetchAds(ctx, params)
	s.recordUpstream(err, time.Since(start))
	if err != nil {
		return nil, err
	}

	normalized := normalizer.Normalize(payload, s.now())
	s.recordNormalized(len(normalized.Ads), len(normalized.Skipped))

	return &fetchResult{
		ads:        normalized.Ads,
		pagination: normalized.Pagination,
		skipped:    len(normalized.Skipped),
	}, nil
}

func upstreamStatus(err error) string {
	var fetchErr *sources.FetchError
	var rateErr *sources.RateLimitError
	switch {
	case err == nil:
		return "200"
	case errors.As(err, &rateErr):
		return "quota_exceeded"
	case errors.As(err, &fetchErr) && fetchErr.StatusCode != 0:
		return strconv.Itoa(fetchErr.StatusCode)
	case errors.As(err, &fetchErr):
		return "unreachable"
	default:
		return "error"
	}
}
