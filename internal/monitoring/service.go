package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/adlibrary/ads-spy/internal/analytics"
	"github.com/adlibrary/ads-spy/internal/cache"
	"github.com/adlibrary/ads-spy/internal/config"
	"github.com/adlibrary/ads-spy/internal/metrics"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/adlibrary/ads-spy/internal/notifications"
	"github.com/adlibrary/ads-spy/internal/sources"
	"github.com/adlibrary/ads-spy/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	watchRunTimeout    = 30 * time.Minute
	newAdsCheckTimeout = 10 * time.Minute
)

// Service runs ad searches and the scheduled competitor watches
type Service struct {
	config              *config.Config
	source              sources.AdSource
	cache               cache.Cache
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	promMetrics         *metrics.Metrics
	runMetrics          *RunMetrics
	seenAds             map[string]map[string]struct{} // page ID -> ad IDs
	now                 func() time.Time
	mu                  sync.RWMutex
}

// RunMetrics holds service counters exposed as JSON
type RunMetrics struct {
	Searches        int       `json:"searches"`
	CacheHits       int       `json:"cache_hits"`
	CacheMisses     int       `json:"cache_misses"`
	UpstreamErrors  int       `json:"upstream_errors"`
	SkippedRecords  int       `json:"skipped_records"`
	ReportsSent     int       `json:"reports_sent"`
	AlertsSent      int       `json:"alerts_sent"`
	LastRun         time.Time `json:"last_run"`
	LastRunDuration string    `json:"last_run_duration"`
	LastRunAds      int       `json:"last_run_ads"`
	ErrorCount      int       `json:"error_count"`
	QuotaRemaining  *int      `json:"quota_remaining,omitempty"`
}

type quotaReporter interface {
	RemainingQuota() int
}

// NewService creates a new search and watch service. promMetrics may be nil.
func NewService(
	cfg *config.Config,
	source sources.AdSource,
	resultCache cache.Cache,
	store storage.StorageInterface,
	notificationService notifications.NotificationInterface,
	promMetrics *metrics.Metrics,
) *Service {
	return &Service{
		config:              cfg,
		source:              source,
		cache:               resultCache,
		storage:             store,
		notificationService: notificationService,
		promMetrics:         promMetrics,
		runMetrics:          &RunMetrics{},
		seenAds:             make(map[string]map[string]struct{}),
		now:                 time.Now,
	}
}

// RunMonitoring searches every watched term, archives a report per term and
// sends it through the configured notification channels.
func (s *Service) RunMonitoring() error {
	start := time.Now()
	logrus.Info("Starting competitor watch run")

	ctx, cancel := context.WithTimeout(context.Background(), watchRunTimeout)
	defer cancel()

	terms := s.config.WatchTerms
	if len(terms) == 0 && len(s.config.WatchPageIDs) == 0 {
		logrus.Info("No watch terms or pages configured, skipping run")
		return nil
	}
	if len(terms) == 0 {
		terms = []string{""}
	}

	dateMin := s.now().Add(-s.searchWindow()).Format("2006-01-02")
	logrus.Infof("Searching %d watch terms for ads delivered since %s", len(terms), dateMin)

	var wg sync.WaitGroup
	reportsChan := make(chan *models.Report, len(terms))
	errorsChan := make(chan error, len(terms))

	for _, term := range terms {
		wg.Add(1)
		go func(term string) {
			defer wg.Done()

			result, err := s.Search(ctx, models.SearchRequest{
				Params: models.SearchParams{
					SearchTerms:   term,
					Countries:     s.config.WatchCountries,
					SearchPageIDs: s.config.WatchPageIDs,
					DateMin:       dateMin,
				},
				SortBy: string(analytics.MetricImpressions),
			})
			if err != nil {
				logrus.Errorf("Watch search for %q failed: %v", term, err)
				errorsChan <- err
				return
			}

			logrus.Infof("Found %d ads for watch term %q", result.TotalResults, term)
			reportsChan <- s.generateReport(term, result)
		}(term)
	}

	go func() {
		wg.Wait()
		close(reportsChan)
		close(errorsChan)
	}()

	var reports []*models.Report
	totalAds := 0
	for report := range reportsChan {
		reports = append(reports, report)
		totalAds += report.TotalAds
	}

	errorCount := 0
	var firstErr error
	for err := range errorsChan {
		if firstErr == nil {
			firstErr = err
		}
		errorCount++
	}

	for _, report := range reports {
		if err := s.storeReport(ctx, report); err != nil {
			logrus.Errorf("Failed to archive report %s: %v", report.ID, err)
			errorCount++
		}

		if err := s.notificationService.SendReport(ctx, report); err != nil {
			logrus.Errorf("Failed to send report for %q: %v", report.SearchTerm, err)
			if firstErr == nil {
				firstErr = err
			}
			errorCount++
			continue
		}
		s.mu.Lock()
		s.runMetrics.ReportsSent++
		s.mu.Unlock()
	}

	s.updateRunMetrics(totalAds, time.Since(start), errorCount)
	if s.promMetrics != nil {
		s.promMetrics.RecordWatchRun("report", firstErr)
	}

	if firstErr != nil {
		return fmt.Errorf("watch run finished with %d errors: %w", errorCount, firstErr)
	}

	logrus.Infof("Competitor watch run completed in %v", time.Since(start))
	return nil
}

// RunNewAdsCheck looks for active ads on the watched pages that were not
// seen by a previous check and sends an alert per page. The first check of
// a page only records a baseline.
func (s *Service) RunNewAdsCheck() error {
	start := time.Now()
	if len(s.config.WatchPageIDs) == 0 {
		logrus.Debug("No watched pages configured, skipping new ads check")
		return nil
	}

	logrus.Infof("Checking %d watched pages for new ads", len(s.config.WatchPageIDs))

	ctx, cancel := context.WithTimeout(context.Background(), newAdsCheckTimeout)
	defer cancel()

	var firstErr error
	for _, pageID := range s.config.WatchPageIDs {
		fetched, err := s.fetchUpstream(ctx, withDefaults(models.SearchParams{
			Countries:     s.config.WatchCountries,
			ActiveStatus:  "ACTIVE",
			SearchPageIDs: []string{pageID},
		}))
		if err != nil {
			logrus.Errorf("New ads check for page %s failed: %v", pageID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		newAds, baseline := s.diffSeen(pageID, fetched.ads)
		if baseline {
			logrus.Infof("Recorded baseline of %d active ads for page %s", len(fetched.ads), pageID)
			continue
		}
		if len(newAds) == 0 {
			continue
		}

		alert := s.newAdsAlert(pageID, newAds)
		if err := s.notificationService.SendAlert(ctx, alert); err != nil {
			logrus.Errorf("Failed to send new ads alert for page %s: %v", pageID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		s.mu.Lock()
		s.runMetrics.AlertsSent++
		s.mu.Unlock()
		if s.promMetrics != nil {
			s.promMetrics.RecordAlert()
		}
	}

	if s.promMetrics != nil {
		s.promMetrics.RecordWatchRun("new_ads", firstErr)
	}
	if firstErr != nil {
		return fmt.Errorf("new ads check failed: %w", firstErr)
	}

	logrus.Infof("New ads check completed in %v", time.Since(start))
	return nil
}

// diffSeen records ads as seen for a page and returns those not seen before.
// baseline is true when the page had never been checked.
func (s *Service) diffSeen(pageID string, ads []models.Ad) (newAds []models.Ad, baseline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen, ok := s.seenAds[pageID]
	if !ok {
		seen = make(map[string]struct{}, len(ads))
		s.seenAds[pageID] = seen
	}

	for _, ad := range ads {
		if _, known := seen[ad.ID]; known {
			continue
		}
		seen[ad.ID] = struct{}{}
		if ok {
			newAds = append(newAds, ad)
		}
	}

	return newAds, !ok
}

func (s *Service) newAdsAlert(pageID string, ads []models.Ad) *models.Alert {
	pageName := pageID
	if len(ads) > 0 && ads[0].PageName != "" {
		pageName = ads[0].PageName
	}

	return &models.Alert{
		ID:        uuid.NewString(),
		Type:      "new_ads",
		Title:     fmt.Sprintf("%s launched %d new ads", pageName, len(ads)),
		Message:   fmt.Sprintf("Watched page %s started running %d ads since the last check.", pageID, len(ads)),
		PageID:    pageID,
		Ads:       ads,
		CreatedAt: s.now(),
	}
}

func (s *Service) searchWindow() time.Duration {
	if s.config.ReportSchedule == "daily" {
		return 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

func (s *Service) generateReport(term string, result *models.SearchResult) *models.Report {
	return &models.Report{
		ID:          uuid.NewString(),
		GeneratedAt: s.now(),
		Period:      s.config.ReportSchedule,
		SearchTerm:  term,
		TotalAds:    result.TotalResults,
		Insights:    result.Insights,
		Competitors: result.Competitors,
		TopAds:      result.TopAds,
	}
}

func (s *Service) storeReport(ctx context.Context, report *models.Report) error {
	if s.storage == nil {
		return nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return s.storage.Store(ctx, reportName(report.GeneratedAt.Format(reportDateLayout), report.ID), data)
}

// GenerateTestReport builds a report from sample ads without contacting the
// upstream API.
func (s *Service) GenerateTestReport(term string, ads []models.Ad) *models.Report {
	sorted, _ := analytics.Sort(ads, analytics.MetricImpressions, analytics.Descending)
	return s.generateReport(term, &models.SearchResult{
		Ads:          sorted,
		Insights:     analytics.Summarize(sorted),
		Competitors:  analytics.AggregateCompetitors(sorted),
		TopAds:       analytics.TopN(sorted, analytics.MetricImpressions, defaultTopAds),
		TotalResults: len(sorted),
	})
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	snapshot := *s.runMetrics
	s.mu.RUnlock()

	if q, ok := s.source.(quotaReporter); ok {
		remaining := q.RemainingQuota()
		snapshot.QuotaRemaining = &remaining
	}

	data, _ := json.MarshalIndent(snapshot, "", "  ")
	return string(data)
}

func (s *Service) updateRunMetrics(totalAds int, duration time.Duration, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runMetrics.LastRun = s.now()
	s.runMetrics.LastRunDuration = duration.String()
	s.runMetrics.LastRunAds = totalAds
	s.runMetrics.ErrorCount = errorCount
}

func (s *Service) recordSearch(outcome string) {
	s.mu.Lock()
	s.runMetrics.Searches++
	s.mu.Unlock()

	if s.promMetrics != nil {
		s.promMetrics.RecordSearch(outcome)
	}
}

func (s *Service) recordCacheLookup(hit bool) {
	s.mu.Lock()
	if hit {
		s.runMetrics.CacheHits++
	} else {
		s.runMetrics.CacheMisses++
	}
	s.mu.Unlock()

	if s.promMetrics != nil {
		s.promMetrics.RecordCacheLookup(hit)
	}
}

func (s *Service) recordUpstream(err error, latency time.Duration) {
	if err != nil {
		s.mu.Lock()
		s.runMetrics.UpstreamErrors++
		s.mu.Unlock()
	}

	if s.promMetrics != nil {
		remaining := 0
		if q, ok := s.source.(quotaReporter); ok {
			remaining = q.RemainingQuota()
		}
		s.promMetrics.RecordUpstream(upstreamStatus(err), latency, remaining)
	}
}

func (s *Service) recordNormalized(ads, skipped int) {
	s.mu.Lock()
	s.runMetrics.SkippedRecords += skipped
	s.mu.Unlock()

	if s.promMetrics != nil {
		s.promMetrics.RecordNormalized(ads, skipped)
	}
}
