package scheduler

import (
	"fmt"
	"time"

	"github.com/adlibrary/ads-spy/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	dailyReportSpec  = "0 0 9 * * *"
	weeklyReportSpec = "0 0 9 * * MON"
	newAdsCheckSpec  = "0 0 */4 * * *"
)

// Watcher is the work the scheduler triggers
type Watcher interface {
	RunMonitoring() error
	RunNewAdsCheck() error
}

// Service handles scheduling of competitor watch runs
type Service struct {
	config  *config.Config
	watcher Watcher
	cron    *cron.Cron
}

// NewService creates a new scheduler service running in the configured time zone
func NewService(cfg *config.Config, watcher Watcher) (*Service, error) {
	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}

	return &Service{
		config:  cfg,
		watcher: watcher,
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(location)),
	}, nil
}

func reportSpec(schedule string) string {
	if schedule == "daily" {
		return dailyReportSpec
	}
	return weeklyReportSpec
}

// Start registers the watch jobs and starts the cron loop
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(reportSpec(s.config.ReportSchedule), func() {
		logrus.Info("Starting scheduled competitor watch run")
		if err := s.watcher.RunMonitoring(); err != nil {
			logrus.Errorf("Scheduled watch run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule watch run: %w", err)
	}

	_, err = s.cron.AddFunc(newAdsCheckSpec, func() {
		logrus.Info("Starting new ads check (4-hour frequency)")
		if err := s.watcher.RunNewAdsCheck(); err != nil {
			logrus.Errorf("New ads check failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule new ads check: %w", err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s watch reports (plus new ads checks every 4 hours) in %s",
		s.config.ReportSchedule, s.config.TimeZone)
	return nil
}

// Entries returns the number of registered jobs
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the scheduler and waits for running jobs
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
