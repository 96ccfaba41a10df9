package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	reportPrefix     = "reports/"
	reportDateLayout = "2006-01-02"
)

func reportName(date, id string) string {
	return fmt.Sprintf("%s%s/%s.json", reportPrefix, date, id)
}

// validateReportRef rejects anything that is not a calendar date and a
// report UUID, so callers cannot address other archive objects.
func validateReportRef(date, id string) error {
	if _, err := time.Parse(reportDateLayout, date); err != nil {
		return &ValidationError{Err: fmt.Errorf("invalid report date %q, expected YYYY-MM-DD", date)}
	}
	if id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return &ValidationError{Err: fmt.Errorf("invalid report ID %q", id)}
		}
	}
	return nil
}

// ListReports returns the archived reports, newest date first. An empty
// date lists the whole archive.
func (s *Service) ListReports(ctx context.Context, date string) ([]models.ReportRef, error) {
	prefix := reportPrefix
	if date != "" {
		if err := validateReportRef(date, ""); err != nil {
			return nil, err
		}
		prefix = reportPrefix + date + "/"
	}

	names, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	refs := make([]models.ReportRef, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		dir, file := path.Split(strings.TrimPrefix(names[i], reportPrefix))
		if dir == "" || !strings.HasSuffix(file, ".json") {
			continue
		}
		refs = append(refs, models.ReportRef{
			ID:   strings.TrimSuffix(file, ".json"),
			Date: strings.TrimSuffix(dir, "/"),
		})
	}
	return refs, nil
}

// GetReport loads one archived report.
func (s *Service) GetReport(ctx context.Context, date, id string) (*models.Report, error) {
	if err := validateReportRef(date, id); err != nil {
		return nil, err
	}

	data, err := s.storage.Retrieve(ctx, reportName(date, id))
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &report, nil
}

// DeleteReport removes one archived report.
func (s *Service) DeleteReport(ctx context.Context, date, id string) error {
	if err := validateReportRef(date, id); err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, reportName(date, id)); err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	logrus.Infof("Deleted archived report %s from %s", id, date)
	return nil
}
