package monitoring

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/adlibrary/ads-spy/internal/config"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/adlibrary/ads-spy/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	reportA = "0f8fad5b-d9cb-469f-a165-70867728950e"
	reportB = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func archiveReport(t *testing.T, store *storage.MemoryStorage, date, id string) {
	t.Helper()
	data, err := json.Marshal(models.Report{ID: id, SearchTerm: "shoes", TotalAds: 4})
	require.NoError(t, err)
	require.NoError(t, store.Store(context.Background(), reportName(date, id), data))
}

func TestService_ListReports(t *testing.T) {
	service, deps := newTestService(&config.Config{})
	ctx := context.Background()
	archiveReport(t, deps.storage, "2024-02-28", reportA)
	archiveReport(t, deps.storage, "2024-03-01", reportB)
	require.NoError(t, deps.storage.Store(ctx, "exports/other.json", []byte("{}")))

	refs, err := service.ListReports(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []models.ReportRef{
		{ID: reportB, Date: "2024-03-01"},
		{ID: reportA, Date: "2024-02-28"},
	}, refs)

	refs, err = service.ListReports(ctx, "2024-02-28")
	require.NoError(t, err)
	assert.Equal(t, []models.ReportRef{{ID: reportA, Date: "2024-02-28"}}, refs)

	refs, err = service.ListReports(ctx, "2023-01-01")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestService_GetAndDeleteReport(t *testing.T) {
	service, deps := newTestService(&config.Config{})
	ctx := context.Background()
	archiveReport(t, deps.storage, "2024-03-01", reportA)

	report, err := service.GetReport(ctx, "2024-03-01", reportA)
	require.NoError(t, err)
	assert.Equal(t, reportA, report.ID)
	assert.Equal(t, 4, report.TotalAds)

	require.NoError(t, service.DeleteReport(ctx, "2024-03-01", reportA))

	_, err = service.GetReport(ctx, "2024-03-01", reportA)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, service.DeleteReport(ctx, "2024-03-01", reportA), storage.ErrNotFound)
}

func TestService_ReportRefValidation(t *testing.T) {
	service, _ := newTestService(&config.Config{})
	ctx := context.Background()

	tests := []struct {
		name string
		date string
		id   string
	}{
		{name: "Bad date", date: "01-03-2024", id: reportA},
		{name: "Path in date", date: "../secrets", id: reportA},
		{name: "Bad ID", date: "2024-03-01", id: "../../etc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var validationErr *ValidationError

			_, err := service.GetReport(ctx, tt.date, tt.id)
			assert.ErrorAs(t, err, &validationErr)

			assert.ErrorAs(t, service.DeleteReport(ctx, tt.date, tt.id), &validationErr)
		})
	}

	_, err := service.ListReports(ctx, "yesterday")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestService_RunMonitoringReportsAreListed(t *testing.T) {
	service, deps := newTestService(&config.Config{WatchTerms: []string{"shoes"}})
	deps.source.On("FetchAds", mock.Anything, mock.Anything).Return(samplePayload(), nil)
	deps.notifications.On("SendReport", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, service.RunMonitoring())

	refs, err := service.ListReports(context.Background(), "2024-03-01")
	require.NoError(t, err)
	require.Len(t, refs, 1)

	report, err := service.GetReport(context.Background(), refs[0].Date, refs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "shoes", report.SearchTerm)
}
