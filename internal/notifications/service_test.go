package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adlibrary/ads-spy/internal/config"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) DialAndSend(msgs ...*gomail.Message) error {
	args := m.Called(len(msgs))
	return args.Error(0)
}

func sampleReport() *models.Report {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	ads := []models.Ad{
		{
			ID:                "ad1",
			PageID:            "p1",
			PageName:          "Acme Shoes",
			SnapshotURL:       "https://www.facebook.com/ads/archive/render_ad/?id=ad1",
			DeliveryStartTime: &start,
			Impressions:       models.NewRange(1000, 5000, nil),
			Spend:             models.NewRange(100, 500, nil),
			RuntimeDays:       29,
			Creative:          models.Creative{Bodies: []string{"Run faster <b>today</b>"}, LinkTitles: []string{"Spring sale"}},
		},
	}

	return &models.Report{
		ID:          "r1",
		GeneratedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Period:      "weekly",
		SearchTerm:  "running shoes",
		TotalAds:    1,
		Insights: models.Insights{
			TotalAds:          1,
			TotalImpressions:  1234567,
			TotalSpend:        300,
			UniqueCompetitors: 1,
			TopPlatforms:      []models.PlatformCount{{Platform: "facebook", Count: 1}},
		},
		Competitors: []models.CompetitorSummary{{
			PageID:           "p1",
			PageName:         "Acme Shoes",
			TotalAds:         1,
			ActiveAds:        1,
			TotalImpressions: models.RangeTotal{Min: 1000, Max: 5000, Average: 3000},
			TotalSpend:       models.RangeTotal{Min: 100, Max: 500, Average: 300},
		}},
		TopAds: ads,
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "Small count", got: formatCount(999), expected: "999"},
		{name: "Grouped count", got: formatCount(1234567), expected: "1,234,567"},
		{name: "Rounded count", got: formatCount(2999.6), expected: "3,000"},
		{name: "Money", got: formatMoney(1234.5), expected: "$1,234.50"},
		{name: "Zero money", got: formatMoney(0), expected: "$0.00"},
		{name: "Negative", got: groupThousands("-1234"), expected: "-1,234"},
		{name: "Title", got: titleCase("weekly"), expected: "Weekly"},
		{name: "Truncate", got: truncate("abcdef", 3), expected: "abc..."},
		{name: "No truncate", got: truncate("abc", 3), expected: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestBuildReportCard(t *testing.T) {
	card := buildReportCard(sampleReport())

	assert.Equal(t, "MessageCard", card.Type)
	assert.Equal(t, "Competitor Ads Report - Weekly", card.Title)
	assert.Contains(t, card.Text, "running shoes")
	require.Len(t, card.Sections, 3)
	assert.Contains(t, card.Sections[0].Facts, TeamsFact{Name: "Est. Impressions", Value: "1,234,567"})
	assert.Contains(t, card.Sections[0].Facts, TeamsFact{Name: "Facebook", Value: "1 ads"})
	assert.Contains(t, card.Sections[1].ActivityText, "**Acme Shoes** - 1 ads (1 active)")
	assert.Contains(t, card.Sections[2].ActivityText, "[Spring sale](https://www.facebook.com/ads/archive/render_ad/?id=ad1)")
}

func TestBuildReportHTML(t *testing.T) {
	html, err := buildReportHTML(sampleReport())
	require.NoError(t, err)

	assert.Contains(t, html, "Competitor Ads Report: running shoes")
	assert.Contains(t, html, "Weekly report generated on March 1, 2024")
	assert.Contains(t, html, "$300.00")
	assert.Contains(t, html, "Run faster &lt;b&gt;today&lt;/b&gt;", "ad copy must be escaped")
}

func TestBuildReportText(t *testing.T) {
	text := buildReportText(sampleReport())

	assert.Contains(t, text, "Search: running shoes")
	assert.Contains(t, text, "1. Acme Shoes - 1 ads (1 active), 3,000 impressions, $300.00 spend")
	assert.Contains(t, text, "Runtime: 29 days")
}

func TestSendReport_Teams(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})

	err := service.SendReport(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "Competitor Ads Report - Weekly", received.Title)
}

func TestSendReport_TeamsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad card"))
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})

	err := service.SendReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Teams: teams webhook returned status 400")
}

func TestSendReport_Email(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("DialAndSend", 1).Return(nil)

	service := NewService(&config.Config{NotificationEmail: "team@example.com", SMTPUsername: "bot@example.com"})
	service.mailer = mailer

	require.NoError(t, service.SendReport(context.Background(), sampleReport()))
	mailer.AssertExpectations(t)
}

func TestSendAlert_EmailFailure(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("DialAndSend", 1).Return(errors.New("connection refused"))

	service := NewService(&config.Config{NotificationEmail: "team@example.com"})
	service.mailer = mailer

	err := service.SendAlert(context.Background(), &models.Alert{Title: "New ads", Message: "Acme launched 2 ads"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email: failed to send email: connection refused")
}

func TestSendAlert_NoChannels(t *testing.T) {
	service := NewService(&config.Config{})
	assert.NoError(t, service.SendAlert(context.Background(), &models.Alert{Title: "New ads"}))
}

func TestBuildAlert(t *testing.T) {
	ads := make([]models.Ad, 7)
	for i := range ads {
		ads[i] = models.Ad{ID: string(rune('a' + i)), PageName: "Acme"}
	}
	alert := &models.Alert{Title: "Acme launched 7 new ads", Message: "Watched page 123 has new ads", Ads: ads}

	card := buildAlertCard(alert)
	assert.Equal(t, "Acme launched 7 new ads", card.Title)
	require.Len(t, card.Sections, 1)

	text := buildAlertText(alert)
	assert.Contains(t, text, "...and 2 more")
}
