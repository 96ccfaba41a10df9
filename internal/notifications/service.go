package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/adlibrary/ads-spy/internal/config"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const (
	reportCompetitorLimit = 5
	reportAdLimit         = 10
	alertAdLimit          = 5
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
	mailer mailSender
}

var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type emailContent struct {
	subject string
	text    string
	html    string
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
		mailer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

// SendReport sends a competitor watch report via configured notification channels
func (s *Service) SendReport(ctx context.Context, report *models.Report) error {
	email := func() (*emailContent, error) {
		html, err := buildReportHTML(report)
		if err != nil {
			return nil, fmt.Errorf("failed to build email HTML: %w", err)
		}
		return &emailContent{
			subject: fmt.Sprintf("Competitor Ads Report - %s: %q (%d ads)",
				titleCase(report.Period), report.SearchTerm, report.TotalAds),
			text: buildReportText(report),
			html: html,
		}, nil
	}

	return s.deliver(ctx, "report", buildReportCard(report), email)
}

// SendAlert sends a new-ads alert via configured notification channels
func (s *Service) SendAlert(ctx context.Context, alert *models.Alert) error {
	email := func() (*emailContent, error) {
		text := buildAlertText(alert)
		return &emailContent{
			subject: alert.Title,
			text:    text,
			html:    "<pre>" + template.HTMLEscapeString(text) + "</pre>",
		}, nil
	}

	return s.deliver(ctx, "alert", buildAlertCard(alert), email)
}

func (s *Service) deliver(ctx context.Context, kind string, card *TeamsMessage, email func() (*emailContent, error)) error {
	var errs []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, card); err != nil {
			logrus.Errorf("Failed to send Teams %s: %v", kind, err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Successfully sent %s to Teams", kind)
		}
	}

	if s.config.NotificationEmail != "" {
		content, err := email()
		if err == nil {
			err = s.sendEmail(content)
		}
		if err != nil {
			logrus.Errorf("Failed to send email %s: %v", kind, err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Successfully sent %s via email", kind)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(ctx context.Context, message *TeamsMessage) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) sendEmail(content *emailContent) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", content.subject)
	m.SetBody("text/plain", content.text)
	m.AddAlternative("text/html", content.html)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildReportCard(report *models.Report) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "1877F2",
		Title:      fmt.Sprintf("Competitor Ads Report - %s", titleCase(report.Period)),
		Text:       fmt.Sprintf("Found %d ads for **%s**", report.TotalAds, report.SearchTerm),
	}

	facts := []TeamsFact{
		{Name: "Total Ads", Value: fmt.Sprintf("%d", report.Insights.TotalAds)},
		{Name: "Advertisers", Value: fmt.Sprintf("%d", report.Insights.UniqueCompetitors)},
		{Name: "Est. Impressions", Value: formatCount(report.Insights.TotalImpressions)},
		{Name: "Est. Spend", Value: formatMoney(report.Insights.TotalSpend)},
		{Name: "Generated", Value: report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
	}
	for _, p := range report.Insights.TopPlatforms {
		facts = append(facts, TeamsFact{Name: titleCase(p.Platform), Value: fmt.Sprintf("%d ads", p.Count)})
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.Competitors) > 0 {
		var lines []string
		for i, c := range report.Competitors {
			if i >= reportCompetitorLimit {
				break
			}
			lines = append(lines, fmt.Sprintf("**%s** - %d ads (%d active), ~%s impressions, ~%s spend",
				c.PageName, c.TotalAds, c.ActiveAds, formatCount(c.TotalImpressions.Average), formatMoney(c.TotalSpend.Average)))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Advertisers",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if len(report.TopAds) > 0 {
		var lines []string
		for i, ad := range report.TopAds {
			if i >= alertAdLimit {
				break
			}
			lines = append(lines, adLine(ad))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Ads",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func buildAlertCard(alert *models.Alert) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "D13438",
		Title:      alert.Title,
		Text:       alert.Message,
	}

	if len(alert.Ads) > 0 {
		var lines []string
		for i, ad := range alert.Ads {
			if i >= alertAdLimit {
				break
			}
			lines = append(lines, adLine(ad))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "New Ads",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func adLine(ad models.Ad) string {
	headline := ad.PageName
	if len(ad.Creative.LinkTitles) > 0 && ad.Creative.LinkTitles[0] != "" {
		headline = ad.Creative.LinkTitles[0]
	}
	if ad.SnapshotURL != "" {
		headline = fmt.Sprintf("[%s](%s)", headline, ad.SnapshotURL)
	}

	started := "unknown start"
	if ad.DeliveryStartTime != nil {
		started = "since " + ad.DeliveryStartTime.Format("Jan 2")
	}

	return fmt.Sprintf("**%s** - %s, %s, ~%s impressions",
		headline, ad.PageName, started, formatCount(ad.Impressions.Average))
}

const reportTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Competitor Ads Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #1877f2; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .ad { border-left: 4px solid #1877f2; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .ad-title { font-weight: bold; margin-bottom: 5px; }
        .ad-meta { color: #666; font-size: 0.9em; }
        table { border-collapse: collapse; }
        td, th { padding: 4px 12px; text-align: left; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Competitor Ads Report: {{.SearchTerm}}</h1>
        <p>{{.Period | title}} report generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Ads:</strong> {{.Insights.TotalAds}}</p>
        <p><strong>Advertisers:</strong> {{.Insights.UniqueCompetitors}}</p>
        <p><strong>Estimated Impressions:</strong> {{count .Insights.TotalImpressions}}</p>
        <p><strong>Estimated Spend:</strong> {{money .Insights.TotalSpend}}</p>
        {{range .Insights.TopPlatforms}}
            <p><strong>{{.Platform | title}}:</strong> {{.Count}} ads</p>
        {{end}}
    </div>

    {{if .Competitors}}
    <h2>Top Advertisers</h2>
    <table>
        <tr><th>Page</th><th>Ads</th><th>Active</th><th>Impressions</th><th>Spend</th></tr>
        {{range $index, $c := .Competitors}}{{if lt $index 5}}
        <tr>
            <td>{{$c.PageName}}</td><td>{{$c.TotalAds}}</td><td>{{$c.ActiveAds}}</td>
            <td>{{count $c.TotalImpressions.Average}}</td><td>{{money $c.TotalSpend.Average}}</td>
        </tr>
        {{end}}{{end}}
    </table>
    {{end}}

    {{if .TopAds}}
    <h2>Top Ads</h2>
    {{range $index, $ad := .TopAds}}
        {{if lt $index 10}}
        <div class="ad">
            <div class="ad-title">
                <a href="{{$ad.SnapshotURL}}" target="_blank">{{$ad.PageName}}</a>
            </div>
            <div class="ad-meta">
                {{count $ad.Impressions.Average}} impressions | {{money $ad.Spend.Average}} spend | {{$ad.RuntimeDays}} days
            </div>
            {{range $ad.Creative.Bodies}}<p>{{truncate . 200}}</p>{{end}}
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by Ads Spy.</small></p>
</body>
</html>
`

var reportHTML = template.Must(template.New("report").Funcs(template.FuncMap{
	"title":    titleCase,
	"truncate": truncate,
	"count":    formatCount,
	"money":    formatMoney,
}).Parse(reportTemplate))

func buildReportHTML(report *models.Report) (string, error) {
	var buf bytes.Buffer
	if err := reportHTML.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildReportText(report *models.Report) string {
	var text strings.Builder

	fmt.Fprintf(&text, "Competitor Ads Report - %s\n", titleCase(report.Period))
	fmt.Fprintf(&text, "Search: %s\n", report.SearchTerm)
	fmt.Fprintf(&text, "Generated: %s\n\n", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	fmt.Fprintf(&text, "Total Ads: %d\n", report.Insights.TotalAds)
	fmt.Fprintf(&text, "Advertisers: %d\n", report.Insights.UniqueCompetitors)
	fmt.Fprintf(&text, "Estimated Impressions: %s\n", formatCount(report.Insights.TotalImpressions))
	fmt.Fprintf(&text, "Estimated Spend: %s\n", formatMoney(report.Insights.TotalSpend))

	if len(report.Competitors) > 0 {
		text.WriteString("\nTOP ADVERTISERS\n")
		text.WriteString("===============\n")
		for i, c := range report.Competitors {
			if i >= reportCompetitorLimit {
				break
			}
			fmt.Fprintf(&text, "%d. %s - %d ads (%d active), %s impressions, %s spend\n",
				i+1, c.PageName, c.TotalAds, c.ActiveAds, formatCount(c.TotalImpressions.Average), formatMoney(c.TotalSpend.Average))
		}
	}

	if len(report.TopAds) > 0 {
		text.WriteString("\nTOP ADS\n")
		text.WriteString("=======\n")
		for i, ad := range report.TopAds {
			if i >= reportAdLimit {
				break
			}
			fmt.Fprintf(&text, "\n%d. %s\n", i+1, ad.PageName)
			fmt.Fprintf(&text, "   Impressions: %s | Spend: %s | Runtime: %d days\n",
				formatCount(ad.Impressions.Average), formatMoney(ad.Spend.Average), ad.RuntimeDays)
			if ad.SnapshotURL != "" {
				fmt.Fprintf(&text, "   URL: %s\n", ad.SnapshotURL)
			}
			if len(ad.Creative.Bodies) > 0 {
				fmt.Fprintf(&text, "   Copy: %s\n", truncate(ad.Creative.Bodies[0], 200))
			}
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by Ads Spy.\n")

	return text.String()
}

func buildAlertText(alert *models.Alert) string {
	var text strings.Builder

	fmt.Fprintf(&text, "%s\n\n%s\n", alert.Title, alert.Message)
	for i, ad := range alert.Ads {
		if i >= alertAdLimit {
			fmt.Fprintf(&text, "\n...and %d more\n", len(alert.Ads)-alertAdLimit)
			break
		}
		fmt.Fprintf(&text, "\n- %s (%s)\n", ad.PageName, ad.ID)
		if ad.SnapshotURL != "" {
			fmt.Fprintf(&text, "  %s\n", ad.SnapshotURL)
		}
	}

	return text.String()
}
