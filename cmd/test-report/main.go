package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adlibrary/ads-spy/internal/config"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/adlibrary/ads-spy/internal/monitoring"
	"github.com/adlibrary/ads-spy/internal/notifications"
	"github.com/adlibrary/ads-spy/internal/storage"
	"github.com/joho/godotenv"
)

const outputDir = "test_output"

// TestNotificationService prints reports to the terminal and saves them as JSON
type TestNotificationService struct {
	store storage.StorageInterface
}

func (t *TestNotificationService) SendReport(ctx context.Context, report *models.Report) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("📊 COMPETITOR WATCH REPORT: %q\n", report.SearchTerm)
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("📅 Period: %s\n", report.Period)
	fmt.Printf("🕒 Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("📈 Total Ads: %d\n", report.TotalAds)
	fmt.Printf("👁️  Impressions: %.0f (avg %.0f per ad)\n", report.Insights.TotalImpressions, report.Insights.AverageImpressions)
	fmt.Printf("💰 Spend: $%.2f (avg $%.2f per ad)\n", report.Insights.TotalSpend, report.Insights.AverageSpend)

	fmt.Println("\n📍 Platforms:")
	for _, p := range report.Insights.TopPlatforms {
		fmt.Printf("   • %-18s %d ads\n", p.Platform+":", p.Count)
	}

	fmt.Println("\n🏢 Competitors:")
	for _, c := range report.Competitors {
		fmt.Printf("   • %-22s %d ads (%d active), %.0f impressions\n",
			c.PageName+":", c.TotalAds, c.ActiveAds, c.TotalImpressions.Average)
	}

	fmt.Println("\n🔥 Top Ads:")
	for i, ad := range report.TopAds {
		if i >= 5 {
			fmt.Printf("   ... and %d more ads\n", len(report.TopAds)-5)
			break
		}
		fmt.Printf("\n   %d. [%s] %s\n", i+1, ad.PageName, firstOrEmpty(ad.Creative.Bodies))
		fmt.Printf("      👁️  %s impressions | 💰 %s spend | ⏱️  %d days\n",
			rawOr(ad.Impressions), rawOr(ad.Spend), ad.RuntimeDays)
		fmt.Printf("      📱 %s\n", strings.Join(ad.Platforms, ", "))
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	name := fmt.Sprintf("ads_report_%s.json", report.GeneratedAt.Format("2006-01-02_15-04-05"))
	if err := t.store.Store(ctx, name, data); err != nil {
		fmt.Printf("\n⚠️  Warning: Could not save to file: %v\n", err)
	} else {
		fmt.Printf("\n💾 Report saved to: %s\n", filepath.Join(outputDir, name))
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	return nil
}

func (t *TestNotificationService) SendAlert(ctx context.Context, alert *models.Alert) error {
	fmt.Println("\n🚨 ALERT")
	fmt.Printf("Type: %s\n", alert.Type)
	fmt.Printf("Message: %s\n", alert.Message)
	return nil
}

// fileStorage keeps reports under the local output directory
type fileStorage struct {
	dir string
}

func (f *fileStorage) Store(ctx context.Context, name string, data []byte) error {
	path := filepath.Join(f.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (f *fileStorage) Retrieve(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	return data, err
}

func (f *fileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(f.dir, prefix+"*"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimPrefix(m, f.dir+string(filepath.Separator)))
	}
	return names, nil
}

func (f *fileStorage) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(f.dir, name))
}

func main() {
	send := flag.Bool("send", false, "deliver the report through the configured Teams/email channels")
	term := flag.String("term", "running shoes", "search term shown on the report")
	flag.Parse()

	fmt.Println("🤖 Ads Spy - Test Report Generator")
	fmt.Println("==================================")

	cfg := &config.Config{ReportSchedule: "weekly"}
	if *send {
		if err := godotenv.Load(); err != nil {
			fmt.Println("No .env file found, using system environment variables")
		}
		loaded, err := config.Load()
		if err != nil {
			fmt.Printf("❌ Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	store := &fileStorage{dir: outputDir}
	var notifier notifications.NotificationInterface = &TestNotificationService{store: store}
	if *send {
		notifier = notifications.NewService(cfg)
	}

	service := monitoring.NewService(cfg, nil, nil, store, notifier, nil)

	ads := sampleAds(time.Now())
	fmt.Printf("\n📊 Generating report with %d sample ads...\n", len(ads))

	report := service.GenerateTestReport(*term, ads)

	if err := notifier.SendReport(context.Background(), report); err != nil {
		fmt.Printf("❌ Error sending report: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Test report generation completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Printf("   • Check the '%s' directory for the saved JSON report\n", outputDir)
	fmt.Println("   • Run 'go test ./internal/... -v' for the full test suite")
	fmt.Println("   • Set META_ACCESS_TOKEN and run the server with 'go run ./cmd/adspy'")
}

func sampleAds(now time.Time) []models.Ad {
	ad := func(id, pageID, pageName, body string, impMin, impMax, spendMin, spendMax float64, started time.Duration, active bool, platforms ...string) models.Ad {
		start := now.Add(-started)
		impRaw := fmt.Sprintf("%.0f-%.0f", impMin, impMax)
		spendRaw := fmt.Sprintf("%.0f-%.0f", spendMin, spendMax)
		a := models.Ad{
			ID:                id,
			PageID:            pageID,
			PageName:          pageName,
			CreationTime:      &start,
			DeliveryStartTime: &start,
			RuntimeDays:       int(started.Hours() / 24),
			IsActive:          active,
			Currency:          "USD",
			SnapshotURL:       "https://www.facebook.com/ads/archive/render_ad/?id=" + id,
			Impressions:       models.NewRange(impMin, impMax, &impRaw),
			Spend:             models.NewRange(spendMin, spendMax, &spendRaw),
			Creative:          models.Creative{Bodies: []string{body}},
			Demographics: []models.Demographic{
				{Age: "25-34", Gender: "female", Percentage: 0.42},
				{Age: "35-44", Gender: "male", Percentage: 0.31},
			},
			Platforms: platforms,
		}
		if !active {
			stop := now.Add(-24 * time.Hour)
			a.DeliveryStopTime = &stop
		}
		return a
	}

	day := 24 * time.Hour
	return []models.Ad{
		ad("sample_1", "1001", "Stride Athletics", "Our lightest running shoe yet. Free returns.", 50000, 59999, 1000, 1499, 12*day, true, "facebook", "instagram"),
		ad("sample_2", "1001", "Stride Athletics", "Marathon season sale: 30% off trail shoes.", 10000, 14999, 200, 299, 30*day, false, "facebook"),
		ad("sample_3", "2002", "Peak Runner", "Built for the long run. Shop the new collection.", 100000, 124999, 2500, 2999, 5*day, true, "instagram", "audience_network"),
		ad("sample_4", "2002", "Peak Runner", "Recovery sandals your feet will thank you for.", 1000, 1999, 0, 99, 45*day, false, "facebook", "messenger"),
		ad("sample_5", "3003", "Urban Sole", "City runners: meet your new daily trainer.", 20000, 24999, 500, 599, 8*day, true, "instagram"),
		ad("sample_6", "3003", "Urban Sole", "Reflective gear for evening runs.", 5000, 9999, 100, 199, 20*day, true, "facebook", "instagram"),
	}
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func rawOr(r models.Range) string {
	if r.Raw != nil {
		return *r.Raw
	}
	return fmt.Sprintf("%.0f", r.Average)
}
