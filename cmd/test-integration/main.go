package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/adlibrary/ads-spy/internal/cache"
	"github.com/adlibrary/ads-spy/internal/config"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/adlibrary/ads-spy/internal/monitoring"
	"github.com/adlibrary/ads-spy/internal/sources"
	"github.com/adlibrary/ads-spy/internal/storage"
	"github.com/joho/godotenv"
)

// consoleNotifier prints what would have been delivered
type consoleNotifier struct{}

func (c *consoleNotifier) SendReport(ctx context.Context, report *models.Report) error {
	fmt.Println("\n🎉 REPORT GENERATED!")
	fmt.Printf("🔎 Term: %s\n", report.SearchTerm)
	fmt.Printf("📊 Total Ads: %d from %d competitors\n", report.TotalAds, report.Insights.UniqueCompetitors)
	for i, ad := range report.TopAds {
		if i >= 3 {
			break
		}
		fmt.Printf("   %d. [%s] %.0f impressions\n", i+1, ad.PageName, ad.Impressions.Average)
	}
	return nil
}

func (c *consoleNotifier) SendAlert(ctx context.Context, alert *models.Alert) error {
	fmt.Printf("🚨 ALERT: %s\n", alert.Message)
	return nil
}

func main() {
	fmt.Println("🧪 Ads Spy - Local Integration Test")
	fmt.Println("===================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if len(cfg.WatchTerms) == 0 {
		cfg.WatchTerms = []string{"running shoes"}
	}
	cfg.ReportSchedule = "daily"

	source := sources.NewMetaAdsSource(cfg.MetaAccessToken, cfg.MetaAPIBaseURL, cfg.MetaRateLimit, cfg.MetaRateLimitWindow)
	if !source.IsEnabled() {
		fmt.Println("⚠️  META_ACCESS_TOKEN is not set, nothing to test")
		os.Exit(1)
	}

	store := storage.NewMemoryStorage()
	service := monitoring.NewService(cfg, source, cache.NewMemoryCache(cfg.CacheTTL, nil), store, &consoleNotifier{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	term := cfg.WatchTerms[0]
	req := models.SearchRequest{
		Params: models.SearchParams{SearchTerms: term, Countries: cfg.WatchCountries},
		SortBy: "reach",
	}

	for _, attempt := range []string{"First", "Second"} {
		fmt.Printf("\n🔸 %s search for %q...\n", attempt, term)
		start := time.Now()
		result, err := service.Search(ctx, req)
		if err != nil {
			fmt.Printf("   ❌ Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("   ✅ %d ads (cached: %t, skipped: %d) in %s\n",
			result.TotalResults, result.Cached, result.Skipped, time.Since(start).Round(time.Millisecond))
		if len(result.Competitors) > 0 {
			top := result.Competitors[0]
			fmt.Printf("   🏢 Largest competitor: %s with %d ads\n", top.PageName, top.TotalAds)
		}
	}

	fmt.Println("\n🔍 Running full watch cycle...")
	if err := service.RunMonitoring(); err != nil {
		fmt.Printf("   ❌ Watch run failed: %v\n", err)
	}

	refs, err := service.ListReports(ctx, "")
	if err == nil {
		fmt.Printf("\n📁 %d reports archived\n", len(refs))
		for _, ref := range refs {
			report, err := service.GetReport(ctx, ref.Date, ref.ID)
			if err != nil {
				fmt.Printf("   ❌ %s/%s: %v\n", ref.Date, ref.ID, err)
				continue
			}
			fmt.Printf("   📄 %s %q: %d ads\n", ref.Date, report.SearchTerm, report.TotalAds)
		}
	}

	fmt.Println("\n📈 Service metrics:")
	fmt.Println(service.GetMetrics())

	fmt.Println("\n✅ Local integration test completed!")
}
