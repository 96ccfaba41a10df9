package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/adlibrary/ads-spy/internal/config"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/adlibrary/ads-spy/internal/normalizer"
	"github.com/adlibrary/ads-spy/internal/sources"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🔍 Ads Spy - Meta Ad Library Connectivity Test")
	fmt.Println("==============================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	term := "running shoes"
	if len(os.Args) > 1 {
		term = strings.Join(os.Args[1:], " ")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	source := sources.NewMetaAdsSource(cfg.MetaAccessToken, cfg.MetaAPIBaseURL, cfg.MetaRateLimit, cfg.MetaRateLimitWindow)

	fmt.Printf("\n📡 Searching ads for %q...\n", term)
	fmt.Println(strings.Repeat("-", 40))

	if !source.IsEnabled() {
		fmt.Println("⚠️  DISABLED (META_ACCESS_TOKEN is not set)")
		os.Exit(1)
	}

	payload, err := source.FetchAds(ctx, models.SearchParams{
		SearchTerms:  term,
		Countries:    []string{"ALL"},
		ActiveStatus: sources.DefaultActiveStatus,
		Limit:        25,
	})
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		os.Exit(1)
	}

	result := normalizer.Normalize(payload, time.Now())
	fmt.Printf("✅ SUCCESS (%d raw records, %d ads, %d skipped)\n",
		len(payload.Data), len(result.Ads), len(result.Skipped))
	for _, skipped := range result.Skipped {
		fmt.Printf("   ⚠️  Record %d (%s): %s\n", skipped.Index, skipped.ID, skipped.Reason)
	}

	if len(result.Ads) == 0 {
		fmt.Printf("\n📊 Remaining quota: %d requests\n", source.RemainingQuota())
		return
	}

	sample := result.Ads[0]
	fmt.Printf("   📝 Sample: %s (page %s), %.0f impressions, %d days running\n",
		sample.PageName, sample.PageID, sample.Impressions.Average, sample.RuntimeDays)

	fmt.Printf("\n📄 Looking up page %s...\n", sample.PageID)
	info, err := source.GetPageInfo(ctx, sample.PageID)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
	} else {
		fmt.Printf("✅ %s (%s), %d followers\n", info.Name, info.Category, info.FollowersCount)
	}

	fmt.Printf("\n📊 Remaining quota: %d requests\n", source.RemainingQuota())
	fmt.Println("\n✅ API connectivity test completed!")
}
