package snapshot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adlibrary/ads-spy/internal/metrics"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const (
	renderAdPath = "facebook.com/ads/archive/render_ad"
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

	minImageSide   = 150
	maxImageRefs   = 10
	viewportWidth  = 1366
	viewportHeight = 768
)

// ErrInvalidURL is returned for URLs that are not ad snapshot render pages.
var ErrInvalidURL = errors.New(`invalid Facebook ad URL. Must contain "` + renderAdPath + `"`)

// ErrNoImages is matched by NoImagesError.
var ErrNoImages = errors.New("no ad images found on the page. The page may require login or the ad may have been removed")

// NoImagesError carries a debug screenshot of the page that had no usable images.
type NoImagesError struct {
	Screenshot []byte
}

func (e *NoImagesError) Error() string { return ErrNoImages.Error() }

func (e *NoImagesError) Is(target error) bool { return target == ErrNoImages }

// DataURL renders the screenshot as a PNG data URL, or "" when none was taken.
func (e *NoImagesError) DataURL() string {
	if len(e.Screenshot) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(e.Screenshot)
}

type Config struct {
	Timeout    time.Duration
	RenderWait time.Duration
	Headless   bool
}

// candidate is one <img> as reported by the rendered page.
type candidate struct {
	Src     string `json:"src"`
	Alt     string `json:"alt"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Visible bool   `json:"visible"`
}

const collectImagesJS = `Array.from(document.querySelectorAll('img')).map(img => {
	const style = window.getComputedStyle(img);
	return {
		src: img.src || '',
		alt: img.alt || '',
		width: img.naturalWidth || img.width || 0,
		height: img.naturalHeight || img.height || 0,
		visible: style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0'
	};
})`

// Extractor renders ad snapshot pages in headless Chrome and picks the
// main creative image.
type Extractor struct {
	config  Config
	metrics *metrics.Metrics
}

func NewExtractor(cfg Config, m *metrics.Metrics) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Extractor{config: cfg, metrics: m}
}

// ValidateURL checks that url points at an ad snapshot render page.
func ValidateURL(url string) error {
	if url == "" || !strings.Contains(url, renderAdPath) {
		return ErrInvalidURL
	}
	return nil
}

// Extract loads the snapshot page and returns the largest ad image on it.
// A zero timeout uses the configured default.
func (e *Extractor) Extract(ctx context.Context, url string, timeout time.Duration) (*models.ImageExtraction, error) {
	if err := ValidateURL(url); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = e.config.Timeout
	}

	start := time.Now()
	result, err := e.extract(ctx, url, timeout)
	e.record(err, time.Since(start))
	if err != nil {
		return nil, err
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	logrus.Infof("Extracted ad image %dx%d (%d candidates) in %dms",
		result.Dimensions.Width, result.Dimensions.Height, result.TotalImagesFound, result.ProcessingTimeMs)
	return result, nil
}

func (e *Extractor) extract(ctx context.Context, url string, timeout time.Duration) (*models.ImageExtraction, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(viewportWidth, viewportHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, timeout)
	defer timeoutCancel()

	var raw []candidate
	err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "en-US,en;q=0.9",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		}),
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(e.config.RenderWait),
		chromedp.Evaluate(collectImagesJS, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render ad snapshot: %w", err)
	}

	images := filterCandidates(raw)
	logrus.Debugf("Snapshot page had %d images, %d usable", len(raw), len(images))

	if len(images) == 0 {
		var screenshot []byte
		if err := chromedp.Run(browserCtx, chromedp.CaptureScreenshot(&screenshot)); err != nil {
			logrus.Warnf("Could not take debug screenshot: %v", err)
		}
		return nil, &NoImagesError{Screenshot: screenshot}
	}

	return buildExtraction(url, images), nil
}

func (e *Extractor) record(err error, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case errors.Is(err, ErrNoImages):
		outcome = "no_images"
	case err != nil:
		outcome = "error"
	}
	e.metrics.RecordExtraction(outcome, latency)
}

// filterCandidates keeps visible CDN-hosted images that are large enough to
// be creatives, largest first.
func filterCandidates(raw []candidate) []candidate {
	images := make([]candidate, 0, len(raw))
	for _, img := range raw {
		if img.Src == "" || !img.Visible {
			continue
		}
		if strings.Contains(img.Src, "data:") ||
			strings.Contains(img.Src, "static.xx.fbcdn.net/rsrc.php") ||
			strings.Contains(img.Src, "icon") ||
			strings.Contains(img.Src, "logo") {
			continue
		}
		if img.Width <= minImageSide && img.Height <= minImageSide {
			continue
		}
		if !strings.Contains(img.Src, "scontent") &&
			!strings.Contains(img.Src, "fbcdn") &&
			!strings.Contains(img.Src, "lookaside") {
			continue
		}
		images = append(images, img)
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Width*images[i].Height > images[j].Width*images[j].Height
	})
	return images
}

func buildExtraction(url string, images []candidate) *models.ImageExtraction {
	best := images[0]

	refs := make([]models.ImageRef, 0, maxImageRefs)
	for i, img := range images {
		if i == maxImageRefs {
			break
		}
		refs = append(refs, models.ImageRef{
			URL:        img.Src,
			Dimensions: models.ImageDimensions{Width: img.Width, Height: img.Height},
			Alt:        img.Alt,
		})
	}

	return &models.ImageExtraction{
		ImageURL:         best.Src,
		Dimensions:       models.ImageDimensions{Width: best.Width, Height: best.Height},
		TotalImagesFound: len(images),
		AllImages:        refs,
		OriginalURL:      url,
	}
}
