package api

import (
	"context"
	"net/http"
	"time"

	"github.com/adlibrary/ads-spy/internal/metrics"
	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// AdService is the search and watch surface the API exposes.
type AdService interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error)
	Competitors(ctx context.Context, searchTerm string) ([]models.CompetitorSummary, error)
	TopAds(ctx context.Context, searchTerm, metric string, n int) ([]models.Ad, error)
	PageInfo(ctx context.Context, pageID string) (*models.PageInfo, error)
	ClearCache(ctx context.Context) error
	ListReports(ctx context.Context, date string) ([]models.ReportRef, error)
	GetReport(ctx context.Context, date, id string) (*models.Report, error)
	DeleteReport(ctx context.Context, date, id string) error
	RunMonitoring() error
	GetMetrics() string
}

// ImageExtractor renders ad snapshot pages.
type ImageExtractor interface {
	Extract(ctx context.Context, url string, timeout time.Duration) (*models.ImageExtraction, error)
}

// Options tunes the API server.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxy keys the rate limit on X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// Server wires the HTTP routes to the ad service.
type Server struct {
	ads       AdService
	extractor ImageExtractor
	metrics   *metrics.Metrics
	limiter   *ipRateLimiter
	router    *mux.Router
}

// NewServer builds the router. extractor and m may be nil.
func NewServer(ads AdService, extractor ImageExtractor, m *metrics.Metrics, opts Options) *Server {
	s := &Server{
		ads:       ads,
		extractor: extractor,
		metrics:   m,
		router:    mux.NewRouter(),
	}
	if opts.RateLimitRPS > 0 && opts.RateLimitBurst > 0 {
		s.limiter = newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, opts.TrustProxy)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.loggingMiddleware, s.recoveryMiddleware, s.rateLimitMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleRunMetrics).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics/prometheus", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/trigger", s.handleTrigger).Methods(http.MethodPost)
	r.HandleFunc("/search", s.handleSearchBody).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", s.handleSearchQuery).Methods(http.MethodGet)
	api.HandleFunc("/competitors", s.handleCompetitors).Methods(http.MethodGet)
	api.HandleFunc("/top", s.handleTopAds).Methods(http.MethodGet)
	api.HandleFunc("/page/{pageId}", s.handlePageInfo).Methods(http.MethodGet)
	api.HandleFunc("/cache", s.handleClearCache).Methods(http.MethodDelete)
	api.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/{date}/{id}", s.handleGetReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/{date}/{id}", s.handleDeleteReport).Methods(http.MethodDelete)
	api.HandleFunc("/extract-ad-image", s.handleExtractorHealth).Methods(http.MethodGet)
	api.HandleFunc("/extract-ad-image", s.handleExtractImage).Methods(http.MethodPost)
}

// Handler returns the root handler with the outer middleware applied.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	handler = maxBodySize(handler)
	handler = corsMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func maxBodySize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
