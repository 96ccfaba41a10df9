package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const serviceVersion = "1.0.0"

// searchQuery is the flat request shape shared by GET /api/search and
// POST /search.
type searchQuery struct {
	Query          string   `json:"q"`
	Countries      []string `json:"countries,omitempty"`
	ActiveStatus   string   `json:"activeStatus,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	PageIDs        []string `json:"pageIds,omitempty"`
	SortBy         string   `json:"sortBy,omitempty"`
	SortOrder      string   `json:"sortOrder,omitempty"`
	TopN           int      `json:"topN,omitempty"`
	MinImpressions *float64 `json:"minImpressions,omitempty"`
	MaxImpressions *float64 `json:"maxImpressions,omitempty"`
	MinSpend       *float64 `json:"minSpend,omitempty"`
	MaxSpend       *float64 `json:"maxSpend,omitempty"`
	Platform       string   `json:"platform,omitempty"`
	ActiveOnly     *bool    `json:"activeOnly,omitempty"`
	StartDate      string   `json:"startDate,omitempty"`
	EndDate        string   `json:"endDate,omitempty"`
	PageID         string   `json:"pageId,omitempty"`
}

func (q searchQuery) toRequest() (models.SearchRequest, error) {
	startDate, err := parseDate(q.StartDate)
	if err != nil {
		return models.SearchRequest{}, fmt.Errorf("invalid startDate: %w", err)
	}
	endDate, err := parseDate(q.EndDate)
	if err != nil {
		return models.SearchRequest{}, fmt.Errorf("invalid endDate: %w", err)
	}

	return models.SearchRequest{
		Params: models.SearchParams{
			SearchTerms:   q.Query,
			Countries:     q.Countries,
			ActiveStatus:  strings.ToUpper(q.ActiveStatus),
			Limit:         q.Limit,
			SearchPageIDs: q.PageIDs,
			DateMin:       deliveryDate(startDate),
			DateMax:       deliveryDate(endDate),
		},
		Filters: models.FilterOptions{
			MinImpressions: q.MinImpressions,
			MaxImpressions: q.MaxImpressions,
			MinSpend:       q.MinSpend,
			MaxSpend:       q.MaxSpend,
			Platform:       q.Platform,
			ActiveOnly:     q.ActiveOnly,
			StartDate:      startDate,
			EndDate:        endDate,
			PageID:         q.PageID,
		},
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		TopN:      q.TopN,
	}, nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%q is not a date", value)
}

// deliveryDate formats a date bound the way the ad archive expects it.
func deliveryDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// queryParser collects the first malformed parameter while reading a query string.
type queryParser struct {
	values url.Values
	err    error
}

func (p *queryParser) list(name string) []string {
	raw := p.values.Get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *queryParser) integer(name string) int {
	raw := p.values.Get(name)
	if raw == "" || p.err != nil {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n
}

func (p *queryParser) number(name string) *float64 {
	raw := p.values.Get(name)
	if raw == "" || p.err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %q", name, raw)
		return nil
	}
	return &f
}

func (p *queryParser) boolean(name string) *bool {
	raw := p.values.Get(name)
	if raw == "" || p.err != nil {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %q", name, raw)
		return nil
	}
	return &b
}

func parseSearchQuery(values url.Values) (searchQuery, error) {
	p := &queryParser{values: values}
	q := searchQuery{
		Query:          values.Get("q"),
		Countries:      p.list("countries"),
		ActiveStatus:   values.Get("activeStatus"),
		Limit:          p.integer("limit"),
		PageIDs:        p.list("pageIds"),
		SortBy:         values.Get("sortBy"),
		SortOrder:      values.Get("sortOrder"),
		TopN:           p.integer("topN"),
		MinImpressions: p.number("minImpressions"),
		MaxImpressions: p.number("maxImpressions"),
		MinSpend:       p.number("minSpend"),
		MaxSpend:       p.number("maxSpend"),
		Platform:       values.Get("platform"),
		ActiveOnly:     p.boolean("activeOnly"),
		StartDate:      values.Get("startDate"),
		EndDate:        values.Get("endDate"),
		PageID:         values.Get("pageId"),
	}
	return q, p.err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleRunMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.ads.GetMetrics()))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.ads.RunMonitoring(); err != nil {
			logrus.Errorf("Manual watch run failed: %v", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, envelope{
		Success: true,
		Data:    map[string]string{"message": "Watch run triggered successfully"},
	})
}

func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.search(w, r, query)
}

func (s *Server) handleSearchBody(w http.ResponseWriter, r *http.Request) {
	var query searchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	s.search(w, r, query)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, query searchQuery) {
	if strings.TrimSpace(query.Query) == "" && len(query.PageIDs) == 0 {
		writeBadRequest(w, "a search term (q) or pageIds is required")
		return
	}

	req, err := query.toRequest()
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.ads.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, result)
}

func (s *Server) handleCompetitors(w http.ResponseWriter, r *http.Request) {
	competitors, err := s.ads.Competitors(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, competitors)
}

func (s *Server) handleTopAds(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if values.Get("q") == "" {
		writeBadRequest(w, "a search term (q) is required")
		return
	}

	p := &queryParser{values: values}
	n := p.integer("n")
	if p.err != nil {
		writeBadRequest(w, p.err.Error())
		return
	}

	ads, err := s.ads.TopAds(r.Context(), values.Get("q"), values.Get("metric"), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, ads)
}

func (s *Server) handlePageInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.ads.PageInfo(r.Context(), mux.Vars(r)["pageId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, info)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.ads.ClearCache(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, map[string]string{"message": "Cache cleared"})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	refs, err := s.ads.ListReports(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, refs)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	report, err := s.ads.GetReport(r.Context(), vars["date"], vars["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, report)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.ads.DeleteReport(r.Context(), vars["date"], vars["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, map[string]string{"message": "Report deleted"})
}

func (s *Server) handleExtractorHealth(w http.ResponseWriter, r *http.Request) {
	status := "OK"
	if s.extractor == nil {
		status = "DISABLED"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    status,
		"service":   "Facebook Ad Image Extractor",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   serviceVersion,
	})
}

type extractRequest struct {
	URL       string `json:"url"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

func (s *Server) handleExtractImage(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		writeJSON(w, http.StatusServiceUnavailable, envelope{Error: "image extraction is not enabled"})
		return
	}

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.TimeoutMs < 0 {
		writeBadRequest(w, "timeoutMs must not be negative")
		return
	}

	result, err := s.extractor.Extract(r.Context(), req.URL, time.Duration(req.TimeoutMs)*time.Millisecond)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, result)
}
