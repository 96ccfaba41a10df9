package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) (*MetaAdsSource, *int32) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return NewMetaAdsSource("test-token", server.URL, 0, 0), &calls
}

func TestMetaAdsSource_GetName(t *testing.T) {
	source := NewMetaAdsSource("token", "", 0, 0)
	assert.Equal(t, "meta", source.GetName())
}

func TestMetaAdsSource_IsEnabled(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected bool
	}{
		{name: "Token provided", token: "token", expected: true},
		{name: "No token", token: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewMetaAdsSource(tt.token, "", 0, 0)
			assert.Equal(t, tt.expected, source.IsEnabled())
		})
	}
}

func TestMetaAdsSource_Defaults(t *testing.T) {
	source := NewMetaAdsSource("token", "", 0, 0)
	assert.Equal(t, DefaultBaseURL, source.baseURL)
	assert.Equal(t, DefaultRateLimit, source.RemainingQuota())
}

func TestMetaAdsSource_FetchAds(t *testing.T) {
	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ads_archive", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "test-token", q.Get("access_token"))
		assert.Equal(t, "running shoes", q.Get("search_terms"))
		assert.Equal(t, `["DE","FR"]`, q.Get("ad_reached_countries"))
		assert.Equal(t, "ACTIVE", q.Get("ad_active_status"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, `["123"]`, q.Get("search_page_ids"))
		assert.Equal(t, "2024-01-01", q.Get("ad_delivery_date_min"))
		assert.Empty(t, q.Get("ad_delivery_date_max"))
		assert.Contains(t, q.Get("fields"), "demographic_distribution")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [{"id": "1", "page_id": "123", "impressions": {"lower_bound": "1000", "upper_bound": "5000"}}],
			"paging": {"cursors": {"after": "abc"}, "next": "https://next"}
		}`))
	})

	payload, err := source.FetchAds(context.Background(), models.SearchParams{
		SearchTerms:   "running shoes",
		Countries:     []string{"DE", "FR"},
		ActiveStatus:  "ACTIVE",
		Limit:         50,
		SearchPageIDs: []string{"123"},
		DateMin:       "2024-01-01",
	})

	require.NoError(t, err)
	require.Len(t, payload.Data, 1)
	assert.Equal(t, "1", payload.Data[0]["id"])
	require.NotNil(t, payload.Paging)
	assert.Equal(t, "https://next", payload.Paging.Next)
	assert.Equal(t, "abc", payload.Paging.Cursors.After)
}

func TestMetaAdsSource_FetchAdsDefaultParams(t *testing.T) {
	tests := []struct {
		name      string
		countries []string
	}{
		{name: "No countries", countries: nil},
		{name: "ALL countries", countries: []string{"ALL"}},
	}

	expectedCountries, err := json.Marshal(DefaultCountries)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				assert.Equal(t, string(expectedCountries), q.Get("ad_reached_countries"))
				assert.Equal(t, "ALL", q.Get("ad_active_status"))
				assert.Equal(t, "100", q.Get("limit"))
				assert.Empty(t, q.Get("search_page_ids"))
				_, _ = w.Write([]byte(`{"data": []}`))
			})

			payload, err := source.FetchAds(context.Background(), models.SearchParams{
				SearchTerms: "test",
				Countries:   tt.countries,
			})
			require.NoError(t, err)
			assert.Empty(t, payload.Data)
		})
	}
}

func TestMetaAdsSource_FetchAdsUpstreamError(t *testing.T) {
	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid access token", "type": "OAuthException", "code": 190}}`))
	})

	_, err := source.FetchAds(context.Background(), models.SearchParams{SearchTerms: "test"})

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusBadRequest, fetchErr.StatusCode)
	assert.Equal(t, "failed to fetch ads: Invalid access token", err.Error())
}

func TestMetaAdsSource_FetchAdsErrorWithoutMessage(t *testing.T) {
	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`oops`))
	})

	_, err := source.FetchAds(context.Background(), models.SearchParams{SearchTerms: "test"})

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "failed to fetch ads: upstream returned status 500", err.Error())
}

func TestMetaAdsSource_FetchAdsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	source := NewMetaAdsSource("token", url, 0, 0)
	_, err := source.FetchAds(context.Background(), models.SearchParams{SearchTerms: "test"})

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 0, fetchErr.StatusCode)
	assert.NotNil(t, fetchErr.Err)
}

func TestMetaAdsSource_FetchAdsDisabled(t *testing.T) {
	source := NewMetaAdsSource("", "", 0, 0)
	_, err := source.FetchAds(context.Background(), models.SearchParams{})

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestMetaAdsSource_RateLimitBeforeNetwork(t *testing.T) {
	source, calls := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	})

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	source.quota = newQuota(2, time.Hour, func() time.Time { return clock })

	for i := 0; i < 2; i++ {
		_, err := source.FetchAds(context.Background(), models.SearchParams{SearchTerms: "test"})
		require.NoError(t, err)
	}

	_, err := source.FetchAds(context.Background(), models.SearchParams{SearchTerms: "test"})

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, 2, rateErr.Limit)
	assert.Equal(t, clock.Add(time.Hour), rateErr.ResetAt)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "rejected request must not reach the network")
	assert.Equal(t, 0, source.RemainingQuota())
}

func TestQuota_ResetsAfterWindow(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	q := newQuota(200, time.Hour, func() time.Time { return clock })

	for i := 0; i < 200; i++ {
		require.NoError(t, q.take())
	}
	assert.Error(t, q.take())

	clock = clock.Add(59 * time.Minute)
	assert.Error(t, q.take())

	clock = clock.Add(time.Minute)
	assert.NoError(t, q.take())
	assert.Equal(t, 199, q.remaining())
}

func TestMetaAdsSource_GetPageInfo(t *testing.T) {
	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/123", r.URL.Path)
		assert.Equal(t, pageInfoFields, r.URL.Query().Get("fields"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "123",
			"name": "Acme",
			"category": "Retail",
			"category_list": [{"id": "1", "name": "Shopping"}],
			"fan_count": 1500,
			"followers_count": 1700
		}`))
	})

	info, err := source.GetPageInfo(context.Background(), "123")

	require.NoError(t, err)
	assert.Equal(t, "Acme", info.Name)
	assert.Equal(t, int64(1500), info.FanCount)
	require.Len(t, info.CategoryList, 1)
	assert.Equal(t, "Shopping", info.CategoryList[0].Name)
}

func TestMetaAdsSource_GetPageInfoNotFound(t *testing.T) {
	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"message": "Unsupported get request"}}`))
	})

	_, err := source.GetPageInfo(context.Background(), "999")

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestMetaAdsSource_GetPageInfoRequiresID(t *testing.T) {
	source := NewMetaAdsSource("token", "", 0, 0)
	_, err := source.GetPageInfo(context.Background(), "")
	assert.Error(t, err)
}
