package cache

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
)

// DefaultTTL is how long a cached search stays readable.
const DefaultTTL = 30 * time.Minute

// Cache stores normalized search results keyed by query signature.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.Ad, bool, error)
	Set(ctx context.Context, key string, ads []models.Ad) error
	Clear(ctx context.Context) error
}

// Key builds the cache key for a search. Equivalent parameter sets produce
// the same key regardless of country or page ID ordering.
func Key(params models.SearchParams) string {
	canonical := params
	canonical.Countries = sortedCopy(params.Countries)
	canonical.SearchPageIDs = sortedCopy(params.SearchPageIDs)

	data, err := json.Marshal(canonical)
	if err != nil {
		// SearchParams holds only strings and ints
		panic(err)
	}
	return string(data)
}

func sortedCopy(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

type entry struct {
	StoredAt time.Time   `json:"storedAt"`
	Ads      []models.Ad `json:"ads"`
}

func (e entry) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}
