package sources

import (
	"context"

	"github.com/adlibrary/ads-spy/internal/models"
)

// AdSource defines the contract for ad transparency data sources
type AdSource interface {
	GetName() string
	IsEnabled() bool
	FetchAds(ctx context.Context, params models.SearchParams) (*models.RawPayload, error)
	GetPageInfo(ctx context.Context, pageID string) (*models.PageInfo, error)
}
