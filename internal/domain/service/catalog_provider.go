package service

import (
	"context"

	"meter/internal/domain/entity"
)

// CatalogListParams selects one page of a provider listing.
type CatalogListParams struct {
	Active        bool
	Limit         int
	StartingAfter string
}

// CatalogProvider is the external billing catalog.
type CatalogProvider interface {
	ListProducts(ctx context.Context, params CatalogListParams) (*entity.CatalogPage[entity.CatalogProduct], error)
	ListPrices(ctx context.Context, params CatalogListParams) (*entity.CatalogPage[entity.CatalogPrice], error)
	RetrieveAccount(ctx context.Context) (*entity.ProviderAccount, error)
}
