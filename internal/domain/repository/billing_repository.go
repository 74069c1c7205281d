package repository

import (
	"context"

	"meter/internal/domain/entity"
)

// BillingProductRepository mirrors provider products keyed by external id.
type BillingProductRepository interface {
	// Upsert creates or updates the product identified by ExternalID.
	Upsert(ctx context.Context, product *entity.BillingProduct) error

	// DeactivateMissing sets active=false on every active product whose external
	// id is not in keep. An empty keep deactivates all active products.
	DeactivateMissing(ctx context.Context, keep []string) (int64, error)
}

// BillingPriceRepository mirrors provider prices keyed by external id.
type BillingPriceRepository interface {
	// Upsert creates or updates the price identified by ExternalID.
	Upsert(ctx context.Context, price *entity.BillingPrice) error

	// DeactivateMissing behaves like BillingProductRepository.DeactivateMissing for prices.
	DeactivateMissing(ctx context.Context, keep []string) (int64, error)

	// ListActivePlans returns active prices with their products, ordered by
	// product name then unit amount, both ascending.
	ListActivePlans(ctx context.Context) ([]*entity.Plan, error)
}
