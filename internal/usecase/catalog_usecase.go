package usecase

import (
	"context"
	"time"

	"meter/internal/domain/entity"
)

// SyncResult reports a committed catalog sync. Counts are distinct provider ids.
type SyncResult struct {
	SyncedProducts int       `json:"syncedProducts"`
	SyncedPrices   int       `json:"syncedPrices"`
	SyncedAt       time.Time `json:"syncedAt"`
}

// PlanView is one purchasable price as shown to clients.
type PlanView struct {
	PriceID                string                 `json:"priceId"`
	ProductID              string                 `json:"productId"`
	ProductName            string                 `json:"productName"`
	ProductDescription     *string                `json:"productDescription"`
	Active                 bool                   `json:"active"`
	Type                   string                 `json:"type"`
	Currency               string                 `json:"currency"`
	UnitAmount             *int64                 `json:"unitAmount"`
	RecurringInterval      *string                `json:"recurringInterval"`
	RecurringIntervalCount *int                   `json:"recurringIntervalCount"`
	UsageType              *string                `json:"usageType"`
	MeterID                *string                `json:"meterId"`
	TaxBehavior            *string                `json:"taxBehavior"`
	BillingStrategy        entity.BillingStrategy `json:"billingStrategy"`
	Metadata               map[string]string      `json:"metadata"`
}

// PlansOutput lists active plans ordered by product name, then unit amount.
type PlansOutput struct {
	Plans []PlanView `json:"plans"`
}

// ProviderStatus is the billing provider reachability check.
type ProviderStatus struct {
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	AccountID string `json:"accountId"`
	Livemode  bool   `json:"livemode"`
}

// CatalogUsecase mirrors the provider catalog locally and serves it.
type CatalogUsecase interface {
	// SyncCatalog pulls all active products and prices and applies them in one
	// transaction. Provider failures abort before anything is written.
	SyncCatalog(ctx context.Context) (*SyncResult, error)
	GetPlans(ctx context.Context) (*PlansOutput, error)
	ProviderStatus(ctx context.Context) (*ProviderStatus, error)
}
