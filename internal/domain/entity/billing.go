package entity

import (
	"time"

	"github.com/google/uuid"
)

// BillingStrategy is how a price is billed.
type BillingStrategy string

const (
	BillingStrategyBasePlusOverage BillingStrategy = "BASE_PLUS_OVERAGE"
	BillingStrategyMaxMemberUsage  BillingStrategy = "MAX_MEMBER_USAGE"
	BillingStrategyUnknown         BillingStrategy = "UNKNOWN"
)

// String returns the string representation of the BillingStrategy.
func (s BillingStrategy) String() string {
	return string(s)
}

// BillingProduct mirrors a provider product. ExternalID is the provider id.
type BillingProduct struct {
	ID          uuid.UUID
	ExternalID  string
	Name        string
	Description *string
	Active      bool
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BillingPrice mirrors a provider price linked to its product by external id.
type BillingPrice struct {
	ID                     uuid.UUID
	ExternalID             string
	ProductExternalID      string
	Type                   string
	Currency               string
	UnitAmount             *int64
	RecurringInterval      *string
	RecurringIntervalCount *int
	UsageType              *string
	MeterID                *string
	TaxBehavior            *string
	BillingStrategy        BillingStrategy
	Active                 bool
	Metadata               map[string]string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Plan is an active price joined with its product, as listed to clients.
type Plan struct {
	Price   *BillingPrice
	Product *BillingProduct
}
