package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Metadata is a provider metadata map stored as jsonb.
type Metadata = datatypes.JSONType[map[string]string]

// BillingProductModel mirrors the 'billing_products' table.
type BillingProductModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID  string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name        string    `gorm:"type:varchar(255);not null"`
	Description *string   `gorm:"type:text"`
	Active      bool      `gorm:"not null;index"`
	Metadata    Metadata  `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName explicitly sets the table name for GORM.
func (BillingProductModel) TableName() string {
	return "billing_products"
}

// BillingPriceModel mirrors the 'billing_prices' table. ProductExternalID is a
// soft reference; the product is expected in the same sync pass but not enforced.
type BillingPriceModel struct {
	ID                     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID             string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	ProductExternalID      string    `gorm:"type:varchar(255);not null;index"`
	Type                   string    `gorm:"type:varchar(32);not null"`
	Currency               string    `gorm:"type:varchar(8);not null"`
	UnitAmount             *int64
	RecurringInterval      *string `gorm:"type:varchar(16)"`
	RecurringIntervalCount *int
	UsageType              *string `gorm:"type:varchar(16)"`
	MeterID                *string `gorm:"type:varchar(255)"`
	TaxBehavior            *string `gorm:"type:varchar(32)"`
	BillingStrategy        string   `gorm:"type:varchar(32);not null"`
	Active                 bool     `gorm:"not null;index"`
	Metadata               Metadata `gorm:"type:jsonb;not null"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// TableName explicitly sets the table name for GORM.
func (BillingPriceModel) TableName() string {
	return "billing_prices"
}

// AllModels lists every model in migration order.
func AllModels() []any {
	return []any{
		&OrganizationModel{},
		&UserModel{},
		&RefreshTokenModel{},
		&BillingProductModel{},
		&BillingPriceModel{},
	}
}
