package postgres

import (
	"context"

	"meter/internal/domain/entity"
	domainerrors "meter/internal/domain/errors"
	"meter/internal/domain/repository"
	"meter/internal/infra/persistence/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	productUpsertColumns = []string{"name", "description", "active", "metadata", "updated_at"}
	priceUpsertColumns   = []string{
		"product_external_id", "type", "currency", "unit_amount",
		"recurring_interval", "recurring_interval_count", "usage_type",
		"meter_id", "tax_behavior", "billing_strategy", "active", "metadata", "updated_at",
	}
)

type billingProductRepository struct {
	db *gorm.DB
}

// NewBillingProductRepository is the constructor for billingProductRepository.
func NewBillingProductRepository(db *gorm.DB) repository.BillingProductRepository {
	return &billingProductRepository{db: db}
}

// Upsert inserts the product or updates the row with the same external id.
func (repo *billingProductRepository) Upsert(ctx context.Context, product *entity.BillingProduct) error {
	productM := fromBillingProductDomain(product)
	if productM.ID == uuid.Nil {
		productM.ID = uuid.New()
	}

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns(productUpsertColumns),
		}).
		Create(productM).Error
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to upsert billing product "+product.ExternalID)
	}

	return nil
}

// DeactivateMissing deactivates active products absent from keep.
func (repo *billingProductRepository) DeactivateMissing(ctx context.Context, keep []string) (int64, error) {
	return deactivateMissing(ctx, repo.db, &model.BillingProductModel{}, keep)
}

type billingPriceRepository struct {
	db *gorm.DB
}

// NewBillingPriceRepository is the constructor for billingPriceRepository.
func NewBillingPriceRepository(db *gorm.DB) repository.BillingPriceRepository {
	return &billingPriceRepository{db: db}
}

// Upsert inserts the price or updates the row with the same external id.
func (repo *billingPriceRepository) Upsert(ctx context.Context, price *entity.BillingPrice) error {
	priceM := fromBillingPriceDomain(price)
	if priceM.ID == uuid.Nil {
		priceM.ID = uuid.New()
	}

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns(priceUpsertColumns),
		}).
		Create(priceM).Error
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to upsert billing price "+price.ExternalID)
	}

	return nil
}

// DeactivateMissing deactivates active prices absent from keep.
func (repo *billingPriceRepository) DeactivateMissing(ctx context.Context, keep []string) (int64, error) {
	return deactivateMissing(ctx, repo.db, &model.BillingPriceModel{}, keep)
}

// ListActivePlans joins active prices to their products.
func (repo *billingPriceRepository) ListActivePlans(ctx context.Context) ([]*entity.Plan, error) {
	var priceMs []*model.BillingPriceModel
	err := repo.db.WithContext(ctx).
		Select("billing_prices.*").
		Joins("JOIN billing_products ON billing_products.external_id = billing_prices.product_external_id").
		Where("billing_prices.active = ?", true).
		Order("billing_products.name ASC").
		Order("billing_prices.unit_amount ASC").
		Find(&priceMs).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list active prices")
	}
	if len(priceMs) == 0 {
		return []*entity.Plan{}, nil
	}

	productIDs := make([]string, 0, len(priceMs))
	seen := make(map[string]struct{}, len(priceMs))
	for _, priceM := range priceMs {
		if _, ok := seen[priceM.ProductExternalID]; ok {
			continue
		}
		seen[priceM.ProductExternalID] = struct{}{}
		productIDs = append(productIDs, priceM.ProductExternalID)
	}

	var productMs []*model.BillingProductModel
	if err := repo.db.WithContext(ctx).Where("external_id IN ?", productIDs).Find(&productMs).Error; err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to load plan products")
	}

	products := make(map[string]*entity.BillingProduct, len(productMs))
	for _, productM := range productMs {
		products[productM.ExternalID] = toBillingProductDomain(productM)
	}

	plans := make([]*entity.Plan, 0, len(priceMs))
	for _, priceM := range priceMs {
		product, ok := products[priceM.ProductExternalID]
		if !ok {
			// Product row vanished between the two reads.
			continue
		}
		plans = append(plans, &entity.Plan{
			Price:   toBillingPriceDomain(priceM),
			Product: product,
		})
	}

	return plans, nil
}

func deactivateMissing(ctx context.Context, db *gorm.DB, table any, keep []string) (int64, error) {
	query := db.WithContext(ctx).Model(table).Where("active = ?", true)
	if len(keep) > 0 {
		query = query.Where("external_id NOT IN ?", keep)
	}

	result := query.Update("active", false)
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to deactivate stale catalog entries")
	}

	return result.RowsAffected, nil
}
