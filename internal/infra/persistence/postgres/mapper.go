package postgres

import (
	"meter/internal/domain/entity"
	"meter/internal/infra/persistence/model"

	"gorm.io/datatypes"
)

func toUserDomain(userM *model.UserModel) *entity.User {
	return &entity.User{
		ID:             userM.ID,
		OrganizationID: userM.OrganizationID,
		Email:          userM.Email,
		PasswordHash:   userM.PasswordHash,
		Role:           entity.Role(userM.Role),
		CreatedAt:      userM.CreatedAt,
		UpdatedAt:      userM.UpdatedAt,
	}
}

func fromUserDomain(user *entity.User) *model.UserModel {
	return &model.UserModel{
		ID:             user.ID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		PasswordHash:   user.PasswordHash,
		Role:           user.Role.String(),
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func toRefreshTokenDomain(tokenM *model.RefreshTokenModel) *entity.RefreshToken {
	return &entity.RefreshToken{
		ID:        tokenM.ID,
		UserID:    tokenM.UserID,
		TokenHash: tokenM.TokenHash,
		ExpiresAt: tokenM.ExpiresAt,
		RevokedAt: tokenM.RevokedAt,
		CreatedAt: tokenM.CreatedAt,
	}
}

func fromRefreshTokenDomain(token *entity.RefreshToken) *model.RefreshTokenModel {
	return &model.RefreshTokenModel{
		ID:        token.ID,
		UserID:    token.UserID,
		TokenHash: token.TokenHash,
		ExpiresAt: token.ExpiresAt,
		RevokedAt: token.RevokedAt,
		CreatedAt: token.CreatedAt,
	}
}

func toBillingProductDomain(productM *model.BillingProductModel) *entity.BillingProduct {
	return &entity.BillingProduct{
		ID:          productM.ID,
		ExternalID:  productM.ExternalID,
		Name:        productM.Name,
		Description: productM.Description,
		Active:      productM.Active,
		Metadata:    metadataFromModel(productM.Metadata),
		CreatedAt:   productM.CreatedAt,
		UpdatedAt:   productM.UpdatedAt,
	}
}

func fromBillingProductDomain(product *entity.BillingProduct) *model.BillingProductModel {
	return &model.BillingProductModel{
		ID:          product.ID,
		ExternalID:  product.ExternalID,
		Name:        product.Name,
		Description: product.Description,
		Active:      product.Active,
		Metadata:    metadataToModel(product.Metadata),
	}
}

func toBillingPriceDomain(priceM *model.BillingPriceModel) *entity.BillingPrice {
	return &entity.BillingPrice{
		ID:                     priceM.ID,
		ExternalID:             priceM.ExternalID,
		ProductExternalID:      priceM.ProductExternalID,
		Type:                   priceM.Type,
		Currency:               priceM.Currency,
		UnitAmount:             priceM.UnitAmount,
		RecurringInterval:      priceM.RecurringInterval,
		RecurringIntervalCount: priceM.RecurringIntervalCount,
		UsageType:              priceM.UsageType,
		MeterID:                priceM.MeterID,
		TaxBehavior:            priceM.TaxBehavior,
		BillingStrategy:        entity.BillingStrategy(priceM.BillingStrategy),
		Active:                 priceM.Active,
		Metadata:               metadataFromModel(priceM.Metadata),
		CreatedAt:              priceM.CreatedAt,
		UpdatedAt:              priceM.UpdatedAt,
	}
}

func fromBillingPriceDomain(price *entity.BillingPrice) *model.BillingPriceModel {
	return &model.BillingPriceModel{
		ID:                     price.ID,
		ExternalID:             price.ExternalID,
		ProductExternalID:      price.ProductExternalID,
		Type:                   price.Type,
		Currency:               price.Currency,
		UnitAmount:             price.UnitAmount,
		RecurringInterval:      price.RecurringInterval,
		RecurringIntervalCount: price.RecurringIntervalCount,
		UsageType:              price.UsageType,
		MeterID:                price.MeterID,
		TaxBehavior:            price.TaxBehavior,
		BillingStrategy:        price.BillingStrategy.String(),
		Active:                 price.Active,
		Metadata:               metadataToModel(price.Metadata),
	}
}

func metadataToModel(metadata map[string]string) model.Metadata {
	if metadata == nil {
		metadata = map[string]string{}
	}

	return datatypes.NewJSONType(metadata)
}

func metadataFromModel(metadata model.Metadata) map[string]string {
	data := metadata.Data()
	if data == nil {
		return map[string]string{}
	}

	return data
}
