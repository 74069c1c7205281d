// Package billing holds pure billing rules shared by the catalog sync and plan listing.
package billing

import (
	"strings"

	"meter/internal/domain/entity"
)

// StrategyMetadataKey is the provider metadata key naming a price's billing strategy.
const StrategyMetadataKey = "billing_strategy"

// ToStrategy maps a raw metadata value onto a BillingStrategy.
// Matching ignores surrounding whitespace and letter case.
func ToStrategy(value string) entity.BillingStrategy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "base_plus_overage", "plan_a":
		return entity.BillingStrategyBasePlusOverage
	case "max_member_usage", "plan_b":
		return entity.BillingStrategyMaxMemberUsage
	default:
		return entity.BillingStrategyUnknown
	}
}

// Resolve picks the strategy for a price. A recognized price-level value wins,
// then a recognized product-level value; anything else is UNKNOWN.
func Resolve(priceMetadata, productMetadata map[string]string) entity.BillingStrategy {
	if strategy := ToStrategy(priceMetadata[StrategyMetadataKey]); strategy != entity.BillingStrategyUnknown {
		return strategy
	}

	return ToStrategy(productMetadata[StrategyMetadataKey])
}
