package entity

// CatalogProduct is a product as returned by the billing provider.
type CatalogProduct struct {
	ID          string
	Name        string
	Description *string
	Active      bool
	Metadata    map[string]string
}

// CatalogProductRef is a price's reference to its product. The provider
// returns either a bare id or an embedded product object.
type CatalogProductRef struct {
	ID       string
	Embedded *CatalogProduct
}

// ResolveID returns the referenced product id, or "" when none can be determined.
func (r CatalogProductRef) ResolveID() string {
	if r.ID != "" {
		return r.ID
	}
	if r.Embedded != nil {
		return r.Embedded.ID
	}

	return ""
}

// CatalogRecurring is the recurring part of a provider price.
type CatalogRecurring struct {
	Interval      string
	IntervalCount int
	UsageType     string
	Meter         string
}

// CatalogPrice is a price as returned by the billing provider.
type CatalogPrice struct {
	ID          string
	Product     CatalogProductRef
	Active      bool
	Type        string
	Currency    string
	UnitAmount  *int64
	Recurring   *CatalogRecurring
	TaxBehavior string
	Metadata    map[string]string
}

// CatalogPage is one page of a paginated provider listing.
type CatalogPage[T any] struct {
	Data    []T
	HasMore bool
}

// ProviderAccount describes the provider account behind the configured key.
type ProviderAccount struct {
	ID       string
	Livemode bool
}
