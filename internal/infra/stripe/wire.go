package stripe

import (
	"bytes"
	"encoding/json"

	"meter/internal/domain/entity"
	"meter/internal/errors"
)

type listEnvelope[T any] struct {
	Object  string `json:"object"`
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
}

type productObject struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Active      bool              `json:"active"`
	Metadata    map[string]string `json:"metadata"`
}

func (p productObject) toEntity() entity.CatalogProduct {
	return entity.CatalogProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
		Metadata:    p.Metadata,
	}
}

// productField is a price's "product" property: a bare id unless the
// request expanded it into the full object.
type productField struct {
	id       string
	expanded *productObject
}

func (f *productField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &f.id)
	case data[0] == '{':
		f.expanded = &productObject{}

		return json.Unmarshal(data, f.expanded)
	default:
		return errors.Errorf("unexpected product value %s", data)
	}
}

func (f productField) toEntity() entity.CatalogProductRef {
	ref := entity.CatalogProductRef{ID: f.id}
	if f.expanded != nil {
		product := f.expanded.toEntity()
		ref.Embedded = &product
	}

	return ref
}

type recurringObject struct {
	Interval      string  `json:"interval"`
	IntervalCount int     `json:"interval_count"`
	UsageType     string  `json:"usage_type"`
	Meter         *string `json:"meter"`
}

type priceObject struct {
	ID          string            `json:"id"`
	Product     productField      `json:"product"`
	Active      bool              `json:"active"`
	Type        string            `json:"type"`
	Currency    string            `json:"currency"`
	UnitAmount  *int64            `json:"unit_amount"`
	Recurring   *recurringObject  `json:"recurring"`
	TaxBehavior *string           `json:"tax_behavior"`
	Metadata    map[string]string `json:"metadata"`
}

func (p priceObject) toEntity() entity.CatalogPrice {
	price := entity.CatalogPrice{
		ID:         p.ID,
		Product:    p.Product.toEntity(),
		Active:     p.Active,
		Type:       p.Type,
		Currency:   p.Currency,
		UnitAmount: p.UnitAmount,
		Metadata:   p.Metadata,
	}
	if p.TaxBehavior != nil {
		price.TaxBehavior = *p.TaxBehavior
	}
	if p.Recurring != nil {
		price.Recurring = &entity.CatalogRecurring{
			Interval:      p.Recurring.Interval,
			IntervalCount: p.Recurring.IntervalCount,
			UsageType:     p.Recurring.UsageType,
		}
		if p.Recurring.Meter != nil {
			price.Recurring.Meter = *p.Recurring.Meter
		}
	}

	return price
}

type accountObject struct {
	ID       string `json:"id"`
	Livemode bool   `json:"livemode"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
