// Package mocks holds testify doubles of domain service interfaces.
package mocks

import (
	"context"

	"meter/internal/domain/entity"
	"meter/internal/domain/service"

	"github.com/stretchr/testify/mock"
)

// CatalogProvider is a mock of service.CatalogProvider.
type CatalogProvider struct {
	mock.Mock
}

var _ service.CatalogProvider = (*CatalogProvider)(nil)

func (m *CatalogProvider) ListProducts(ctx context.Context, params service.CatalogListParams) (*entity.CatalogPage[entity.CatalogProduct], error) {
	args := m.Called(ctx, params)
	page, _ := args.Get(0).(*entity.CatalogPage[entity.CatalogProduct])

	return page, args.Error(1)
}

func (m *CatalogProvider) ListPrices(ctx context.Context, params service.CatalogListParams) (*entity.CatalogPage[entity.CatalogPrice], error) {
	args := m.Called(ctx, params)
	page, _ := args.Get(0).(*entity.CatalogPage[entity.CatalogPrice])

	return page, args.Error(1)
}

func (m *CatalogProvider) RetrieveAccount(ctx context.Context) (*entity.ProviderAccount, error) {
	args := m.Called(ctx)
	account, _ := args.Get(0).(*entity.ProviderAccount)

	return account, args.Error(1)
}
