package mocks

import (
	"context"

	"meter/internal/usecase"

	"github.com/stretchr/testify/mock"
)

// CatalogUsecase is a mock of usecase.CatalogUsecase.
type CatalogUsecase struct {
	mock.Mock
}

var _ usecase.CatalogUsecase = (*CatalogUsecase)(nil)

func (m *CatalogUsecase) SyncCatalog(ctx context.Context) (*usecase.SyncResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*usecase.SyncResult)

	return result, args.Error(1)
}

func (m *CatalogUsecase) GetPlans(ctx context.Context) (*usecase.PlansOutput, error) {
	args := m.Called(ctx)
	output, _ := args.Get(0).(*usecase.PlansOutput)

	return output, args.Error(1)
}

func (m *CatalogUsecase) ProviderStatus(ctx context.Context) (*usecase.ProviderStatus, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(*usecase.ProviderStatus)

	return status, args.Error(1)
}
