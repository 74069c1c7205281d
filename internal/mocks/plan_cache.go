package mocks

import (
	"context"

	"meter/internal/domain/service"

	"github.com/stretchr/testify/mock"
)

// PlanCache is a mock of service.PlanCache.
type PlanCache struct {
	mock.Mock
}

var _ service.PlanCache = (*PlanCache)(nil)

func (m *PlanCache) Get(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	payload, _ := args.Get(0).([]byte)

	return payload, args.Error(1)
}

func (m *PlanCache) Set(ctx context.Context, payload []byte) error {
	return m.Called(ctx, payload).Error(0)
}

func (m *PlanCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
