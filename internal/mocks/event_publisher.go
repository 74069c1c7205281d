package mocks

import (
	"context"

	"meter/internal/domain/service"

	"github.com/stretchr/testify/mock"
)

// EventPublisher is a mock of service.EventPublisher.
type EventPublisher struct {
	mock.Mock
}

var _ service.EventPublisher = (*EventPublisher)(nil)

func (m *EventPublisher) PublishCatalogSynced(ctx context.Context, event *service.CatalogSyncedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *EventPublisher) Close() error {
	return m.Called().Error(0)
}
