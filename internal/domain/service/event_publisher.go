package service

import (
	"context"
	"time"
)

// CatalogSyncedEvent announces a committed catalog sync.
type CatalogSyncedEvent struct {
	RequestID      string    `json:"request_id,omitempty"` // For distributed tracing
	SyncID         string    `json:"sync_id"`
	SyncedProducts int       `json:"synced_products"`
	SyncedPrices   int       `json:"synced_prices"`
	SyncedAt       time.Time `json:"synced_at"`
}

// CatalogSyncRequestedEvent asks the worker to run a catalog sync.
type CatalogSyncRequestedEvent struct {
	RequestID   string    `json:"request_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishCatalogSynced publishes a catalog.synced event.
	PublishCatalogSynced(ctx context.Context, event *CatalogSyncedEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
