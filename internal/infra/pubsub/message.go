package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"meter/internal/domain/constants"
	"meter/internal/domain/service"
	"meter/internal/errors"
)

// Attribute keys set on every published message.
const (
	AttrEventType = "event_type"
	AttrRequestID = "request_id"
	AttrSyncID    = "sync_id"
)

// outboundMessage is a serialized event ready for a transport.
type outboundMessage struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// transport delivers one message. Implementations differ only in where it goes.
type transport interface {
	send(ctx context.Context, msg *outboundMessage) (string, error)
	close() error
	name() string
}

// eventPublisher serializes domain events and hands them to a transport.
type eventPublisher struct {
	transport transport
	logger    *slog.Logger
}

func newEventPublisher(t transport, logger *slog.Logger) *eventPublisher {
	return &eventPublisher{transport: t, logger: logger}
}

func (p *eventPublisher) PublishCatalogSynced(ctx context.Context, event *service.CatalogSyncedEvent) error {
	msg, err := catalogSyncedMessage(event)
	if err != nil {
		return err
	}

	serverID, err := p.transport.send(ctx, msg)
	if err != nil {
		return errors.Wrapf(err, "publish %s via %s", constants.EventTypeCatalogSynced, p.transport.name())
	}

	p.logger.InfoContext(ctx, "Catalog synced event published",
		slog.String("transport", p.transport.name()),
		slog.String("sync_id", event.SyncID),
		slog.String("server_id", serverID),
	)

	return nil
}

func (p *eventPublisher) Close() error {
	return p.transport.close()
}

func catalogSyncedMessage(event *service.CatalogSyncedEvent) (*outboundMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "marshal catalog synced event")
	}

	attributes := map[string]string{
		AttrEventType: constants.EventTypeCatalogSynced,
		AttrSyncID:    event.SyncID,
	}
	if event.RequestID != "" {
		attributes[AttrRequestID] = event.RequestID
	}

	return &outboundMessage{ID: event.SyncID, Data: data, Attributes: attributes}, nil
}

// noopPublisher drops events when Pub/Sub is not configured.
type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) PublishCatalogSynced(ctx context.Context, event *service.CatalogSyncedEvent) error {
	p.logger.DebugContext(ctx, "Event publishing disabled, dropping catalog synced event",
		slog.String("sync_id", event.SyncID),
	)

	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}
