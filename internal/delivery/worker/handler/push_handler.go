// Package handler contains the worker's Pub/Sub push handlers.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"meter/config"
	deliverycontext "meter/internal/delivery/context"
	"meter/internal/domain/constants"
	"meter/internal/domain/service"
	"meter/internal/errors"
	"meter/internal/infra/pubsub"
	"meter/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// TokenValidator checks a Google-signed OIDC token for an audience.
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// PushHandler handles Pub/Sub push messages for the worker.
type PushHandler struct {
	verifyPushAuth bool
	validateToken  TokenValidator
	catalogUC      usecase.CatalogUsecase
	logger         *slog.Logger
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config    *config.Config
	Logger    *slog.Logger
	CatalogUC usecase.CatalogUsecase
}

// NewPushHandler creates a new Pub/Sub push handler. Push tokens are only
// verified for Google Pub/Sub outside the develop environment.
func NewPushHandler(params PushHandlerParams) *PushHandler {
	verifyPushAuth := params.Config.PubSub != nil &&
		params.Config.PubSub.Provider == constants.PubSubProviderGoogle &&
		params.Config.Env.Env != constants.EnvDevelop

	return &PushHandler{
		verifyPushAuth: verifyPushAuth,
		validateToken:  idtoken.Validate,
		catalogUC:      params.CatalogUC,
		logger:         params.Logger,
	}
}

// HandlePush routes a push message by its event_type attribute. Failed syncs
// answer 503 so Pub/Sub redelivers; everything else is acknowledged.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verifyPushAuth {
		if err := h.verifyPubSubToken(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg pubsub.PushEnvelope
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Worker] Failed to decode message data", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	eventType := pushMsg.Message.Attributes[pubsub.AttrEventType]
	requestID := h.extractRequestID(ctx, &pushMsg, data)
	reqLogger := h.logger.With(
		slog.String("request_id", requestID),
		slog.String("event_type", eventType),
		slog.String("message_id", pushMsg.Message.MessageID),
	)
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	switch eventType {
	case constants.EventTypeCatalogSyncRequested:
		result, err := h.catalogUC.SyncCatalog(ctx)
		if err != nil {
			reqLogger.Error("[Worker] Catalog sync failed", slog.Any("error", err))

			return c.NoContent(http.StatusServiceUnavailable)
		}
		reqLogger.Info("[Worker] Catalog sync completed",
			slog.Int("synced_products", result.SyncedProducts),
			slog.Int("synced_prices", result.SyncedPrices),
		)

	case constants.EventTypeCatalogSynced:
		reqLogger.Debug("[Worker] Catalog synced notification received")

	default:
		reqLogger.Warn("[Worker] Acknowledging unknown event type")
	}

	return c.NoContent(http.StatusOK)
}

// extractRequestID prefers the message attribute, then the event payload,
// then the request context, and finally generates one.
func (h *PushHandler) extractRequestID(ctx context.Context, pushMsg *pubsub.PushEnvelope, data []byte) string {
	if requestID := pushMsg.Message.Attributes[pubsub.AttrRequestID]; requestID != "" {
		return requestID
	}

	var event service.CatalogSyncRequestedEvent
	if len(data) > 0 && json.Unmarshal(data, &event) == nil && event.RequestID != "" {
		return event.RequestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// verifyPubSubToken verifies the OIDC token Pub/Sub attaches to push requests.
// The audience is this endpoint's URL.
func (h *PushHandler) verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)

	payload, err := h.validateToken(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
