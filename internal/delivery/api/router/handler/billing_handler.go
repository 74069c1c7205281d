package handler

import (
	"log/slog"
	"net/http"

	deliverycontext "meter/internal/delivery/context"
	"meter/internal/errors"
	"meter/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// BillingHandlerParams holds dependencies for BillingHandler, injected by Fx.
type BillingHandlerParams struct {
	fx.In

	CatalogUC usecase.CatalogUsecase
	Logger    *slog.Logger
}

// BillingHandler serves the billing catalog and provider status.
type BillingHandler struct {
	catalogUC usecase.CatalogUsecase
	logger    *slog.Logger
}

// NewBillingHandler is the constructor for BillingHandler
func NewBillingHandler(params BillingHandlerParams) *BillingHandler {
	return &BillingHandler{
		catalogUC: params.CatalogUC,
		logger:    params.Logger,
	}
}

// SyncCatalog mirrors the provider catalog. Role checks happen in the router.
func (h *BillingHandler) SyncCatalog(c echo.Context) error {
	ctx := c.Request().Context()
	if userID, ok := deliverycontext.GetUserID(c); ok {
		deliverycontext.GetLoggerOrDefault(ctx, h.logger).Info("Catalog sync requested", slog.String("user_id", userID.String()))
	}

	result, err := h.catalogUC.SyncCatalog(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, result)
}

// GetPlans lists the active plans.
func (h *BillingHandler) GetPlans(c echo.Context) error {
	plans, err := h.catalogUC.GetPlans(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, plans)
}

// ProviderHealth checks that the billing provider accepts our credentials.
func (h *BillingHandler) ProviderHealth(c echo.Context) error {
	status, err := h.catalogUC.ProviderStatus(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, status)
}
