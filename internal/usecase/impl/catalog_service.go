package impl

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"time"

	"meter/config"
	deliverycontext "meter/internal/delivery/context"
	"meter/internal/domain/billing"
	"meter/internal/domain/constants"
	"meter/internal/domain/entity"
	domainerrors "meter/internal/domain/errors"
	"meter/internal/domain/repository"
	"meter/internal/domain/service"
	"meter/internal/errors"
	"meter/internal/usecase"

	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
)

const maxProviderPageSize = 100

// errPageCapExceeded stops a listing that keeps reporting more pages.
var errPageCapExceeded = errors.New("provider listing exceeded page cap")

// catalogService implements the CatalogUsecase interface.
type catalogService struct {
	txManager repository.TransactionManager
	priceRepo repository.BillingPriceRepository
	provider  service.CatalogProvider
	cache     service.PlanCache
	publisher service.EventPublisher
	metrics   service.MetricsRecorder
	pageSize  int
	maxPages  int
	logger    *slog.Logger
	now       func() time.Time
}

// CatalogServiceParams holds dependencies for CatalogService, injected by Fx.
type CatalogServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	PriceRepo repository.BillingPriceRepository
	Provider  service.CatalogProvider
	Cache     service.PlanCache
	Publisher service.EventPublisher
	Metrics   service.MetricsRecorder
	Config    *config.Config
	Logger    *slog.Logger
}

// NewCatalogService is the constructor for catalogService.
func NewCatalogService(params CatalogServiceParams) usecase.CatalogUsecase {
	pageSize := params.Config.Billing.PageSize
	if pageSize <= 0 || pageSize > maxProviderPageSize {
		pageSize = maxProviderPageSize
	}
	maxPages := params.Config.Billing.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	return &catalogService{
		txManager: params.TxManager,
		priceRepo: params.PriceRepo,
		provider:  params.Provider,
		cache:     params.Cache,
		publisher: params.Publisher,
		metrics:   params.Metrics,
		pageSize:  pageSize,
		maxPages:  maxPages,
		logger:    params.Logger,
		now:       time.Now,
	}
}

func (srv *catalogService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// SyncCatalog mirrors the provider's active catalog. Both listings are read
// completely before the transaction opens, so a provider failure writes nothing.
func (srv *catalogService) SyncCatalog(ctx context.Context) (*usecase.SyncResult, error) {
	started := srv.now()
	syncID := ulid.MustNew(ulid.Timestamp(started), rand.Reader).String()
	logger := srv.log(ctx).With(slog.String("sync_id", syncID))
	logger.Info("Catalog sync started")

	result, err := srv.syncCatalog(ctx, logger)
	if err != nil {
		srv.metrics.ObserveCatalogSync(service.OutcomeFailure, 0, 0, srv.now().Sub(started))
		logger.Error("Catalog sync failed", slog.Any("error", err))

		return nil, err
	}
	srv.metrics.ObserveCatalogSync(service.OutcomeSuccess, result.SyncedProducts, result.SyncedPrices, srv.now().Sub(started))

	srv.afterCommit(ctx, logger, syncID, result)
	logger.Info("Catalog sync committed",
		slog.Int("synced_products", result.SyncedProducts),
		slog.Int("synced_prices", result.SyncedPrices),
	)

	return result, nil
}

func (srv *catalogService) syncCatalog(ctx context.Context, logger *slog.Logger) (*usecase.SyncResult, error) {
	// 1. Pull both listings.
	products, err := listAll(ctx, srv.maxPages, srv.pageSize, srv.provider.ListProducts,
		func(p entity.CatalogProduct) string { return p.ID })
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrUpstreamUnavailable, errors.Wrap(err, "pull products").Error())
	}
	prices, err := listAll(ctx, srv.maxPages, srv.pageSize, srv.provider.ListPrices,
		func(p entity.CatalogPrice) string { return p.ID })
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrUpstreamUnavailable, errors.Wrap(err, "pull prices").Error())
	}
	logger.Debug("Catalog pulled", slog.Int("products", len(products)), slog.Int("prices", len(prices)))

	productMetadata := make(map[string]map[string]string, len(products))
	for _, product := range products {
		productMetadata[product.ID] = product.Metadata
	}

	syncedProducts := make(map[string]struct{}, len(products))
	syncedPrices := make(map[string]struct{}, len(prices))

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		productRepo := repoFactory.ProductRepo()
		priceRepo := repoFactory.PriceRepo()

		// 2. Upsert products.
		for _, product := range products {
			if err := productRepo.Upsert(ctx, productFromCatalog(product)); err != nil {
				return errors.Wrapf(err, "upsert product %s", product.ID)
			}
			syncedProducts[product.ID] = struct{}{}
		}

		// 3. Upsert prices whose product can be resolved.
		for _, price := range prices {
			productID := price.Product.ResolveID()
			if productID == "" {
				logger.Warn("Skipping price without product reference", slog.String("price_id", price.ID))

				continue
			}

			strategy := billing.Resolve(price.Metadata, productMetadata[productID])
			if err := priceRepo.Upsert(ctx, priceFromCatalog(price, productID, strategy)); err != nil {
				return errors.Wrapf(err, "upsert price %s", price.ID)
			}
			syncedPrices[price.ID] = struct{}{}
		}

		// 4. Deactivate whatever the pull no longer contains.
		deactivatedProducts, err := productRepo.DeactivateMissing(ctx, keys(syncedProducts))
		if err != nil {
			return errors.Wrap(err, "deactivate missing products")
		}
		deactivatedPrices, err := priceRepo.DeactivateMissing(ctx, keys(syncedPrices))
		if err != nil {
			return errors.Wrap(err, "deactivate missing prices")
		}
		logger.Debug("Deactivated stale catalog entries",
			slog.Int64("products", deactivatedProducts),
			slog.Int64("prices", deactivatedPrices),
		)

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "catalog sync transaction")
	}

	return &usecase.SyncResult{
		SyncedProducts: len(syncedProducts),
		SyncedPrices:   len(syncedPrices),
		SyncedAt:       srv.now().UTC(),
	}, nil
}

// afterCommit runs best-effort follow-ups; none of them can fail the sync.
func (srv *catalogService) afterCommit(ctx context.Context, logger *slog.Logger, syncID string, result *usecase.SyncResult) {
	if err := srv.cache.Invalidate(ctx); err != nil {
		logger.Warn("Failed to invalidate plans cache", slog.Any("error", err))
	}

	event := &service.CatalogSyncedEvent{
		RequestID:      deliverycontext.GetRequestIDFromContext(ctx),
		SyncID:         syncID,
		SyncedProducts: result.SyncedProducts,
		SyncedPrices:   result.SyncedPrices,
		SyncedAt:       result.SyncedAt,
	}
	if err := srv.publisher.PublishCatalogSynced(ctx, event); err != nil {
		logger.Warn("Failed to publish event",
			slog.String("event_type", constants.EventTypeCatalogSynced),
			slog.Any("error", err),
		)
	}
}

// GetPlans serves the plans listing, from cache when possible.
func (srv *catalogService) GetPlans(ctx context.Context) (*usecase.PlansOutput, error) {
	cached, err := srv.cache.Get(ctx)
	switch {
	case err == nil:
		var output usecase.PlansOutput
		if jsonErr := json.Unmarshal(cached, &output); jsonErr == nil {
			srv.metrics.ObservePlansCache(true)

			return &output, nil
		}
		srv.log(ctx).Warn("Discarding unreadable plans cache entry")
	case !errors.Is(err, service.ErrCacheMiss):
		srv.log(ctx).Warn("Plans cache unavailable", slog.Any("error", err))
	}
	srv.metrics.ObservePlansCache(false)

	plans, err := srv.priceRepo.ListActivePlans(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active plans")
	}

	output := &usecase.PlansOutput{Plans: make([]usecase.PlanView, 0, len(plans))}
	for _, plan := range plans {
		output.Plans = append(output.Plans, planView(plan))
	}

	if payload, err := json.Marshal(output); err == nil {
		if err := srv.cache.Set(ctx, payload); err != nil {
			srv.log(ctx).Warn("Failed to cache plans", slog.Any("error", err))
		}
	}

	return output, nil
}

// ProviderStatus confirms the provider key works by retrieving its account.
func (srv *catalogService) ProviderStatus(ctx context.Context) (*usecase.ProviderStatus, error) {
	account, err := srv.provider.RetrieveAccount(ctx)
	if err != nil {
		srv.log(ctx).Error("Billing provider health check failed", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrUpstreamUnavailable, err.Error())
	}

	return &usecase.ProviderStatus{
		Provider:  constants.StripeProviderName,
		Status:    "ok",
		AccountID: account.ID,
		Livemode:  account.Livemode,
	}, nil
}

type listFunc[T any] func(ctx context.Context, params service.CatalogListParams) (*entity.CatalogPage[T], error)

// listAll follows starting_after cursors until the provider reports no more
// data or returns an empty page. More than maxPages pages is an error.
func listAll[T any](ctx context.Context, maxPages, pageSize int, list listFunc[T], id func(T) string) ([]T, error) {
	var (
		items  []T
		cursor string
	)

	for page := 0; ; page++ {
		if page == maxPages {
			return nil, errors.Wrapf(errPageCapExceeded, "after %d pages", maxPages)
		}

		result, err := list(ctx, service.CatalogListParams{Active: true, Limit: pageSize, StartingAfter: cursor})
		if err != nil {
			return nil, err
		}
		items = append(items, result.Data...)

		if !result.HasMore || len(result.Data) == 0 {
			return items, nil
		}
		cursor = id(result.Data[len(result.Data)-1])
	}
}

func productFromCatalog(product entity.CatalogProduct) *entity.BillingProduct {
	return &entity.BillingProduct{
		ExternalID:  product.ID,
		Name:        product.Name,
		Description: product.Description,
		Active:      product.Active,
		Metadata:    nonNilMetadata(product.Metadata),
	}
}

func priceFromCatalog(price entity.CatalogPrice, productID string, strategy entity.BillingStrategy) *entity.BillingPrice {
	billingPrice := &entity.BillingPrice{
		ExternalID:        price.ID,
		ProductExternalID: productID,
		Type:              price.Type,
		Currency:          price.Currency,
		UnitAmount:        price.UnitAmount,
		TaxBehavior:       optionalString(price.TaxBehavior),
		BillingStrategy:   strategy,
		Active:            price.Active,
		Metadata:          nonNilMetadata(price.Metadata),
	}
	if recurring := price.Recurring; recurring != nil {
		billingPrice.RecurringInterval = optionalString(recurring.Interval)
		intervalCount := recurring.IntervalCount
		billingPrice.RecurringIntervalCount = &intervalCount
		billingPrice.UsageType = optionalString(recurring.UsageType)
		billingPrice.MeterID = optionalString(recurring.Meter)
	}

	return billingPrice
}

func planView(plan *entity.Plan) usecase.PlanView {
	price := plan.Price

	return usecase.PlanView{
		PriceID:                price.ExternalID,
		ProductID:              plan.Product.ExternalID,
		ProductName:            plan.Product.Name,
		ProductDescription:     plan.Product.Description,
		Active:                 price.Active,
		Type:                   price.Type,
		Currency:               price.Currency,
		UnitAmount:             price.UnitAmount,
		RecurringInterval:      price.RecurringInterval,
		RecurringIntervalCount: price.RecurringIntervalCount,
		UsageType:              price.UsageType,
		MeterID:                price.MeterID,
		TaxBehavior:            price.TaxBehavior,
		BillingStrategy:        price.BillingStrategy,
		Metadata:               nonNilMetadata(price.Metadata),
	}
}

func nonNilMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return map[string]string{}
	}

	return metadata
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}

	return &value
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}

	return out
}
