package main

import (
	"context"
	"log/slog"

	"meter/config"
	"meter/internal/delivery"
	"meter/internal/delivery/worker"
	"meter/internal/delivery/worker/handler"
	"meter/internal/infra/cache"
	logs "meter/internal/infra/log"
	"meter/internal/infra/metrics"
	"meter/internal/infra/persistence/postgres"
	"meter/internal/infra/pubsub"
	"meter/internal/infra/stripe"
	"meter/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectHandler(),
		injectDelivery(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
		metrics.New,
		metrics.NewRecorder,
		cache.NewPlanCache,
		pubsub.NewEventPublisher,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewBillingPriceRepository,
			postgres.NewTransactionManager,
		),
	)
}

// The worker only runs catalog syncs, so it carries no auth services.
func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			stripe.NewClient,
			impl.NewCatalogService,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewPushHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				worker.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(fx.ExitCode(1)); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
				}
			}
		}()
	}
}
