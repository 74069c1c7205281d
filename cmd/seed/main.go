// Command seed migrates the schema and creates the demo organization and
// user. Running it again leaves an existing user untouched.
package main

import (
	"context"
	"log/slog"
	"os"

	"meter/config"
	"meter/internal/domain/lifecycle"
	"meter/internal/domain/repository"
	"meter/internal/domain/service"
	"meter/internal/infra/auth"
	logs "meter/internal/infra/log"
	"meter/internal/infra/persistence/postgres"
	"meter/internal/usecase/impl"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

type seedParams struct {
	fx.In

	Config    *config.Config
	Logger    *slog.Logger
	DB        *gorm.DB
	TxManager repository.TransactionManager
	Hasher    service.PasswordHasher
}

func main() {
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			config.New,
			logs.New,
			postgres.New,
			postgres.NewTransactionManager,
			auth.NewBcryptHasher,
		),
		fx.Invoke(runSeed),
	)

	ctx, cancel := context.WithTimeout(context.Background(), lifecycle.DefaultTimeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		slog.Error("Seed failed", slog.Any("error", err))
		os.Exit(1)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycle.DefaultTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		slog.Error("Failed to stop seed", slog.Any("error", err))
	}
}

func runSeed(lc fx.Lifecycle, params seedParams) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := postgres.Migrate(ctx, params.DB); err != nil {
				return err
			}

			_, err := impl.SeedDemoAccount(ctx, params.TxManager, params.Hasher, params.Config.Seed, params.Logger)

			return err
		},
	})
}
