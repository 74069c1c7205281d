package postgres

import (
	"context"

	"meter/internal/errors"
	"meter/internal/infra/persistence/model"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(model.AllModels()...); err != nil {
		return errors.Wrap(err, "auto migrate")
	}

	return nil
}
