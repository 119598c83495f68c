package migrate

import (
	"context"
	"fmt"

	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/db"
	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.FeatureFlags.UseSQLite {
		logg.Warn(ctx, "skipping goose migrations on sqlite; schema comes from models")
		return client.DB().AutoMigrate(SQLiteModels()...)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "running embedded migrations")

	runner, err := NewRunner(sqlDB, Migrations(), logg)
	if err != nil {
		return err
	}
	if err := runner.Run(ctx, "up", ""); err != nil {
		return err
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}

// SQLiteModels lists the tables AutoMigrate creates for local sqlite runs and tests.
func SQLiteModels() []any {
	return []any{
		&models.User{},
		&models.Product{},
		&models.ProductVariant{},
		&models.AvailabilitySlot{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}
