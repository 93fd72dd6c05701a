package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/user-directory/pkg/config"
	"github.com/angelmondragon/user-directory/pkg/db"
	"github.com/angelmondragon/user-directory/pkg/db/models"
	"github.com/angelmondragon/user-directory/pkg/logger"
	"gorm.io/gorm"
)

// MaybeRunDev brings the schema up to date when running in development with
// AUTO_MIGRATE enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.App.AutoMigrate {
		return nil
	}

	meta := map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver}
	ctx = logg.WithFields(ctx, meta)

	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "syncing sqlite schema (dev auto-run)")
		if err := SyncModels(client.DB()); err != nil {
			return err
		}
		logg.Info(ctx, "sqlite schema ready")
		return nil
	}

	sqlDB, err := client.SQLDB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (dev auto-run)")
	if err := UpEmbedded(ctx, sqlDB); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// SyncModels creates the users table from the model definition. Used for
// SQLite, which the Postgres migrations do not target.
func SyncModels(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.User{}); err != nil {
		return fmt.Errorf("auto-migrating users: %w", err)
	}
	return nil
}
