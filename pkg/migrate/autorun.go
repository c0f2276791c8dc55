package migrate

import (
	"context"
	"fmt"

	"github.com/texnika/texnika-backend/pkg/config"
	"github.com/texnika/texnika-backend/pkg/db"
	"github.com/texnika/texnika-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup when running in dev
// with the auto-migrate flag set. Elsewhere cmd/migrate owns schema changes.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := New(sqlDB, cfg.DB.Driver, nil, logg)
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "event", "migrate.autorun")
	if err := m.Up(ctx); err != nil {
		return err
	}
	version, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "version", version), "schema up to date")
	return nil
}
