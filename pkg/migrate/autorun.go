package migrate

import (
	"context"
	"fmt"

	"github.com/unicampus/campus-backend/pkg/config"
	"github.com/unicampus/campus-backend/pkg/db"
	"github.com/unicampus/campus-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations when running in dev with
// CAMPUS_AUTO_MIGRATE set. Each campus binary calls it at boot.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Embedded(), logg)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": "embedded"})
	logg.Info(ctx, "running migrations (dev auto-run)")
	if err := runner.Run(ctx, "up"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
