package sqlite

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// MigrationConfig controls a migration run
type MigrationConfig struct {
	DSN           string
	TargetVersion int64 // 0 migrates to the latest version
	Timeout       time.Duration
	Verbose       bool
}

// Migrate brings the schema at cfg.DSN to the requested version
func Migrate(ctx context.Context, cfg MigrationConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	goose.SetLogger(goose.NopLogger())
	goose.SetVerbose(cfg.Verbose)
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set sqlite dialect: %w", err)
	}

	uri, err := PrepareDSN(cfg.DSN)
	if err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver("sqlite", uri)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	defer db.Close()

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = cfg.Timeout
	if policy.MaxElapsedTime == 0 {
		policy.MaxElapsedTime = 10 * time.Second
	}
	err = backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite connection: %w", err)
	}

	currentVersion, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get sqlite db version: %w", err)
	}
	logger.Info("sqlite schema version", zap.Int64("current", currentVersion), zap.Int64("target", cfg.TargetVersion))

	switch {
	case cfg.TargetVersion == 0:
		if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("failed to run sqlite migrations: %w", err)
		}
	case cfg.TargetVersion < currentVersion:
		if err := goose.DownToContext(ctx, db, migrationsDir, cfg.TargetVersion); err != nil {
			return fmt.Errorf("failed to run sqlite migrations down to %d: %w", cfg.TargetVersion, err)
		}
	case cfg.TargetVersion > currentVersion:
		if err := goose.UpToContext(ctx, db, migrationsDir, cfg.TargetVersion); err != nil {
			return fmt.Errorf("failed to run sqlite migrations up to %d: %w", cfg.TargetVersion, err)
		}
	default:
		logger.Info("sqlite schema up to date")
		return nil
	}

	logger.Info("sqlite migration done")
	return nil
}
