package main

import (
	"fmt"
	"time"

	"socialgraph/infrastructure/config"
	"socialgraph/infrastructure/persistence/sqlite"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	dsnFlag     = "dsn"
	versionFlag = "version"
	timeoutFlag = "timeout"
	verboseFlag = "verbose"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database schema migrations for the sqlite backend",
		Long: `The migrate command applies the embedded schema migrations to the sqlite
database named by --dsn or SQLITE_DSN. The dynamodb and memory backends have no
schema to migrate.`,
		Args: cobra.NoArgs,
		RunE: runMigration,
	}

	flags := cmd.Flags()
	flags.String(dsnFlag, "", "sqlite DSN (defaults to SQLITE_DSN)")
	flags.Int64(versionFlag, 0, "the version to migrate to (if omitted the latest schema will be used)")
	flags.Duration(timeoutFlag, time.Minute, "how long to wait for the database to accept connections")
	flags.Bool(verboseFlag, false, "enable verbose migration logs")

	return cmd
}

func runMigration(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	dsn, _ := flags.GetString(dsnFlag)
	target, _ := flags.GetInt64(versionFlag)
	timeout, _ := flags.GetDuration(timeoutFlag)
	verbose, _ := flags.GetBool(verboseFlag)

	if dsn == "" {
		if cfg.StoreBackend != config.BackendSQLite {
			fmt.Fprintf(cmd.OutOrStdout(), "no migrations to run for %q datastore\n", cfg.StoreBackend)
			return nil
		}
		dsn = cfg.SQLiteDSN
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	return sqlite.Migrate(cmd.Context(), sqlite.MigrationConfig{
		DSN:           dsn,
		TargetVersion: target,
		Timeout:       timeout,
		Verbose:       verbose,
	}, logger)
}
