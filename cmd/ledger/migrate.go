package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

An existing database is backed up before any migration is applied.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}
	cmd.Flags().Bool("status", false, "show the schema version without applying changes")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	_, statErr := os.Stat(settings.DatabasePath)
	existed := statErr == nil

	store, err := storage.NewSQLiteStorage(settings.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if status {
		fmt.Fprintln(out, cli.FormatTitle("数据库"))
		fmt.Fprintf(out, "  路径      %s\n", settings.DatabasePath)
		fmt.Fprintf(out, "  当前版本  %d\n", current)
		fmt.Fprintf(out, "  最新版本  %d\n", storage.ExpectedSchemaVersion)
		if current < storage.ExpectedSchemaVersion {
			fmt.Fprintln(out, cli.FormatWarning("需要迁移，请运行 ledger migrate"))
		}
		return nil
	}

	if current >= storage.ExpectedSchemaVersion {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("数据库已是最新版本 (%d)", current)))
		return nil
	}

	if existed && current > 0 {
		autoBackup(cmd, store, "migrate")
	}

	slog.Info("running database migrations", "database", settings.DatabasePath, "from", current, "to", storage.ExpectedSchemaVersion)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := store.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed defaults: %w", err)
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("迁移完成 (%d → %d)", current, storage.ExpectedSchemaVersion)))
	return nil
}
