package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial ledger schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					icon TEXT NOT NULL DEFAULT '',
					is_custom BOOLEAN NOT NULL DEFAULT 0,
					UNIQUE (name, type)
				)`,

				`CREATE TABLE IF NOT EXISTS methods (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE,
					type TEXT NOT NULL DEFAULT 'expense',
					is_credit BOOLEAN NOT NULL DEFAULT 0,
					bill_day INTEGER,
					due_day INTEGER,
					total_limit REAL,
					remaining_limit REAL,
					is_custom BOOLEAN NOT NULL DEFAULT 0,
					repay_lead_days INTEGER
				)`,

				`CREATE TABLE IF NOT EXISTS cards (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					method_id INTEGER NOT NULL REFERENCES methods(id),
					label TEXT NOT NULL,
					bill_day INTEGER,
					due_day INTEGER,
					total_limit REAL,
					remaining_limit REAL,
					is_custom BOOLEAN NOT NULL DEFAULT 0,
					repay_lead_days INTEGER
				)`,
				`CREATE INDEX IF NOT EXISTS idx_cards_method ON cards(method_id)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					amount REAL NOT NULL,
					type TEXT NOT NULL,
					category_id INTEGER NOT NULL,
					method_id INTEGER NOT NULL,
					card_id INTEGER,
					occurred_at DATETIME NOT NULL,
					note TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL DEFAULT 'Manual',
					matched_rule_id INTEGER,
					from_message BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_occurred_at ON transactions(occurred_at)`,

				`CREATE TABLE IF NOT EXISTS budgets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					month TEXT NOT NULL,
					amount REAL NOT NULL,
					scope TEXT NOT NULL DEFAULT 'all',
					category_id INTEGER,
					method_id INTEGER,
					card_id INTEGER
				)`,
				`CREATE INDEX IF NOT EXISTS idx_budgets_month ON budgets(month)`,

				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					channel TEXT NOT NULL DEFAULT '',
					method_id INTEGER,
					card_id INTEGER,
					keywords TEXT NOT NULL DEFAULT '',
					pattern TEXT,
					amount_group INTEGER,
					type TEXT NOT NULL,
					category_id INTEGER,
					enabled BOOLEAN NOT NULL DEFAULT 1,
					priority INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_rules_priority ON rules(priority DESC, id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add date extraction group to rules",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE rules ADD COLUMN date_group INTEGER`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Track statement ids for imported transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE transactions ADD COLUMN external_id TEXT`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_external_id
					ON transactions(external_id) WHERE external_id IS NOT NULL`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
