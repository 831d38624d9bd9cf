package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
)

// GetCategories returns the categories of the given type, or all of them when
// typ is empty.
func (s *SQLiteStorage) GetCategories(ctx context.Context, typ model.TransactionType) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id, name, type, icon, is_custom FROM categories`
	var args []any
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories), "type", typ)
	return categories, nil
}

// GetCategoryByID returns a category by its ID.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, icon, is_custom FROM categories WHERE id = ?`, id)
	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	return cat, err
}

// SaveCategory creates the category when its ID is zero and updates it otherwise.
func (s *SQLiteStorage) SaveCategory(ctx context.Context, category *model.Category) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateCategory(category); err != nil {
		return 0, err
	}

	if category.ID != 0 {
		result, err := s.db.ExecContext(ctx,
			`UPDATE categories SET name = ?, type = ?, icon = ?, is_custom = ? WHERE id = ?`,
			category.Name, string(category.Type), category.Icon, category.IsCustom, category.ID)
		if err != nil {
			return 0, uniqueOr(err, fmt.Sprintf("category %q (%s)", category.Name, category.Type), "failed to save category")
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return 0, fmt.Errorf("category %d: %w", category.ID, common.ErrNotFound)
		}
		return category.ID, nil
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, type, icon, is_custom) VALUES (?, ?, ?, ?)`,
		category.Name, string(category.Type), category.Icon, category.IsCustom)
	if err != nil {
		return 0, uniqueOr(err, fmt.Sprintf("category %q (%s)", category.Name, category.Type), "failed to save category")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get category ID: %w", err)
	}
	category.ID = id

	slog.Info("created new category", "name", category.Name, "type", category.Type, "id", id)
	return id, nil
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var (
		cat model.Category
		typ string
	)
	if err := row.Scan(&cat.ID, &cat.Name, &typ, &cat.Icon, &cat.IsCustom); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	cat.Type = model.TransactionType(typ)
	return &cat, nil
}
