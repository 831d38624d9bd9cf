package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
)

const budgetMonthLayout = "2006-01"

const budgetColumns = `id, month, amount, scope, category_id, method_id, card_id`

// GetBudgets returns every budget, most recent month first.
func (s *SQLiteStorage) GetBudgets(ctx context.Context) ([]model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryBudgets(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY month DESC, id`)
}

// GetBudgetsForMonth returns every budget, of any scope, set for month.
func (s *SQLiteStorage) GetBudgetsForMonth(ctx context.Context, month time.Time) ([]model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryBudgets(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE month = ? ORDER BY id`,
		month.Format(budgetMonthLayout))
}

// GetBudgetForMonth returns the whole-ledger budget for month.
func (s *SQLiteStorage) GetBudgetForMonth(ctx context.Context, month time.Time) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE month = ? AND scope = ? ORDER BY id LIMIT 1`,
		month.Format(budgetMonthLayout), string(model.BudgetScopeAll))
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget for %s: %w", month.Format(budgetMonthLayout), common.ErrNotFound)
	}
	return b, err
}

// SaveBudget stores a budget. A budget for the same month and target
// replaces the existing one.
func (s *SQLiteStorage) SaveBudget(ctx context.Context, budget *model.Budget) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateBudget(budget); err != nil {
		return 0, err
	}
	if budget.Scope == "" {
		budget.Scope = model.BudgetScopeAll
	}
	budget.Month = model.MonthStart(budget.Month)
	month := budget.Month.Format(budgetMonthLayout)

	if budget.ID == 0 {
		err := s.db.QueryRowContext(ctx, `
			SELECT id FROM budgets
			WHERE month = ? AND scope = ?
				AND IFNULL(category_id, 0) = ? AND IFNULL(method_id, 0) = ? AND IFNULL(card_id, 0) = ?`,
			month, string(budget.Scope),
			derefOrZero(budget.CategoryID), derefOrZero(budget.MethodID), derefOrZero(budget.CardID),
		).Scan(&budget.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("failed to look up budget: %w", err)
		}
	}

	if budget.ID != 0 {
		_, err := s.db.ExecContext(ctx, `
			UPDATE budgets SET month = ?, amount = ?, scope = ?, category_id = ?, method_id = ?, card_id = ?
			WHERE id = ?`,
			month, budget.Amount, string(budget.Scope),
			nullInt64(budget.CategoryID), nullInt64(budget.MethodID), nullInt64(budget.CardID), budget.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to update budget: %w", err)
		}
		return budget.ID, nil
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (month, amount, scope, category_id, method_id, card_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		month, budget.Amount, string(budget.Scope),
		nullInt64(budget.CategoryID), nullInt64(budget.MethodID), nullInt64(budget.CardID))
	if err != nil {
		return 0, fmt.Errorf("failed to save budget: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get budget ID: %w", err)
	}
	budget.ID = id
	return id, nil
}

func (s *SQLiteStorage) queryBudgets(ctx context.Context, query string, args ...any) ([]model.Budget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

func scanBudget(row rowScanner) (*model.Budget, error) {
	var (
		b                            model.Budget
		month, scope                 string
		categoryID, methodID, cardID sql.NullInt64
	)
	if err := row.Scan(&b.ID, &month, &b.Amount, &scope, &categoryID, &methodID, &cardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan budget: %w", err)
	}

	parsed, err := time.ParseInLocation(budgetMonthLayout, month, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: bad budget month %q", common.ErrDatabaseCorrupted, month)
	}
	b.Month = parsed
	b.Scope = model.BudgetScope(scope)
	b.CategoryID = int64From(categoryID)
	b.MethodID = int64From(methodID)
	b.CardID = int64From(cardID)
	return &b, nil
}

func derefOrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
