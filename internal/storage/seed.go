package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/smartledger/internal/model"
)

func intRef(v int) *int { return &v }

// DefaultCategories are created on first run.
var DefaultCategories = []model.Category{
	{Name: "餐饮", Type: model.TransactionExpense, Icon: "food"},
	{Name: "交通", Type: model.TransactionExpense, Icon: "transport"},
	{Name: "购物", Type: model.TransactionExpense, Icon: "shopping"},
	{Name: "住房", Type: model.TransactionExpense, Icon: "home"},
	{Name: "娱乐", Type: model.TransactionExpense, Icon: "fun"},
	{Name: "其他", Type: model.TransactionExpense, Icon: "other"},
	{Name: "工资", Type: model.TransactionIncome, Icon: "salary"},
	{Name: "理财", Type: model.TransactionIncome, Icon: "invest"},
	{Name: "退款", Type: model.TransactionIncome, Icon: "refund"},
}

// DefaultMethods are created on first run.
var DefaultMethods = []model.Method{
	{Name: "微信钱包", Type: model.TransactionExpense},
	{Name: "支付宝", Type: model.TransactionExpense},
	{Name: "支付宝花呗", Type: model.TransactionExpense, IsCredit: true, BillDay: intRef(5), DueDay: intRef(15)},
	{Name: "银行卡", Type: model.TransactionExpense},
	{Name: "信用卡", Type: model.TransactionExpense, IsCredit: true, BillDay: intRef(10), DueDay: intRef(25)},
}

// Seed fills the categories and methods tables with defaults when they are empty.
// Tables that already hold rows are left alone.
func (s *SQLiteStorage) Seed(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var categories int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&categories); err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if categories == 0 {
		for _, cat := range DefaultCategories {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (name, type, icon, is_custom) VALUES (?, ?, ?, 0)`,
				cat.Name, string(cat.Type), cat.Icon); err != nil {
				return fmt.Errorf("failed to seed category %q: %w", cat.Name, err)
			}
		}
		slog.Info("seeded default categories", "count", len(DefaultCategories))
	}

	var methods int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM methods`).Scan(&methods); err != nil {
		return fmt.Errorf("failed to count methods: %w", err)
	}
	if methods == 0 {
		for _, m := range DefaultMethods {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO methods (name, type, is_credit, bill_day, due_day, is_custom)
				VALUES (?, ?, ?, ?, ?, 0)`,
				m.Name, string(m.Type), m.IsCredit, nullInt(m.BillDay), nullInt(m.DueDay)); err != nil {
				return fmt.Errorf("failed to seed method %q: %w", m.Name, err)
			}
		}
		slog.Info("seeded default methods", "count", len(DefaultMethods))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed data: %w", err)
	}
	return nil
}
