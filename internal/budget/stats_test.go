package budget

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/testutil"
)

func TestSummarize(t *testing.T) {
	categories := []model.Category{{ID: 1, Name: "餐饮"}, {ID: 2, Name: "交通"}}
	methods := []model.Method{{ID: 1, Name: "微信钱包"}, {ID: 2, Name: "支付宝"}}
	txns := []model.Transaction{
		{ID: 1, Amount: 12, Type: model.TransactionExpense, OccurredAt: day(3), CategoryID: 1, MethodID: 1},
		{ID: 2, Amount: 8, Type: model.TransactionExpense, OccurredAt: day(3), CategoryID: 2, MethodID: 2},
		{ID: 3, Amount: 30, Type: model.TransactionExpense, OccurredAt: day(1), CategoryID: 1, MethodID: 2},
		{ID: 4, Amount: 5, Type: model.TransactionExpense, OccurredAt: day(7), CategoryID: 9, MethodID: 1},
		{ID: 5, Amount: 1000, Type: model.TransactionIncome, OccurredAt: day(10), CategoryID: 7, MethodID: 1},
		{ID: 6, Amount: 77, Type: model.TransactionExpense, OccurredAt: time.Date(2024, 4, 1, 1, 0, 0, 0, time.UTC), CategoryID: 1, MethodID: 1},
	}
	budgets := []model.Budget{{ID: 1, Month: day(1), Scope: model.BudgetScopeAll, Amount: 40}}

	stats := Summarize(day(15), txns, categories, methods, budgets)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), stats.Month)
	assert.True(t, decimal.NewFromInt(55).Equal(stats.Expense))
	assert.True(t, decimal.NewFromInt(1000).Equal(stats.Income))
	assert.True(t, decimal.NewFromInt(945).Equal(stats.Balance))

	require.Len(t, stats.ByCategory, 3)
	assert.Equal(t, "餐饮", stats.ByCategory[0].Name)
	assert.True(t, decimal.NewFromInt(42).Equal(stats.ByCategory[0].Amount))
	assert.Equal(t, "交通", stats.ByCategory[1].Name)
	assert.Equal(t, "9", stats.ByCategory[2].Name)

	require.Len(t, stats.ByMethod, 2)
	assert.Equal(t, "支付宝", stats.ByMethod[0].Name)
	assert.True(t, decimal.NewFromInt(38).Equal(stats.ByMethod[0].Amount))

	require.Len(t, stats.Trend, 3)
	assert.Equal(t, []int{1, 3, 7}, []int{stats.Trend[0].Day, stats.Trend[1].Day, stats.Trend[2].Day})
	assert.True(t, decimal.NewFromInt(20).Equal(stats.Trend[1].Amount))

	require.Len(t, stats.Recent, 5)
	assert.Equal(t, int64(6), stats.Recent[0].ID)
	assert.Equal(t, int64(5), stats.Recent[1].ID)

	require.NotNil(t, stats.Budget.Budget)
	assert.True(t, stats.Budget.Overspent)
	assert.Empty(t, stats.Scoped)
}

func TestReporter_Month(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	food := db.MustCategory("餐饮")
	salary := db.MustCategory("工资")
	alipay := db.MustMethod("支付宝")
	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)

	db.AddTransaction(25.5, march.AddDate(0, 0, 2), testutil.InCategory(food), testutil.ByMethod(alipay))
	db.AddTransaction(14.5, march.AddDate(0, 0, 4), testutil.InCategory(food), testutil.ByMethod(alipay))
	db.AddTransaction(3000, march.AddDate(0, 0, 9), testutil.Income(), testutil.InCategory(salary))
	db.AddTransaction(99, march.AddDate(0, 1, 2), testutil.InCategory(food))

	_, err := db.Storage.SaveBudget(ctx, &model.Budget{Month: march, Scope: model.BudgetScopeAll, Amount: 30})
	require.NoError(t, err)
	_, err = db.Storage.SaveBudget(ctx, &model.Budget{Month: march, Scope: model.BudgetScopeMethod, MethodID: &alipay, Amount: 100})
	require.NoError(t, err)

	stats, err := NewReporter(db.Storage).Month(ctx, march.AddDate(0, 0, 20))
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(40).Equal(stats.Expense), "expense %s", stats.Expense)
	assert.True(t, decimal.NewFromInt(3000).Equal(stats.Income))
	require.Len(t, stats.ByCategory, 1)
	assert.Equal(t, "餐饮", stats.ByCategory[0].Name)
	require.Len(t, stats.ByMethod, 1)
	assert.Equal(t, "支付宝", stats.ByMethod[0].Name)

	require.NotNil(t, stats.Budget.Budget)
	assert.True(t, stats.Budget.Overspent)
	assert.True(t, decimal.NewFromInt(-10).Equal(stats.Budget.Remaining))

	require.Len(t, stats.Scoped, 1)
	assert.False(t, stats.Scoped[0].Overspent)
	assert.True(t, decimal.NewFromInt(60).Equal(stats.Scoped[0].Remaining))

	require.Len(t, stats.Recent, 4)
	assert.InDelta(t, 99.0, stats.Recent[0].Amount, 1e-9)
}
