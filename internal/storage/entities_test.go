package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
)

func TestSQLiteStorage_Categories(t *testing.T) {
	store, cleanup := createSeededStorage(t)
	defer cleanup()
	ctx := context.Background()

	custom := &model.Category{Name: "宠物", Type: model.TransactionExpense, Icon: "pet", IsCustom: true}
	id, err := store.SaveCategory(ctx, custom)
	require.NoError(t, err)

	got, err := store.GetCategoryByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "宠物", got.Name)
	assert.True(t, got.IsCustom)

	// Same name is allowed under the other type only.
	_, err = store.SaveCategory(ctx, &model.Category{Name: "宠物", Type: model.TransactionExpense})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	_, err = store.SaveCategory(ctx, &model.Category{Name: "宠物", Type: model.TransactionIncome})
	require.NoError(t, err)

	got.Icon = "paw"
	_, err = store.SaveCategory(ctx, got)
	require.NoError(t, err)
	reloaded, err := store.GetCategoryByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "paw", reloaded.Icon)

	_, err = store.GetCategoryByID(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.SaveCategory(ctx, &model.Category{Name: "", Type: model.TransactionExpense})
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestSQLiteStorage_MethodsAndCards(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	due := 20
	lead := 5
	method := &model.Method{Name: "招行信用卡", IsCredit: true, DueDay: &due, RepayLeadDays: &lead}
	methodID, err := store.SaveMethod(ctx, method)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionExpense, method.Type)

	got, err := store.GetMethodByID(ctx, methodID)
	require.NoError(t, err)
	assert.True(t, got.IsCredit)
	require.NotNil(t, got.RepayLeadDays)
	assert.Equal(t, 5, *got.RepayLeadDays)
	assert.Nil(t, got.BillDay)

	_, err = store.SaveMethod(ctx, &model.Method{Name: "招行信用卡"})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	bad := 32
	_, err = store.SaveMethod(ctx, &model.Method{Name: "broken", DueDay: &bad})
	assert.ErrorIs(t, err, ErrInvalidMethod)

	limit := 5000.0
	card := &model.Card{MethodID: methodID, Label: "尾号1234", TotalLimit: &limit}
	cardID, err := store.SaveCard(ctx, card)
	require.NoError(t, err)

	_, err = store.SaveCard(ctx, &model.Card{MethodID: methodID, Label: "尾号5678"})
	require.NoError(t, err)

	cards, err := store.GetCards(ctx, methodID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, cardID, cards[0].ID)
	require.NotNil(t, cards[0].TotalLimit)
	assert.InDelta(t, 5000.0, *cards[0].TotalLimit, 1e-9)

	all, err := store.GetCards(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = store.SaveCard(ctx, &model.Card{MethodID: 999, Label: "orphan"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_Budgets(t *testing.T) {
	store, cleanup := createSeededStorage(t)
	defer cleanup()
	ctx := context.Background()

	march := time.Date(2024, 3, 17, 9, 0, 0, 0, time.Local)

	_, err := store.GetBudgetForMonth(ctx, march)
	assert.ErrorIs(t, err, common.ErrNotFound)

	id, err := store.SaveBudget(ctx, &model.Budget{Month: march, Amount: 3000})
	require.NoError(t, err)

	got, err := store.GetBudgetForMonth(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, model.BudgetScopeAll, got.Scope)
	assert.Equal(t, 1, got.Month.Day())
	assert.InDelta(t, 3000.0, got.Amount, 1e-9)

	// Same month and target replaces the amount.
	again, err := store.SaveBudget(ctx, &model.Budget{Month: march.AddDate(0, 0, 3), Amount: 3500})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = store.SaveBudget(ctx, &model.Budget{Month: march, Amount: 800, Scope: model.BudgetScopeCategory, CategoryID: int64Ptr(1)})
	require.NoError(t, err)
	_, err = store.SaveBudget(ctx, &model.Budget{Month: march.AddDate(0, 1, 0), Amount: 2000})
	require.NoError(t, err)

	monthBudgets, err := store.GetBudgetsForMonth(ctx, march)
	require.NoError(t, err)
	require.Len(t, monthBudgets, 2)
	assert.InDelta(t, 3500.0, monthBudgets[0].Amount, 1e-9)

	all, err := store.GetBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, time.April, all[0].Month.Month())

	_, err = store.SaveBudget(ctx, &model.Budget{Month: march, Amount: 10, Scope: model.BudgetScopeCard})
	assert.ErrorIs(t, err, ErrInvalidBudget)
	_, err = store.SaveBudget(ctx, &model.Budget{Month: march, Amount: -1})
	assert.ErrorIs(t, err, ErrInvalidBudget)
}
