package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func createSeededStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	store, cleanup := createTestStorage(t)
	if err := store.Seed(context.Background()); err != nil {
		cleanup()
		t.Fatalf("Failed to seed: %v", err)
	}
	return store, cleanup
}

func int64Ptr(v int64) *int64 { return &v }

func testTransaction(amount float64, at time.Time) *model.Transaction {
	return &model.Transaction{
		Amount:     amount,
		Type:       model.TransactionExpense,
		CategoryID: 1,
		MethodID:   1,
		OccurredAt: at,
		Note:       "lunch",
	}
}

func TestNewSQLiteStorage_RejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))

	var indexCount int
	err = store.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='index' AND name='idx_transactions_external_id'
	`).Scan(&indexCount)
	require.NoError(t, err)
	assert.Equal(t, 1, indexCount)
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Seed(ctx))

	cats, err := store.GetCategories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, cats, len(DefaultCategories))
}

func TestSQLiteStorage_Seed(t *testing.T) {
	store, cleanup := createSeededStorage(t)
	defer cleanup()
	ctx := context.Background()

	expense, err := store.GetCategories(ctx, model.TransactionExpense)
	require.NoError(t, err)
	assert.Len(t, expense, 6)
	assert.Equal(t, "餐饮", expense[0].Name)
	assert.Equal(t, int64(1), expense[0].ID)

	income, err := store.GetCategories(ctx, model.TransactionIncome)
	require.NoError(t, err)
	require.Len(t, income, 3)
	assert.Equal(t, "工资", income[0].Name)

	methods, err := store.GetMethods(ctx)
	require.NoError(t, err)
	require.Len(t, methods, 5)
	huabei := methods[2]
	assert.Equal(t, "支付宝花呗", huabei.Name)
	assert.True(t, huabei.IsCredit)
	require.NotNil(t, huabei.DueDay)
	assert.Equal(t, 15, *huabei.DueDay)

	// Seeding twice does not duplicate anything.
	require.NoError(t, store.Seed(ctx))
	methods, err = store.GetMethods(ctx)
	require.NoError(t, err)
	assert.Len(t, methods, 5)
}

func TestSQLiteStorage_Rules(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	group := 1
	first := &model.Rule{
		Name:        "bank sms",
		Channel:     "SMS",
		Keywords:    "消费,银行",
		Pattern:     `消费(\d+\.?\d*)元`,
		AmountGroup: &group,
		Type:        model.TransactionExpense,
		CategoryID:  int64Ptr(3),
		Enabled:     true,
		Priority:    5,
	}
	id, err := store.UpsertRule(ctx, first)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, first.ID)

	second := &model.Rule{Name: "card", CardID: int64Ptr(7), Type: model.TransactionExpense, Enabled: true, Priority: 5}
	_, err = store.UpsertRule(ctx, second)
	require.NoError(t, err)

	third := &model.Rule{Name: "top", Type: model.TransactionIncome, Enabled: true, Priority: 50}
	_, err = store.UpsertRule(ctx, third)
	require.NoError(t, err)

	rules, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, []int64{third.ID, first.ID, second.ID}, []int64{rules[0].ID, rules[1].ID, rules[2].ID})

	got, err := store.GetRule(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Pattern, got.Pattern)
	require.NotNil(t, got.AmountGroup)
	assert.Equal(t, 1, *got.AmountGroup)
	assert.Nil(t, got.DateGroup)
	assert.Nil(t, got.MethodID)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, int64(3), *got.CategoryID)

	// Upsert by id replaces in place.
	got.Keywords = "消费"
	got.Priority = 1
	updatedID, err := store.UpsertRule(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, first.ID, updatedID)
	reloaded, err := store.GetRule(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "消费", reloaded.Keywords)
	assert.Equal(t, 1, reloaded.Priority)

	rules, err = store.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	require.NoError(t, store.SetRuleEnabled(ctx, second.ID, false))
	reloaded, err = store.GetRule(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Enabled)

	err = store.SetRuleEnabled(ctx, 999, true)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetRule(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_UpsertRuleValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		rule *model.Rule
		want error
		name string
	}{
		{name: "nil", rule: nil, want: ErrNilParameter},
		{name: "missing name", rule: &model.Rule{Type: model.TransactionExpense}, want: ErrInvalidRule},
		{name: "bad type", rule: &model.Rule{Name: "x", Type: "transfer"}, want: ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.UpsertRule(ctx, tt.rule)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSQLiteStorage_WithTx(t *testing.T) {
	store, cleanup := createSeededStorage(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		var ruleID int64
		err := store.WithTx(ctx, func(tx service.Store) error {
			id, err := tx.UpsertRule(ctx, &model.Rule{Name: "learned", Type: model.TransactionExpense, Enabled: true})
			if err != nil {
				return err
			}
			ruleID = id
			txn := testTransaction(10, time.Now())
			txn.MatchedRuleID = &id
			_, err = tx.SaveTransaction(ctx, txn)
			return err
		})
		require.NoError(t, err)

		rule, err := store.GetRule(ctx, ruleID)
		require.NoError(t, err)
		assert.Equal(t, "learned", rule.Name)

		count, err := store.CountTransactions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		before, err := store.ListRules(ctx)
		require.NoError(t, err)

		err = store.WithTx(ctx, func(tx service.Store) error {
			if _, err := tx.UpsertRule(ctx, &model.Rule{Name: "doomed", Type: model.TransactionExpense}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		after, err := store.ListRules(ctx)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("validation inside tx rolls back", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx service.Store) error {
			_, err := tx.SaveTransaction(ctx, testTransaction(0, time.Now()))
			return err
		})
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	})
}
