package ofx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/service"
	"github.com/Veraticus/smartledger/internal/testutil"
)

func TestImporter_Import(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	food := db.MustCategory("餐饮")
	salary := db.MustCategory("工资")
	other := db.MustCategory("其他")
	bank := db.MustMethod("银行卡")

	coffee := db.MustRule(model.Rule{
		Name: "coffee", Channel: model.SourceOFX, Keywords: "starbucks",
		Type: model.TransactionExpense, CategoryID: &food, Enabled: true,
	})
	db.MustRule(model.Rule{
		Name: "payroll", Keywords: "payroll,salary",
		Type: model.TransactionIncome, CategoryID: &salary, Enabled: true,
	})

	lines, err := NewParser().ParseFile(ctx, strings.NewReader(sampleBankOFX))
	require.NoError(t, err)

	importer := NewImporter(db.Storage, nil)
	opts := ImportOptions{MethodID: bank, DefaultCategoryID: other, DefaultMethodID: 1}

	dry, err := importer.Import(ctx, lines, ImportOptions{MethodID: bank, DefaultCategoryID: other, DefaultMethodID: 1, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 4, dry.Imported)
	count, err := db.Storage.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	result, err := importer.Import(ctx, lines, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Imported)
	assert.Equal(t, 2, result.Matched)
	assert.Zero(t, result.Duplicates)

	byExternal := map[string]model.Transaction{}
	stored, err := db.Storage.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 4)
	for _, txn := range stored {
		byExternal[txn.ExternalID] = txn
	}

	starbucks := byExternal["1234567890:2024011501"]
	assert.Equal(t, model.TransactionExpense, starbucks.Type)
	assert.InDelta(t, 25.50, starbucks.Amount, 1e-9)
	assert.Equal(t, food, starbucks.CategoryID)
	assert.Equal(t, bank, starbucks.MethodID)
	assert.Equal(t, model.SourceOFX, starbucks.Source)
	assert.False(t, starbucks.FromMessage)
	require.NotNil(t, starbucks.MatchedRuleID)
	assert.Equal(t, coffee, *starbucks.MatchedRuleID)

	payroll := byExternal["1234567890:2024013101"]
	assert.Equal(t, model.TransactionIncome, payroll.Type)
	assert.Equal(t, salary, payroll.CategoryID)

	unmatched := byExternal["1234567890:2024012001"]
	assert.Equal(t, other, unmatched.CategoryID)
	assert.Nil(t, unmatched.MatchedRuleID)

	again, err := importer.Import(ctx, lines, opts)
	require.NoError(t, err)
	assert.Zero(t, again.Imported)
	assert.Equal(t, 4, again.Duplicates)

	count, err = db.Storage.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestImporter_SkipsUnusableLines(t *testing.T) {
	db := testutil.SetupTestDB(t)
	lines := []Line{
		{FITID: "a", AccountID: "x", Amount: 0},
		{FITID: "", AccountID: "x", Amount: -3},
	}

	result, err := NewImporter(db.Storage, nil).Import(context.Background(), lines, ImportOptions{DefaultCategoryID: 1, DefaultMethodID: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Zero(t, result.Imported)
}

func TestImporter_CategoryFollowsLineType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	food := db.MustCategory("餐饮")
	refund := db.MustCategory("退款")
	salary := db.MustCategory("工资")
	db.MustRule(model.Rule{
		Name: "coffee", Keywords: "starbucks",
		Type: model.TransactionExpense, CategoryID: &food, Enabled: true,
	})

	lines := []Line{
		{FITID: "1", AccountID: "acct", Merchant: "STARBUCKS", Amount: -12},
		{FITID: "2", AccountID: "acct", Merchant: "STARBUCKS", Memo: "REFUND", Amount: 12},
		{FITID: "3", AccountID: "acct", Merchant: "ACME", Amount: 300},
	}

	tests := []struct {
		name       string
		incomeID   int64
		wantIncome int64
	}{
		{name: "first stored income category", wantIncome: salary},
		{name: "configured income category", incomeID: refund, wantIncome: refund},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewImporter(db.Storage, nil).Import(ctx, lines, ImportOptions{
				DefaultCategoryID:       food,
				DefaultIncomeCategoryID: tt.incomeID,
				DefaultMethodID:         1,
				DryRun:                  true,
			})
			require.NoError(t, err)
			require.Len(t, result.Transactions, 3)

			assert.Equal(t, food, result.Transactions[0].CategoryID)
			assert.Equal(t, model.TransactionIncome, result.Transactions[1].Type)
			assert.Equal(t, tt.wantIncome, result.Transactions[1].CategoryID)
			assert.NotNil(t, result.Transactions[1].MatchedRuleID)
			assert.Equal(t, tt.wantIncome, result.Transactions[2].CategoryID)
		})
	}
}
