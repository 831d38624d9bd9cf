// Package testutil provides test helpers backed by a real in-memory SQLite ledger.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/storage"
)

// TestDB is a migrated, seeded in-memory ledger.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions configures SetupTestDBWithOptions.
type TestDBOptions struct {
	CustomSetup func(context.Context, *storage.SQLiteStorage) error
	SkipSeed    bool
}

// SetupTestDB creates a new in-memory database with the default categories
// and payment methods. It is closed when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if !opts.SkipSeed {
		if err := store.Seed(ctx); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}
	}
	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{Storage: store, t: t}
}

// MustCategory returns the id of the category with the given name.
func (db *TestDB) MustCategory(name string) int64 {
	db.t.Helper()
	cats, err := db.Storage.GetCategories(context.Background(), "")
	if err != nil {
		db.t.Fatalf("failed to list categories: %v", err)
	}
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	db.t.Fatalf("category %q not found", name)
	return 0
}

// MustMethod returns the id of the payment method with the given name.
func (db *TestDB) MustMethod(name string) int64 {
	db.t.Helper()
	methods, err := db.Storage.GetMethods(context.Background())
	if err != nil {
		db.t.Fatalf("failed to list methods: %v", err)
	}
	for _, m := range methods {
		if m.Name == name {
			return m.ID
		}
	}
	db.t.Fatalf("method %q not found", name)
	return 0
}

// MustRule saves rule and returns its id.
func (db *TestDB) MustRule(rule model.Rule) int64 {
	db.t.Helper()
	id, err := db.Storage.UpsertRule(context.Background(), &rule)
	if err != nil {
		db.t.Fatalf("failed to save rule %q: %v", rule.Name, err)
	}
	return id
}

// TxnOption adjusts a transaction built by AddTransaction.
type TxnOption func(*model.Transaction)

// Income marks the transaction as income.
func Income() TxnOption {
	return func(txn *model.Transaction) { txn.Type = model.TransactionIncome }
}

// InCategory sets the category.
func InCategory(id int64) TxnOption {
	return func(txn *model.Transaction) { txn.CategoryID = id }
}

// ByMethod sets the payment method.
func ByMethod(id int64) TxnOption {
	return func(txn *model.Transaction) { txn.MethodID = id }
}

// OnCard sets the card.
func OnCard(id int64) TxnOption {
	return func(txn *model.Transaction) { txn.CardID = &id }
}

// AddTransaction records an expense of amount at the given time, using the
// first seeded category and method unless options say otherwise.
func (db *TestDB) AddTransaction(amount float64, at time.Time, opts ...TxnOption) model.Transaction {
	db.t.Helper()
	txn := model.Transaction{
		Amount:     amount,
		Type:       model.TransactionExpense,
		CategoryID: 1,
		MethodID:   1,
		OccurredAt: at,
		Source:     model.SourceManual,
	}
	for _, opt := range opts {
		opt(&txn)
	}
	if _, err := db.Storage.SaveTransaction(context.Background(), &txn); err != nil {
		db.t.Fatalf("failed to save transaction: %v", err)
	}
	return txn
}
