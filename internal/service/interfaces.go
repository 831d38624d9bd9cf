// Package service defines the store contracts shared by the ledger components.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/smartledger/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
// Zero values mean "no constraint".
type TransactionFilter struct {
	Start       *time.Time
	End         *time.Time
	Type        model.TransactionType
	CategoryID  *int64
	MethodID    *int64
	CardID      *int64
	FromMessage *bool
	Limit       int
	Offset      int
}

// RuleStore is the durable, ordered collection of matching rules.
type RuleStore interface {
	// ListRules returns every rule ordered by priority descending, then id.
	ListRules(ctx context.Context) ([]model.Rule, error)
	// UpsertRule inserts the rule when its ID is zero and replaces it otherwise.
	// The assigned ID is written back to rule.ID and returned.
	UpsertRule(ctx context.Context, rule *model.Rule) (int64, error)
}

// LedgerStore persists transactions.
type LedgerStore interface {
	SaveTransaction(ctx context.Context, txn *model.Transaction) (int64, error)
}

// Store is what the message processor needs from persistence.
type Store interface {
	RuleStore
	LedgerStore
}

// AtomicStore can run a group of Store operations as one unit of work.
// If fn returns an error nothing it did is persisted.
type AtomicStore interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// Storage is the full persistence contract used by the CLI.
type Storage interface {
	AtomicStore

	// Rule operations
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	SetRuleEnabled(ctx context.Context, id int64, enabled bool) error

	// Transaction operations
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	CountTransactions(ctx context.Context) (int, error)

	// Category operations
	GetCategories(ctx context.Context, typ model.TransactionType) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	SaveCategory(ctx context.Context, category *model.Category) (int64, error)

	// Method and card operations
	GetMethods(ctx context.Context) ([]model.Method, error)
	GetMethodByID(ctx context.Context, id int64) (*model.Method, error)
	SaveMethod(ctx context.Context, method *model.Method) (int64, error)
	GetCards(ctx context.Context, methodID int64) ([]model.Card, error)
	SaveCard(ctx context.Context, card *model.Card) (int64, error)

	// Budget operations
	GetBudgets(ctx context.Context) ([]model.Budget, error)
	GetBudgetForMonth(ctx context.Context, month time.Time) (*model.Budget, error)
	GetBudgetsForMonth(ctx context.Context, month time.Time) ([]model.Budget, error)
	SaveBudget(ctx context.Context, budget *model.Budget) (int64, error)

	// Database management
	Migrate(ctx context.Context) error
	Seed(ctx context.Context) error
	Close() error
}
