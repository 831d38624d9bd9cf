// Package budget computes monthly budget status and spending statistics.
// Sums are accumulated as decimals so that many small amounts add up exactly.
package budget

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/smartledger/internal/model"
)

// Status is how a month's spending compares to its budget.
type Status struct {
	Budget    *model.Budget // nil when the month has no budget
	Spent     decimal.Decimal
	Remaining decimal.Decimal
	Overspent bool
}

// Limit returns the budget amount, zero when there is no budget.
func (s Status) Limit() decimal.Decimal {
	if s.Budget == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(s.Budget.Amount)
}

// Compute evaluates the month-wide budget for month: expense transactions of
// the same calendar month count as spent. Scoped budgets are ignored; use
// ComputeScoped for those.
func Compute(budgets []model.Budget, txns []model.Transaction, month time.Time) Status {
	var monthBudget *model.Budget
	for i := range budgets {
		b := budgets[i]
		if sameMonth(b.Month, month) && (b.Scope == model.BudgetScopeAll || b.Scope == "") {
			monthBudget = &b
			break
		}
	}

	spent := decimal.Zero
	for _, txn := range txns {
		if txn.Type == model.TransactionExpense && sameMonth(txn.OccurredAt, month) {
			spent = spent.Add(decimal.NewFromFloat(txn.Amount))
		}
	}
	return status(monthBudget, spent)
}

// ComputeScoped evaluates one budget against the transactions its scope
// selects within the budget's month.
func ComputeScoped(b model.Budget, txns []model.Transaction) Status {
	spent := decimal.Zero
	for _, txn := range txns {
		if txn.Type != model.TransactionExpense || !sameMonth(txn.OccurredAt, b.Month) {
			continue
		}
		if !inScope(b, txn) {
			continue
		}
		spent = spent.Add(decimal.NewFromFloat(txn.Amount))
	}
	return status(&b, spent)
}

func status(b *model.Budget, spent decimal.Decimal) Status {
	limit := decimal.Zero
	if b != nil {
		limit = decimal.NewFromFloat(b.Amount)
	}
	return Status{
		Budget:    b,
		Spent:     spent,
		Remaining: limit.Sub(spent),
		Overspent: limit.IsPositive() && spent.GreaterThan(limit),
	}
}

func inScope(b model.Budget, txn model.Transaction) bool {
	switch b.Scope {
	case model.BudgetScopeCategory:
		return b.CategoryID != nil && *b.CategoryID == txn.CategoryID
	case model.BudgetScopeMethod:
		return b.MethodID != nil && *b.MethodID == txn.MethodID
	case model.BudgetScopeCard:
		return b.CardID != nil && txn.CardID != nil && *b.CardID == *txn.CardID
	default:
		return true
	}
}

// sameMonth compares calendar months in the location of ref.
func sameMonth(t, ref time.Time) bool {
	t = t.In(ref.Location())
	return t.Year() == ref.Year() && t.Month() == ref.Month()
}
