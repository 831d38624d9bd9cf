package model

import "time"

// BudgetScope narrows which transactions count against a budget.
type BudgetScope string

// Budget scopes.
const (
	BudgetScopeAll      BudgetScope = "all"
	BudgetScopeCategory BudgetScope = "category"
	BudgetScopeMethod   BudgetScope = "method"
	BudgetScopeCard     BudgetScope = "card"
)

// Budget is a spending limit for one calendar month.
type Budget struct {
	Month      time.Time // first day of the month
	CategoryID *int64
	MethodID   *int64
	CardID     *int64
	Scope      BudgetScope
	Amount     float64
	ID         int64
}

// MonthStart truncates t to midnight on the first day of its month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
