package budget

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/service"
)

// RecentLimit is how many recent transactions a month report lists.
const RecentLimit = 5

// Slice is one named share of a breakdown.
type Slice struct {
	Name   string
	Amount decimal.Decimal
}

// DayPoint is the expense total of one day of the month.
type DayPoint struct {
	Amount decimal.Decimal
	Day    int
}

// MonthStats summarizes one calendar month.
type MonthStats struct {
	Month      time.Time
	Expense    decimal.Decimal
	Income     decimal.Decimal
	Balance    decimal.Decimal
	ByCategory []Slice // expense only, largest first
	ByMethod   []Slice // expense only, largest first
	Trend      []DayPoint
	Recent     []model.Transaction
	Budget     Status
	Scoped     []Status
}

// Summarize builds the statistics for month from txns. Categories and methods
// resolve names; an unknown id is shown as its number. Recent is taken from
// txns regardless of month, newest first.
func Summarize(month time.Time, txns []model.Transaction, categories []model.Category, methods []model.Method, budgets []model.Budget) MonthStats {
	month = model.MonthStart(month)
	categoryNames := make(map[int64]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}
	methodNames := make(map[int64]string, len(methods))
	for _, m := range methods {
		methodNames[m.ID] = m.Name
	}

	stats := MonthStats{
		Month:   month,
		Expense: decimal.Zero,
		Income:  decimal.Zero,
	}
	byCategory := map[string]decimal.Decimal{}
	byMethod := map[string]decimal.Decimal{}
	byDay := map[int]decimal.Decimal{}

	for _, txn := range txns {
		if !sameMonth(txn.OccurredAt, month) {
			continue
		}
		amount := decimal.NewFromFloat(txn.Amount)
		switch txn.Type {
		case model.TransactionIncome:
			stats.Income = stats.Income.Add(amount)
		case model.TransactionExpense:
			stats.Expense = stats.Expense.Add(amount)
			category := nameOr(categoryNames, txn.CategoryID)
			byCategory[category] = byCategory[category].Add(amount)
			method := nameOr(methodNames, txn.MethodID)
			byMethod[method] = byMethod[method].Add(amount)
			day := txn.OccurredAt.In(month.Location()).Day()
			byDay[day] = byDay[day].Add(amount)
		}
	}
	stats.Balance = stats.Income.Sub(stats.Expense)
	stats.ByCategory = breakdown(byCategory)
	stats.ByMethod = breakdown(byMethod)

	for day, amount := range byDay {
		stats.Trend = append(stats.Trend, DayPoint{Day: day, Amount: amount})
	}
	sort.Slice(stats.Trend, func(i, j int) bool { return stats.Trend[i].Day < stats.Trend[j].Day })

	stats.Recent = recent(txns, RecentLimit)
	stats.Budget = Compute(budgets, txns, month)
	for _, b := range budgets {
		if b.Scope != model.BudgetScopeAll && b.Scope != "" && sameMonth(b.Month, month) {
			stats.Scoped = append(stats.Scoped, ComputeScoped(b, txns))
		}
	}
	return stats
}

func nameOr(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok {
		return name
	}
	return strconv.FormatInt(id, 10)
}

func breakdown(totals map[string]decimal.Decimal) []Slice {
	out := make([]Slice, 0, len(totals))
	for name, amount := range totals {
		out = append(out, Slice{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func recent(txns []model.Transaction, n int) []model.Transaction {
	sorted := append([]model.Transaction(nil), txns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].OccurredAt.Equal(sorted[j].OccurredAt) {
			return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Source is the read access a Reporter needs.
type Source interface {
	ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error)
	GetBudgetsForMonth(ctx context.Context, month time.Time) ([]model.Budget, error)
	GetCategories(ctx context.Context, typ model.TransactionType) ([]model.Category, error)
	GetMethods(ctx context.Context) ([]model.Method, error)
}

// Reporter loads what Summarize needs from a store.
type Reporter struct {
	source Source
}

// NewReporter creates a reporter over source.
func NewReporter(source Source) *Reporter {
	return &Reporter{source: source}
}

// Month returns the statistics for the calendar month containing month.
func (r *Reporter) Month(ctx context.Context, month time.Time) (MonthStats, error) {
	start := model.MonthStart(month)
	end := start.AddDate(0, 1, 0)

	txns, err := r.source.ListTransactions(ctx, service.TransactionFilter{Start: &start, End: &end})
	if err != nil {
		return MonthStats{}, fmt.Errorf("failed to load transactions: %w", err)
	}
	latest, err := r.source.ListTransactions(ctx, service.TransactionFilter{Limit: RecentLimit})
	if err != nil {
		return MonthStats{}, fmt.Errorf("failed to load recent transactions: %w", err)
	}
	budgets, err := r.source.GetBudgetsForMonth(ctx, start)
	if err != nil {
		return MonthStats{}, fmt.Errorf("failed to load budgets: %w", err)
	}
	categories, err := r.source.GetCategories(ctx, "")
	if err != nil {
		return MonthStats{}, fmt.Errorf("failed to load categories: %w", err)
	}
	methods, err := r.source.GetMethods(ctx)
	if err != nil {
		return MonthStats{}, fmt.Errorf("failed to load methods: %w", err)
	}

	stats := Summarize(start, txns, categories, methods, budgets)
	stats.Recent = recent(latest, RecentLimit)
	return stats, nil
}
