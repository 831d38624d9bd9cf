// Package storage provides the SQLite persistence layer for the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/smartledger/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidRule        = errors.New("invalid rule")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidMethod      = errors.New("invalid method")
	ErrInvalidCard        = errors.New("invalid card")
	ErrInvalidBudget      = errors.New("invalid budget")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrNilParameter, paramName)
	}
	return nil
}

func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if !rule.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRule, rule.Type)
	}
	if rule.AmountGroup != nil && *rule.AmountGroup < 0 {
		return fmt.Errorf("%w: amount group must not be negative", ErrInvalidRule)
	}
	if rule.DateGroup != nil && *rule.DateGroup < 0 {
		return fmt.Errorf("%w: date group must not be negative", ErrInvalidRule)
	}
	return nil
}

func validateAmount(amount float64) bool {
	return amount > 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0)
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if !validateAmount(txn.Amount) {
		return fmt.Errorf("%w: amount must be greater than 0", ErrInvalidTransaction)
	}
	if !txn.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	if txn.CategoryID <= 0 {
		return fmt.Errorf("%w: missing category", ErrInvalidTransaction)
	}
	if txn.MethodID <= 0 {
		return fmt.Errorf("%w: missing method", ErrInvalidTransaction)
	}
	if txn.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidTransaction)
	}
	return nil
}

func validateCategory(category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	if !category.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCategory, category.Type)
	}
	return nil
}

func validateDay(day *int, name string) error {
	if day != nil && (*day < 1 || *day > 31) {
		return fmt.Errorf("%s must be between 1 and 31", name)
	}
	return nil
}

func validateMethod(method *model.Method) error {
	if method == nil {
		return fmt.Errorf("%w: method", ErrNilParameter)
	}
	if strings.TrimSpace(method.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidMethod)
	}
	if method.Type != "" && !method.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMethod, method.Type)
	}
	if err := validateDay(method.BillDay, "bill day"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMethod, err)
	}
	if err := validateDay(method.DueDay, "due day"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMethod, err)
	}
	return nil
}

func validateCard(card *model.Card) error {
	if card == nil {
		return fmt.Errorf("%w: card", ErrNilParameter)
	}
	if strings.TrimSpace(card.Label) == "" {
		return fmt.Errorf("%w: missing label", ErrInvalidCard)
	}
	if card.MethodID <= 0 {
		return fmt.Errorf("%w: missing method", ErrInvalidCard)
	}
	if err := validateDay(card.BillDay, "bill day"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCard, err)
	}
	if err := validateDay(card.DueDay, "due day"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCard, err)
	}
	return nil
}

func validateBudget(budget *model.Budget) error {
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}
	if budget.Month.IsZero() {
		return fmt.Errorf("%w: missing month", ErrInvalidBudget)
	}
	if budget.Amount < 0 || math.IsNaN(budget.Amount) || math.IsInf(budget.Amount, 0) {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidBudget)
	}
	switch budget.Scope {
	case model.BudgetScopeAll, "":
	case model.BudgetScopeCategory:
		if budget.CategoryID == nil {
			return fmt.Errorf("%w: category scope needs a category", ErrInvalidBudget)
		}
	case model.BudgetScopeMethod:
		if budget.MethodID == nil {
			return fmt.Errorf("%w: method scope needs a method", ErrInvalidBudget)
		}
	case model.BudgetScopeCard:
		if budget.CardID == nil {
			return fmt.Errorf("%w: card scope needs a card", ErrInvalidBudget)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidBudget, budget.Scope)
	}
	return nil
}
