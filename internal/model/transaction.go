package model

import (
	"fmt"
	"strings"
	"time"
)

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

// Transaction types.
const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// ParseTransactionType accepts the canonical names case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "in":
		return TransactionIncome, nil
	case "expense", "out", "":
		return TransactionExpense, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Transaction sources.
const (
	SourceManual = "Manual"
	SourceOFX    = "OFX"
	SourceSMS    = "SMS"
)

// Transaction is a single ledger entry.
type Transaction struct {
	OccurredAt    time.Time
	CardID        *int64
	MatchedRuleID *int64
	Note          string
	Source        string
	ExternalID    string // statement-provided id; unique when set
	Type          TransactionType
	Amount        float64
	ID            int64
	CategoryID    int64
	MethodID      int64
	FromMessage   bool
}
