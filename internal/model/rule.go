// Package model defines the core data structures for the ledger.
package model

import (
	"strings"
	"time"
)

// Rule recognizes an inbound message and describes the transaction it produces.
type Rule struct {
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	MethodID    *int64          `json:"method_id,omitempty"`
	CardID      *int64          `json:"card_id,omitempty"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	AmountGroup *int            `json:"amount_group,omitempty"`
	DateGroup   *int            `json:"date_group,omitempty"`
	Name        string          `json:"name"`
	Channel     string          `json:"channel"`
	Keywords    string          `json:"keywords"`
	Pattern     string          `json:"pattern,omitempty"`
	Type        TransactionType `json:"type"`
	ID          int64           `json:"id"`
	Priority    int             `json:"priority"`
	Enabled     bool            `json:"enabled"`
}

// KeywordList returns the trimmed, lower-cased, non-empty keyword tokens.
func (r Rule) KeywordList() []string {
	var out []string
	for _, kw := range strings.Split(r.Keywords, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// HasPattern reports whether the rule carries its own extraction expression.
func (r Rule) HasPattern() bool {
	return r.Pattern != ""
}

// RuleMatchResult is the outcome of evaluating one message against a rule set.
// Rule is nil when nothing matched.
type RuleMatchResult struct {
	Rule   *Rule
	Amount *float64
	Date   string
	Type   TransactionType
}

// Matched reports whether a rule was selected.
func (r RuleMatchResult) Matched() bool {
	return r.Rule != nil
}

// Committable reports whether the result carries everything needed to record a transaction.
func (r RuleMatchResult) Committable() bool {
	return r.Rule != nil && r.Amount != nil
}
