package engine

import (
	"context"

	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/rules"
)

// Confirmation is what the user fills in for a pending message when the
// rule should be learned from the message itself.
type Confirmation struct {
	CardID     *int64
	Keywords   string // blank derives keywords from the message
	Type       model.TransactionType
	Amount     float64
	CategoryID int64
	MethodID   int64
}

// Suggestion pre-fills a confirmation form for a pending item.
type Suggestion struct {
	Amount     *float64
	CategoryID *int64
	MethodID   *int64
	CardID     *int64
	Keywords   string
	Type       model.TransactionType
}

// Suggest proposes form values for a pending item from its partial match and
// the generic amount extraction.
func (p *Processor) Suggest(item model.PendingMessage) Suggestion {
	s := Suggestion{
		Keywords: rules.DeriveKeywords(item.Text),
		Type:     model.TransactionExpense,
		MethodID: copyID(item.MethodID),
		CardID:   copyID(item.CardID),
	}
	if rule := item.SuggestedRule; rule != nil {
		if rule.Type.Valid() {
			s.Type = rule.Type
		}
		s.CategoryID = copyID(rule.CategoryID)
		if rule.MethodID != nil {
			s.MethodID = copyID(rule.MethodID)
		}
		if amount, ok := p.matcher.ParseAmount(*rule, item.Text); ok && validAmount(amount) {
			s.Amount = &amount
			return s
		}
	}
	if amount, ok := rules.SuggestAmount(item.Text); ok && validAmount(amount) {
		s.Amount = &amount
	}
	return s
}

// Learn resolves a pending item by creating a keyword rule for its channel
// and recording the confirmed transaction.
func (p *Processor) Learn(ctx context.Context, pendingID string, c Confirmation) (ResolveResult, error) {
	item, ok := p.Get(pendingID)
	if !ok {
		return ResolveResult{}, nil
	}
	rule := rules.LearnedRule(item, c.Keywords, c.Type, c.CategoryID, c.MethodID, c.CardID)
	return p.SaveRuleAndApply(ctx, Resolution{
		PendingID:  pendingID,
		Rule:       rule,
		Type:       c.Type,
		Amount:     c.Amount,
		CategoryID: c.CategoryID,
		MethodID:   c.MethodID,
		CardID:     c.CardID,
	})
}
