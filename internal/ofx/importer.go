package ofx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/rules"
	"github.com/Veraticus/smartledger/internal/service"
)

// ImportOptions configures how statement lines become transactions.
type ImportOptions struct {
	// MethodID and CardID attribute every line to a payment method or card.
	// Zero/nil falls back to the matched rule and then DefaultMethodID.
	CardID   *int64
	MethodID int64
	// DefaultCategoryID books expense lines no rule categorizes. Income lines
	// use DefaultIncomeCategoryID, or the first stored income category when
	// that is zero.
	DefaultCategoryID       int64
	DefaultIncomeCategoryID int64
	DefaultMethodID         int64
	DryRun                  bool
}

// ImportResult summarizes an import.
type ImportResult struct {
	Transactions []model.Transaction // what was (or would be) recorded
	Imported     int
	Duplicates   int
	Skipped      int
	Matched      int
}

// Importer records statement lines, classified by the rule set.
type Importer struct {
	store   service.Store
	matcher *rules.Matcher
}

// NewImporter creates an importer over store.
func NewImporter(store service.Store, matcher *rules.Matcher) *Importer {
	if matcher == nil {
		matcher = rules.NewMatcher()
	}
	return &Importer{store: store, matcher: matcher}
}

// Import records lines. Lines already imported (same account and FITID) are
// counted as duplicates; zero-amount lines are skipped.
func (im *Importer) Import(ctx context.Context, lines []Line, opts ImportOptions) (ImportResult, error) {
	ruleSet, err := im.store.ListRules(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to load rules: %w", err)
	}
	if opts.DefaultIncomeCategoryID == 0 {
		income, err := im.store.GetCategories(ctx, model.TransactionIncome)
		if err != nil {
			return ImportResult{}, fmt.Errorf("failed to load categories: %w", err)
		}
		if len(income) > 0 {
			opts.DefaultIncomeCategoryID = income[0].ID
		}
	}

	var result ImportResult
	for _, line := range lines {
		txn, matched, ok := im.classify(ruleSet, line, opts)
		if !ok {
			result.Skipped++
			continue
		}
		if matched {
			result.Matched++
		}
		if opts.DryRun {
			result.Transactions = append(result.Transactions, txn)
			result.Imported++
			continue
		}

		if _, err := im.store.SaveTransaction(ctx, &txn); err != nil {
			if errors.Is(err, common.ErrDuplicateEntry) {
				result.Duplicates++
				continue
			}
			return result, fmt.Errorf("failed to save line %s: %w", line.FITID, err)
		}
		result.Transactions = append(result.Transactions, txn)
		result.Imported++
	}

	slog.Info("imported OFX statement lines",
		"imported", result.Imported, "matched", result.Matched,
		"duplicates", result.Duplicates, "skipped", result.Skipped, "dry_run", opts.DryRun)
	return result, nil
}

func (im *Importer) classify(ruleSet []model.Rule, line Line, opts ImportOptions) (model.Transaction, bool, bool) {
	if line.Amount == 0 || line.FITID == "" {
		return model.Transaction{}, false, false
	}

	typ := model.TransactionExpense
	amount := line.Amount
	if amount > 0 {
		typ = model.TransactionIncome
	} else {
		amount = -amount
	}

	var methodCtx *int64
	if opts.MethodID > 0 {
		methodCtx = &opts.MethodID
	}
	rule := im.matcher.Match(ruleSet, rules.Query{
		CardID:   opts.CardID,
		MethodID: methodCtx,
		Channel:  model.SourceOFX,
		Text:     line.Text(),
	})

	categoryID := opts.DefaultCategoryID
	if typ == model.TransactionIncome && opts.DefaultIncomeCategoryID > 0 {
		categoryID = opts.DefaultIncomeCategoryID
	}
	methodID := opts.DefaultMethodID
	var ruleID *int64
	if rule != nil {
		id := rule.ID
		ruleID = &id
		// The sign decides the type; a rule for the other type keeps only its method.
		if rule.CategoryID != nil && rule.Type == typ {
			categoryID = *rule.CategoryID
		}
		if rule.MethodID != nil {
			methodID = *rule.MethodID
		}
	}
	if opts.MethodID > 0 {
		methodID = opts.MethodID
	}

	note := line.Merchant
	if line.Memo != "" && !strings.EqualFold(line.Memo, line.Merchant) {
		note = strings.TrimSpace(note + " " + line.Memo)
	}

	return model.Transaction{
		Amount:        amount,
		Type:          typ,
		CategoryID:    categoryID,
		MethodID:      methodID,
		CardID:        opts.CardID,
		OccurredAt:    line.Posted,
		Note:          note,
		Source:        model.SourceOFX,
		ExternalID:    line.ExternalID(),
		MatchedRuleID: ruleID,
	}, rule != nil, true
}
