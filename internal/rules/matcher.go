package rules

import (
	"sort"
	"strings"
	"sync"

	"github.com/Veraticus/smartledger/internal/model"
)

// Tier ranks how specifically a rule targets the message context.
type Tier int

// Specificity tiers, highest wins.
const (
	TierGlobal  Tier = 1
	TierChannel Tier = 2
	TierMethod  Tier = 3
	TierCard    Tier = 4
)

func (t Tier) String() string {
	switch t {
	case TierCard:
		return "card"
	case TierMethod:
		return "method"
	case TierChannel:
		return "channel"
	default:
		return "global"
	}
}

// Query describes where a message came from and what it says.
type Query struct {
	CardID   *int64
	MethodID *int64
	Channel  string
	Text     string
}

// Matcher evaluates messages against rule sets. It keeps no state besides a
// cache of compiled extraction patterns, so one Matcher can be shared freely.
type Matcher struct {
	compiled sync.Map // pattern string -> compiledPattern
}

// NewMatcher creates a new rule matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// TierOf reports the specificity tier of rule for the given context.
func TierOf(rule model.Rule, cardID, methodID *int64, channel string) Tier {
	switch {
	case rule.CardID != nil && cardID != nil && *rule.CardID == *cardID:
		return TierCard
	case rule.MethodID != nil && methodID != nil && *rule.MethodID == *methodID:
		return TierMethod
	case strings.EqualFold(rule.Channel, channel):
		return TierChannel
	default:
		return TierGlobal
	}
}

type rankedRule struct {
	rule     *model.Rule
	tier     Tier
	priority int
	index    int
}

// Rank returns the enabled rules in evaluation order: tier descending,
// priority descending, then original position.
func Rank(rules []model.Rule, q Query) []model.Rule {
	ranked := rank(rules, q)
	out := make([]model.Rule, len(ranked))
	for i, r := range ranked {
		out[i] = *r.rule
	}
	return out
}

func rank(rules []model.Rule, q Query) []rankedRule {
	ranked := make([]rankedRule, 0, len(rules))
	for i := range rules {
		if !rules[i].Enabled {
			continue
		}
		ranked = append(ranked, rankedRule{
			rule:     &rules[i],
			tier:     TierOf(rules[i], q.CardID, q.MethodID, q.Channel),
			priority: rules[i].Priority,
			index:    i,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.tier != b.tier {
			return a.tier > b.tier
		}
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		return a.index < b.index
	})

	return ranked
}

// KeywordsMatch reports whether every keyword of rule occurs in the
// lower-cased text. A rule without keywords always matches.
func KeywordsMatch(rule model.Rule, normalized string) bool {
	for _, kw := range rule.KeywordList() {
		if !strings.Contains(normalized, kw) {
			return false
		}
	}
	return true
}

// Match returns the first rule, in ranked order, whose keywords all appear in
// the message, or nil when no rule qualifies. The returned rule is a copy.
func (m *Matcher) Match(rules []model.Rule, q Query) *model.Rule {
	normalized := strings.ToLower(q.Text)
	for _, r := range rank(rules, q) {
		if KeywordsMatch(*r.rule, normalized) {
			matched := *r.rule
			return &matched
		}
	}
	return nil
}

// Evaluate matches the message and, when a rule wins, runs its extraction.
func (m *Matcher) Evaluate(rules []model.Rule, q Query) model.RuleMatchResult {
	rule := m.Match(rules, q)
	if rule == nil {
		return model.RuleMatchResult{}
	}

	result := model.RuleMatchResult{Rule: rule, Type: rule.Type}
	if ext, ok := m.ExtractorFor(*rule).Extract(q.Text); ok {
		amount := ext.Amount
		result.Amount = &amount
		result.Date = ext.Date
	}
	return result
}

// ParseAmount extracts the amount rule describes from the raw text.
func (m *Matcher) ParseAmount(rule model.Rule, text string) (float64, bool) {
	ext, ok := m.ExtractorFor(rule).Extract(text)
	if !ok {
		return 0, false
	}
	return ext.Amount, true
}
