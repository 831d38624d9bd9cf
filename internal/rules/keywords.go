package rules

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Veraticus/smartledger/internal/model"
)

// maxDerivedKeywords bounds how many tokens a learned rule starts with.
const maxDerivedKeywords = 3

// LearnedRulePriority is the priority given to rules created by resolving a
// pending message.
const LearnedRulePriority = 10

// DeriveKeywords proposes a keyword list for a message: the first few
// space-separated tokens that contain a letter or digit, lower-cased and
// comma-joined.
func DeriveKeywords(text string) string {
	var picked []string
	for _, token := range strings.Split(text, " ") {
		if len(picked) == maxDerivedKeywords {
			break
		}
		if strings.IndexFunc(token, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		}) < 0 {
			continue
		}
		picked = append(picked, token)
	}
	return strings.ToLower(strings.Join(picked, ","))
}

// LearnedRule builds the rule saved when the user resolves a pending message
// by hand. Blank keywords fall back to DeriveKeywords.
func LearnedRule(pending model.PendingMessage, keywords string, typ model.TransactionType, categoryID, methodID int64, cardID *int64) model.Rule {
	if strings.TrimSpace(keywords) == "" {
		keywords = DeriveKeywords(pending.Text)
	}
	category := categoryID
	method := methodID
	return model.Rule{
		Name:       fmt.Sprintf("规则-%s", pending.Channel),
		Channel:    pending.Channel,
		MethodID:   &method,
		CardID:     cardID,
		Keywords:   keywords,
		Type:       typ,
		CategoryID: &category,
		Enabled:    true,
		Priority:   LearnedRulePriority,
	}
}
