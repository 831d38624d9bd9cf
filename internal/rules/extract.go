package rules

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/smartledger/internal/model"
)

// DefaultAmountGroup is the capture group used when a rule sets a pattern
// but no amount group.
const DefaultAmountGroup = 1

var numericRegex = regexp.MustCompile(`(\d+\.?\d*)`)

// Extraction is what an Extractor pulled out of a message.
type Extraction struct {
	Date   string
	Amount float64
}

// Extractor pulls an amount (and optionally a date) out of raw message text.
type Extractor interface {
	Extract(text string) (Extraction, bool)
}

// PatternExtractor applies a rule's own regular expression.
type PatternExtractor struct {
	re          *regexp.Regexp
	AmountGroup int
	DateGroup   int // zero means no date
}

// Extract implements Extractor.
func (p PatternExtractor) Extract(text string) (Extraction, bool) {
	if p.re == nil {
		return Extraction{}, false
	}
	groups := p.re.FindStringSubmatch(text)
	if groups == nil {
		return Extraction{}, false
	}
	if p.AmountGroup < 0 || p.AmountGroup >= len(groups) {
		return Extraction{}, false
	}
	amount, ok := parseDecimal(groups[p.AmountGroup])
	if !ok {
		return Extraction{}, false
	}

	ext := Extraction{Amount: amount}
	if p.DateGroup > 0 && p.DateGroup < len(groups) {
		ext.Date = strings.TrimSpace(groups[p.DateGroup])
	}
	return ext, true
}

// NumericExtractor takes the first run of digits, with at most one decimal
// point, found anywhere in the text.
type NumericExtractor struct{}

// Extract implements Extractor.
func (NumericExtractor) Extract(text string) (Extraction, bool) {
	groups := numericRegex.FindStringSubmatch(text)
	if groups == nil {
		return Extraction{}, false
	}
	amount, ok := parseDecimal(groups[1])
	if !ok {
		return Extraction{}, false
	}
	return Extraction{Amount: amount}, true
}

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// ExtractorFor returns the extraction strategy declared by rule.
func (m *Matcher) ExtractorFor(rule model.Rule) Extractor {
	if !rule.HasPattern() {
		return NumericExtractor{}
	}

	ext := PatternExtractor{
		re:          m.compile(rule.Pattern),
		AmountGroup: DefaultAmountGroup,
	}
	if rule.AmountGroup != nil {
		ext.AmountGroup = *rule.AmountGroup
	}
	if rule.DateGroup != nil {
		ext.DateGroup = *rule.DateGroup
	}
	return ext
}

func (m *Matcher) compile(pattern string) *regexp.Regexp {
	if cached, ok := m.compiled.Load(pattern); ok {
		return cached.(compiledPattern).re
	}
	re, err := regexp.Compile(pattern)
	m.compiled.Store(pattern, compiledPattern{re: re, err: err})
	return re
}

// SuggestAmount is the generic numeric extraction, used to pre-fill the amount
// of a message nobody has written a rule for yet.
func SuggestAmount(text string) (float64, bool) {
	ext, ok := NumericExtractor{}.Extract(text)
	return ext.Amount, ok
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// PatternError reports why pattern cannot be used, or nil when it compiles.
func (m *Matcher) PatternError(pattern string) error {
	if pattern == "" {
		return nil
	}
	m.compile(pattern)
	cached, _ := m.compiled.Load(pattern)
	return cached.(compiledPattern).err
}
