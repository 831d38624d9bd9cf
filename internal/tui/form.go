package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/model"
)

type field int

const (
	fieldAmount field = iota
	fieldType
	fieldCategory
	fieldMethod
	fieldKeywords
	fieldCount
)

// form collects a Confirmation for one pending item.
type form struct {
	cardID     *int64
	item       model.PendingMessage
	err        string
	typ        model.TransactionType
	categories []model.Category
	methods    []model.Method
	amount     textinput.Model
	keywords   textinput.Model
	category   int
	method     int
	focus      field
	submitting bool
}

func newForm(item model.PendingMessage, s engine.Suggestion, categories []model.Category, methods []model.Method) form {
	f := form{
		item:       item,
		typ:        s.Type,
		cardID:     s.CardID,
		categories: categories,
		methods:    methods,
		category:   -1,
		method:     -1,
	}
	if !f.typ.Valid() {
		f.typ = model.TransactionExpense
	}

	f.amount = textinput.New()
	f.amount.Placeholder = "0.00"
	f.amount.CharLimit = 16
	if s.Amount != nil {
		f.amount.SetValue(strconv.FormatFloat(*s.Amount, 'f', -1, 64))
	}

	f.keywords = textinput.New()
	f.keywords.Placeholder = "关键词1,关键词2"
	f.keywords.CharLimit = 128
	f.keywords.SetValue(s.Keywords)

	options := f.categoryOptions()
	for i, c := range options {
		if s.CategoryID != nil && c.ID == *s.CategoryID {
			f.category = i
		}
	}
	if f.category < 0 && len(options) > 0 {
		f.category = 0
	}
	for i, m := range methods {
		if s.MethodID != nil && m.ID == *s.MethodID {
			f.method = i
		}
	}
	if f.method < 0 && len(methods) > 0 {
		f.method = 0
	}

	f.setFocus(fieldAmount)
	return f
}

func (f *form) categoryOptions() []model.Category {
	var out []model.Category
	for _, c := range f.categories {
		if c.Type == f.typ {
			out = append(out, c)
		}
	}
	return out
}

func (f *form) setFocus(next field) {
	f.focus = (next + fieldCount) % fieldCount
	f.amount.Blur()
	f.keywords.Blur()
	switch f.focus {
	case fieldAmount:
		f.amount.Focus()
	case fieldKeywords:
		f.keywords.Focus()
	}
}

// cycle moves the focused picker by delta.
func (f *form) cycle(delta int) {
	switch f.focus {
	case fieldType:
		if f.typ == model.TransactionExpense {
			f.typ = model.TransactionIncome
		} else {
			f.typ = model.TransactionExpense
		}
		f.category = 0
		if len(f.categoryOptions()) == 0 {
			f.category = -1
		}
	case fieldCategory:
		f.category = wrap(f.category+delta, len(f.categoryOptions()))
	case fieldMethod:
		f.method = wrap(f.method+delta, len(f.methods))
	}
}

func wrap(i, n int) int {
	if n == 0 {
		return -1
	}
	return ((i % n) + n) % n
}

func (f *form) selectedCategory() (model.Category, bool) {
	options := f.categoryOptions()
	if f.category < 0 || f.category >= len(options) {
		return model.Category{}, false
	}
	return options[f.category], true
}

func (f *form) selectedMethod() (model.Method, bool) {
	if f.method < 0 || f.method >= len(f.methods) {
		return model.Method{}, false
	}
	return f.methods[f.method], true
}

// confirmation validates the form. Range checks beyond parsing are left to
// the processor so the messages stay in one place.
func (f *form) confirmation() (engine.Confirmation, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(f.amount.Value()), 64)
	if err != nil {
		return engine.Confirmation{}, fmt.Errorf("请输入数字金额")
	}
	c := engine.Confirmation{
		CardID:   f.cardID,
		Keywords: strings.TrimSpace(f.keywords.Value()),
		Type:     f.typ,
		Amount:   amount,
	}
	if cat, ok := f.selectedCategory(); ok {
		c.CategoryID = cat.ID
	}
	if m, ok := f.selectedMethod(); ok {
		c.MethodID = m.ID
	}
	return c, nil
}
