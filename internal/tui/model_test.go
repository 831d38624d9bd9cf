package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/model"
)

type fakeInbox struct {
	updates      chan []model.PendingMessage
	suggestions  map[string]engine.Suggestion
	learned      map[string]engine.Confirmation
	learnErr     error
	items        []model.PendingMessage
	dismissed    []string
	unsubscribed bool
}

func newFakeInbox(items ...model.PendingMessage) *fakeInbox {
	return &fakeInbox{
		items:       items,
		updates:     make(chan []model.PendingMessage, 1),
		suggestions: make(map[string]engine.Suggestion),
		learned:     make(map[string]engine.Confirmation),
	}
}

func (f *fakeInbox) Pending() []model.PendingMessage { return f.items }

func (f *fakeInbox) Subscribe() (<-chan []model.PendingMessage, func()) {
	f.updates <- f.items
	return f.updates, func() { f.unsubscribed = true }
}

func (f *fakeInbox) Suggest(item model.PendingMessage) engine.Suggestion {
	if s, ok := f.suggestions[item.ID]; ok {
		return s
	}
	return engine.Suggestion{Type: model.TransactionExpense}
}

func (f *fakeInbox) Learn(_ context.Context, id string, c engine.Confirmation) (engine.ResolveResult, error) {
	if f.learnErr != nil {
		return engine.ResolveResult{}, f.learnErr
	}
	f.learned[id] = c
	return engine.ResolveResult{Applied: true, RuleID: 3, TransactionID: 9}, nil
}

func (f *fakeInbox) Dismiss(id string) bool {
	f.dismissed = append(f.dismissed, id)
	return true
}

var (
	received       = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	testCategories = []model.Category{
		{ID: 1, Name: "餐饮", Icon: "🍜", Type: model.TransactionExpense},
		{ID: 2, Name: "交通", Type: model.TransactionExpense},
		{ID: 7, Name: "工资", Type: model.TransactionIncome},
	}
	testMethods = []model.Method{
		{ID: 1, Name: "微信钱包"},
		{ID: 2, Name: "支付宝"},
	}
)

func pending(id, text string) model.PendingMessage {
	return model.PendingMessage{ID: id, Text: text, Channel: "sms", ReceivedAt: received}
}

func ptr[T any](v T) *T { return &v }

func newTestModel(inbox *fakeInbox) Model {
	return New(context.Background(), inbox,
		WithCategories(testCategories),
		WithMethods(testMethods),
		WithSize(100, 30),
	)
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

// press sends keys in order and returns the model with the last command.
func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(k))
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m, cmd
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestModel_Init(t *testing.T) {
	inbox := newFakeInbox(pending("p1", "a"))
	m := newTestModel(inbox)

	msg := m.Init()()
	update, ok := msg.(pendingMsg)
	require.True(t, ok)
	assert.Len(t, update.items, 1)

	m.Close()
	assert.True(t, inbox.unsubscribed)
}

func TestModel_Navigation(t *testing.T) {
	m := newTestModel(newFakeInbox(pending("p1", "a"), pending("p2", "b"), pending("p3", "c")))

	tests := []struct {
		name string
		keys []string
		want int
	}{
		{name: "down", keys: []string{"j"}, want: 1},
		{name: "down stops at end", keys: []string{"j", "down", "j", "j"}, want: 2},
		{name: "up stops at start", keys: []string{"k", "up"}, want: 0},
		{name: "end", keys: []string{"G"}, want: 2},
		{name: "home", keys: []string{"G", "g"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := press(t, m, tt.keys...)
			assert.Equal(t, tt.want, got.cursor)
		})
	}
}

func TestModel_PendingUpdatesKeepSelection(t *testing.T) {
	m := newTestModel(newFakeInbox(pending("p1", "a"), pending("p2", "b")))
	m, _ = press(t, m, "j")

	m = send(t, m, pendingMsg{items: []model.PendingMessage{pending("p0", "z"), pending("p1", "a"), pending("p2", "b")}})
	assert.Equal(t, 2, m.cursor)

	m = send(t, m, pendingMsg{items: []model.PendingMessage{pending("p0", "z")}})
	assert.Equal(t, 0, m.cursor)

	m = send(t, m, pendingMsg{})
	assert.Empty(t, m.items)
	assert.Contains(t, m.View(), "没有待确认的消息")
}

func TestModel_Dismiss(t *testing.T) {
	inbox := newFakeInbox(pending("p1", "a"), pending("p2", "b"))
	m := newTestModel(inbox)

	m, _ = press(t, m, "j", "d")
	assert.Equal(t, []string{"p2"}, inbox.dismissed)
	assert.Equal(t, 1, m.Stats().Dismissed)
}

func TestModel_Accept(t *testing.T) {
	t.Run("complete suggestion", func(t *testing.T) {
		inbox := newFakeInbox(pending("p1", "收到转账 88.8 元"))
		inbox.suggestions["p1"] = engine.Suggestion{
			Amount:     ptr(88.8),
			CategoryID: ptr(int64(1)),
			MethodID:   ptr(int64(2)),
			Keywords:   "收到转账,88.8",
			Type:       model.TransactionExpense,
		}
		m := newTestModel(inbox)

		m, cmd := press(t, m, "a")
		require.NotNil(t, cmd)
		m = send(t, m, cmd())

		c := inbox.learned["p1"]
		assert.InDelta(t, 88.8, c.Amount, 1e-9)
		assert.Equal(t, int64(1), c.CategoryID)
		assert.Equal(t, int64(2), c.MethodID)
		assert.Equal(t, 1, m.Stats().Resolved)
		assert.Equal(t, StateList, m.state)
		assert.Contains(t, m.View(), "已记账 #9")
	})

	t.Run("incomplete suggestion", func(t *testing.T) {
		inbox := newFakeInbox(pending("p1", "hello"))
		m := newTestModel(inbox)

		m, cmd := press(t, m, "a")
		assert.Nil(t, cmd)
		assert.Empty(t, inbox.learned)
		assert.Equal(t, statusWarning, m.statusStyle)
	})
}

func TestModel_Form(t *testing.T) {
	t.Run("fill and submit", func(t *testing.T) {
		inbox := newFakeInbox(pending("p1", "工资到账"))
		m := newTestModel(inbox)

		m, _ = press(t, m, "enter")
		require.Equal(t, StateForm, m.state)

		// amount, then switch to income, keep the only income category,
		// pick the second method and replace the keywords.
		m, _ = press(t, m, "1", "2", ".", "5", "tab", "right", "tab", "tab", "right", "tab")
		m.form.keywords.SetValue("工资")
		m, cmd := press(t, m, "enter")
		require.NotNil(t, cmd)
		m = send(t, m, cmd())

		c := inbox.learned["p1"]
		assert.InDelta(t, 12.5, c.Amount, 1e-9)
		assert.Equal(t, model.TransactionIncome, c.Type)
		assert.Equal(t, int64(7), c.CategoryID)
		assert.Equal(t, int64(2), c.MethodID)
		assert.Equal(t, "工资", c.Keywords)
		assert.Equal(t, StateList, m.state)
	})

	t.Run("invalid amount", func(t *testing.T) {
		inbox := newFakeInbox(pending("p1", "x"))
		m := newTestModel(inbox)

		m, cmd := press(t, m, "enter", "a", "b", "enter")
		assert.Nil(t, cmd)
		assert.Equal(t, StateForm, m.state)
		assert.Equal(t, "请输入数字金额", m.form.err)
		assert.Contains(t, m.View(), "请输入数字金额")
	})

	t.Run("rejected by processor", func(t *testing.T) {
		inbox := newFakeInbox(pending("p1", "x"))
		inbox.learnErr = common.NewUserError("金额需大于0", common.ErrInvalidAmount)
		m := newTestModel(inbox)

		m, cmd := press(t, m, "enter", "0", "enter")
		require.NotNil(t, cmd)
		m = send(t, m, cmd())
		assert.Equal(t, StateForm, m.state)
		assert.Equal(t, "金额需大于0", m.form.err)
		assert.False(t, m.form.submitting)
	})

	t.Run("item resolved elsewhere", func(t *testing.T) {
		m := newTestModel(newFakeInbox(pending("p1", "x")))
		m, _ = press(t, m, "enter")

		m = send(t, m, pendingMsg{})
		assert.Equal(t, StateList, m.state)
		assert.Equal(t, "该消息已被处理", m.status)
	})

	t.Run("cancel", func(t *testing.T) {
		m := newTestModel(newFakeInbox(pending("p1", "x")))
		m, _ = press(t, m, "enter", "esc")
		assert.Equal(t, StateList, m.state)
	})

	t.Run("suggestion prefills", func(t *testing.T) {
		inbox := newFakeInbox(pending("p1", "x"))
		inbox.suggestions["p1"] = engine.Suggestion{
			Amount:     ptr(3.5),
			CategoryID: ptr(int64(2)),
			MethodID:   ptr(int64(2)),
			Type:       model.TransactionExpense,
		}
		m := newTestModel(inbox)
		m, _ = press(t, m, "enter")

		assert.Equal(t, "3.5", m.form.amount.Value())
		cat, ok := m.form.selectedCategory()
		require.True(t, ok)
		assert.Equal(t, int64(2), cat.ID)
		method, ok := m.form.selectedMethod()
		require.True(t, ok)
		assert.Equal(t, int64(2), method.ID)
	})
}

func TestModel_HelpAndQuit(t *testing.T) {
	m := newTestModel(newFakeInbox())

	m, _ = press(t, m, "?")
	assert.Equal(t, StateHelp, m.state)
	m, _ = press(t, m, "?")
	assert.Equal(t, StateList, m.state)

	m, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_ResolvedNotApplied(t *testing.T) {
	m := newTestModel(newFakeInbox(pending("p1", "x")))
	m = send(t, m, resolvedMsg{id: "p1", result: engine.ResolveResult{Applied: false}})
	assert.Equal(t, "该消息已被处理", m.status)
	assert.Zero(t, m.Stats().Resolved)
}

func TestModel_ResolvedErrorInList(t *testing.T) {
	m := newTestModel(newFakeInbox(pending("p1", "x")))
	m = send(t, m, resolvedMsg{id: "p1", err: errors.New("disk full")})
	assert.Equal(t, statusError, m.statusStyle)
	assert.Equal(t, "disk full", m.status)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "收…", truncate("收到转账", 4))
}
