// Package tui is the interactive inbox: a live list of pending messages with
// a form that resolves them into transactions and learned rules.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/tui/themes"
)

// Inbox is the part of the message processor the TUI drives.
type Inbox interface {
	Pending() []model.PendingMessage
	Subscribe() (<-chan []model.PendingMessage, func())
	Suggest(item model.PendingMessage) engine.Suggestion
	Learn(ctx context.Context, pendingID string, c engine.Confirmation) (engine.ResolveResult, error)
	Dismiss(id string) bool
}

// State represents the current state of the TUI.
type State int

const (
	StateList State = iota
	StateForm
	StateHelp
)

// Stats counts what the session did.
type Stats struct {
	Resolved  int
	Dismissed int
}

// Model holds the main TUI state.
type Model struct {
	ctx         context.Context
	inbox       Inbox
	updates     <-chan []model.PendingMessage
	unsubscribe func()
	recorder    *Recorder
	theme       themes.Theme
	status      string
	statusStyle statusKind
	items       []model.PendingMessage
	config      Config
	help        help.Model
	keymap      KeyMap
	form        form
	stats       Stats
	cursor      int
	width       int
	height      int
	state       State
	quitting    bool
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusWarning
	statusError
)

// New creates the inbox model and subscribes it to the processor. Close
// must be called once the program has exited.
func New(ctx context.Context, inbox Inbox, opts ...Option) Model {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	updates, unsubscribe := inbox.Subscribe()
	return Model{
		ctx:         ctx,
		inbox:       inbox,
		updates:     updates,
		unsubscribe: unsubscribe,
		items:       inbox.Pending(),
		config:      cfg,
		theme:       cfg.Theme,
		keymap:      DefaultKeyMap(),
		help:        help.New(),
		width:       cfg.Width,
		height:      cfg.Height,
		state:       StateList,
	}
}

// Close unsubscribes from the processor and stops recording.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.recorder != nil {
		m.recorder.Close()
	}
}

// Stats returns what the session has done so far.
func (m Model) Stats() Stats {
	return m.stats
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return waitForPending(m.updates)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	if next.recorder != nil {
		next.recorder.RecordState(next, msg)
	}
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case pendingMsg:
		m.setItems(msg.items)
		return m, waitForPending(m.updates)

	case subscriptionClosedMsg:
		m.updates = nil
		return m, nil

	case resolvedMsg:
		return m.handleResolved(msg), nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.ForceQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.state {
		case StateForm:
			return m.updateForm(msg)
		case StateHelp:
			if key.Matches(msg, m.keymap.Help, m.keymap.Cancel, m.keymap.Quit) {
				m.state = StateList
			}
			return m, nil
		default:
			return m.updateList(msg)
		}
	}

	if m.state == StateForm {
		return m.forwardToInput(msg)
	}
	return m, nil
}

// setItems installs a new queue, keeping the cursor on the same item when
// it is still pending.
func (m *Model) setItems(items []model.PendingMessage) {
	var selected string
	if m.cursor < len(m.items) {
		selected = m.items[m.cursor].ID
	}
	m.items = items
	m.cursor = 0
	for i, item := range items {
		if item.ID == selected {
			m.cursor = i
			break
		}
	}
	if m.cursor >= len(items) && len(items) > 0 {
		m.cursor = len(items) - 1
	}

	if m.state == StateForm && !m.form.submitting && m.indexOf(m.form.item.ID) < 0 {
		m.state = StateList
		m.setStatus(statusWarning, "该消息已被处理")
	}
}

func (m Model) indexOf(id string) int {
	for i, item := range m.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusStyle = kind
	m.status = text
}

func (m Model) updateList(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.state = StateHelp
	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keymap.Home):
		m.cursor = 0
	case key.Matches(msg, m.keymap.End):
		m.cursor = max(len(m.items)-1, 0)
	case key.Matches(msg, m.keymap.Resolve):
		if item, ok := m.current(); ok {
			m.form = newForm(item, m.inbox.Suggest(item), m.config.Categories, m.config.Methods)
			m.state = StateForm
			m.status = ""
		}
	case key.Matches(msg, m.keymap.Accept):
		item, ok := m.current()
		if !ok {
			break
		}
		s := m.inbox.Suggest(item)
		if s.Amount == nil || s.CategoryID == nil || s.MethodID == nil {
			m.setStatus(statusWarning, "建议不完整，请按 Enter 填写")
			break
		}
		m.form = newForm(item, s, m.config.Categories, m.config.Methods)
		m.form.submitting = true
		return m, learn(m.ctx, m.inbox, item.ID, engine.Confirmation{
			CardID:     s.CardID,
			Keywords:   s.Keywords,
			Type:       s.Type,
			Amount:     *s.Amount,
			CategoryID: *s.CategoryID,
			MethodID:   *s.MethodID,
		})
	case key.Matches(msg, m.keymap.Dismiss):
		if item, ok := m.current(); ok && m.inbox.Dismiss(item.ID) {
			m.stats.Dismissed++
			m.setStatus(statusInfo, "已忽略")
		}
	}
	return m, nil
}

func (m Model) current() (model.PendingMessage, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return model.PendingMessage{}, false
	}
	return m.items[m.cursor], true
}

func (m Model) updateForm(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.form.submitting {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keymap.Cancel):
		m.state = StateList
		return m, nil
	case key.Matches(msg, m.keymap.Submit):
		c, err := m.form.confirmation()
		if err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		m.form.err = ""
		m.form.submitting = true
		return m, learn(m.ctx, m.inbox, m.form.item.ID, c)
	case key.Matches(msg, m.keymap.NextField):
		m.form.setFocus(m.form.focus + 1)
		return m, nil
	case key.Matches(msg, m.keymap.PrevField):
		m.form.setFocus(m.form.focus - 1)
		return m, nil
	case m.form.focus != fieldAmount && m.form.focus != fieldKeywords:
		switch {
		case key.Matches(msg, m.keymap.Left):
			m.form.cycle(-1)
		case key.Matches(msg, m.keymap.Right):
			m.form.cycle(1)
		}
		return m, nil
	}
	return m.forwardToInput(msg)
}

func (m Model) forwardToInput(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.form.focus {
	case fieldAmount:
		m.form.amount, cmd = m.form.amount.Update(msg)
	case fieldKeywords:
		m.form.keywords, cmd = m.form.keywords.Update(msg)
	}
	return m, cmd
}

func (m Model) handleResolved(msg resolvedMsg) Model {
	m.form.submitting = false
	if msg.err != nil {
		text := common.UserMessage(msg.err)
		if m.state == StateForm {
			m.form.err = text
		} else {
			m.setStatus(statusError, text)
		}
		return m
	}

	m.state = StateList
	if !msg.result.Applied {
		m.setStatus(statusWarning, "该消息已被处理")
		return m
	}
	m.stats.Resolved++
	m.setStatus(statusSuccess, fmt.Sprintf("已记账 #%d，规则 #%d", msg.result.TransactionID, msg.result.RuleID))
	return m
}
