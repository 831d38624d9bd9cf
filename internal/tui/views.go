package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/tui/themes"
)

const timeLayout = "01-02 15:04"

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.state {
	case StateForm:
		body = m.renderForm()
	case StateHelp:
		body = m.help.FullHelpView(m.keymap.FullHelp())
	default:
		body = m.renderList()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.Title.Render(fmt.Sprintf("📒 待确认消息 (%d)", len(m.items)))
	counts := m.theme.Subtitle.Render(fmt.Sprintf("已记账 %d · 已忽略 %d", m.stats.Resolved, m.stats.Dismissed))
	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(counts), 1)
	return title + strings.Repeat(" ", gap) + counts + "\n"
}

func (m Model) renderList() string {
	if len(m.items) == 0 {
		return m.theme.StatusPending.Render("没有待确认的消息，新消息到达时会自动出现") + "\n"
	}

	// header, detail box and status bar take the rest of the screen.
	visible := max(m.height-10, 3)
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(start+visible, len(m.items))

	var b strings.Builder
	for i := start; i < end; i++ {
		item := m.items[i]
		line := fmt.Sprintf("%s  %-14s  %s",
			item.ReceivedAt.Format(timeLayout),
			truncate(item.Channel, 14),
			oneLine(item.Text))
		line = truncate(line, max(m.width-2, 20))
		if i == m.cursor {
			b.WriteString(m.theme.Selected.Render("▸ " + line))
		} else {
			b.WriteString(m.theme.Normal.Render("  " + line))
		}
		b.WriteByte('\n')
	}
	if item, ok := m.current(); ok {
		b.WriteString(m.renderDetail(item.Text, item.SuggestedRuleName()))
	}
	return b.String()
}

func (m Model) renderDetail(text, ruleName string) string {
	content := text
	if ruleName != "" {
		content += "\n" + m.theme.StatusPending.Render("部分匹配规则: "+ruleName)
	}
	return m.theme.RoundedBox.Width(max(m.width-4, 20)).Render(content)
}

func (m Model) renderForm() string {
	f := m.form
	var b strings.Builder
	b.WriteString(m.renderDetail(f.item.Text, f.item.SuggestedRuleName()))
	b.WriteString("\n\n")

	typeLabel := m.theme.Expense.Render("支出")
	if f.typ == model.TransactionIncome {
		typeLabel = m.theme.Income.Render("收入")
	}
	category := "(无可选分类)"
	if c, ok := f.selectedCategory(); ok {
		category = themes.CategoryIcon(c.Icon) + " " + c.Name
	}
	method := "(无可选支付方式)"
	if pm, ok := f.selectedMethod(); ok {
		method = pm.Name
	}

	rows := []struct {
		label string
		value string
		field field
	}{
		{label: "金额", value: f.amount.View(), field: fieldAmount},
		{label: "类型", value: picker(typeLabel), field: fieldType},
		{label: "分类", value: picker(category), field: fieldCategory},
		{label: "支付方式", value: picker(method), field: fieldMethod},
		{label: "关键词", value: f.keywords.View(), field: fieldKeywords},
	}
	for _, row := range rows {
		label := fmt.Sprintf("%-6s", row.label)
		if row.field == f.focus {
			label = m.theme.Selected.Render(label)
		} else {
			label = m.theme.Bold.Render(label)
		}
		fmt.Fprintf(&b, "%s  %s\n", label, row.value)
	}

	switch {
	case f.submitting:
		b.WriteString(m.theme.StatusPending.Render("保存中...") + "\n")
	case f.err != "":
		b.WriteString(m.theme.StatusError.Render("✗ "+f.err) + "\n")
	}
	return b.String()
}

func picker(value string) string {
	return "‹ " + value + " ›"
}

func (m Model) renderStatusBar() string {
	var status string
	switch m.statusStyle {
	case statusSuccess:
		status = m.theme.StatusSuccess.Render(m.status)
	case statusWarning:
		status = m.theme.StatusWarning.Render(m.status)
	case statusError:
		status = m.theme.StatusError.Render(m.status)
	default:
		status = m.theme.Subtitle.Render(m.status)
	}

	helpView := m.help.ShortHelpView(m.keymap.ShortHelp())
	if m.state == StateForm {
		helpView = m.help.ShortHelpView(m.keymap.FormHelp())
	}
	if m.status == "" {
		return "\n" + helpView
	}
	return "\n" + status + "\n" + helpView
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most width terminal cells.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	var b strings.Builder
	w := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width-1 {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	return b.String() + "…"
}
