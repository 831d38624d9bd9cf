// Package cli renders ledger output for the terminal and resolves pending
// messages through a line-based prompter.
package cli

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/smartledger/internal/model"
)

// Palette.
var (
	PrimaryColor = lipgloss.Color("#F4A261") // sand
	IncomeColor  = lipgloss.Color("#2A9D8F") // green
	ExpenseColor = lipgloss.Color("#E76F51") // red
	WarningColor = lipgloss.Color("#E9C46A")
	InfoColor    = lipgloss.Color("#8AB6D6")
	SubtleColor  = lipgloss.Color("#6C757D")
	BorderColor  = lipgloss.Color("#3D405B")
)

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)
	SubtitleStyle = lipgloss.NewStyle().Foreground(SubtleColor)
	SuccessStyle  = lipgloss.NewStyle().Foreground(IncomeColor)
	WarningStyle  = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle    = lipgloss.NewStyle().Foreground(ExpenseColor)
	InfoStyle     = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle   = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle     = lipgloss.NewStyle().Bold(true)
	ProgressStyle = lipgloss.NewStyle().Foreground(PrimaryColor)
	PromptStyle   = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
	HeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(InfoColor)

	// IncomeStyle and ExpenseStyle color signed amounts.
	IncomeStyle  = lipgloss.NewStyle().Foreground(IncomeColor)
	ExpenseStyle = lipgloss.NewStyle().Foreground(ExpenseColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(1, 2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	LedgerIcon  = "📒"
	CardIcon    = "💳"
	BellIcon    = "🔔"
)

func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle renders a section title behind the ledger icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(LedgerIcon + " " + title)
}

func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// FormatAmount renders amount with two decimals, signed and colored by type:
// "+12.50" for income, "-12.50" for expense.
func FormatAmount(typ model.TransactionType, amount float64) string {
	text := strconv.FormatFloat(amount, 'f', 2, 64)
	if typ == model.TransactionIncome {
		return IncomeStyle.Render("+" + text)
	}
	return ExpenseStyle.Render("-" + text)
}

// RenderBox renders content in a rounded box under a title line.
func RenderBox(title, content string) string {
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.UnsetMargins().Render(title),
		content,
	))
}
