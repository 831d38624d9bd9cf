package themes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTheme(t *testing.T) {
	assert.Equal(t, CatppuccinMocha.Title.GetForeground(), GetTheme("catppuccin-mocha").Title.GetForeground())
	assert.Equal(t, Default.Title.GetForeground(), GetTheme("").Title.GetForeground())
	assert.Equal(t, Default.Title.GetForeground(), GetTheme("solarized").Title.GetForeground())
	assert.NotEqual(t, Default.Income.GetForeground(), Default.Expense.GetForeground())
}

func TestCategoryIcon(t *testing.T) {
	assert.Equal(t, DefaultCategoryIcon, CategoryIcon(""))
	assert.Equal(t, "🍜", CategoryIcon("🍜"))
}
