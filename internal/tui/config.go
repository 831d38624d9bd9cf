package tui

import (
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/tui/themes"
)

// Config holds TUI configuration.
type Config struct {
	Theme      themes.Theme
	RecordDir  string
	Categories []model.Category
	Methods    []model.Method
	Width      int
	Height     int
	AltScreen  bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:     themes.Default,
		Width:     80,
		Height:    24,
		AltScreen: true,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithCategories sets the categories offered by the resolution form.
func WithCategories(categories []model.Category) Option {
	return func(c *Config) {
		c.Categories = categories
	}
}

// WithMethods sets the payment methods offered by the resolution form.
func WithMethods(methods []model.Method) Option {
	return func(c *Config) {
		c.Methods = methods
	}
}

// WithRecorder writes every frame to dir for debugging.
func WithRecorder(dir string) Option {
	return func(c *Config) {
		c.RecordDir = dir
	}
}

// WithAltScreen toggles the alternate screen buffer.
func WithAltScreen(enabled bool) Option {
	return func(c *Config) {
		c.AltScreen = enabled
	}
}
