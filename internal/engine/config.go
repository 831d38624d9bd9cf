// Package engine turns inbound messages into ledger transactions and keeps
// the queue of messages that still need the user.
package engine

import "time"

// Default transaction notes.
const (
	DefaultAutoImportNote = "短信/通知自动导入"
	DefaultManualNote     = "手动确认记录"
)

// Config holds the fallbacks the processor applies to inferred transactions.
type Config struct {
	// Clock returns the processing time stamped on new transactions and
	// pending items. Nil means time.Now.
	Clock             func() time.Time
	AutoImportNote    string
	ManualNote        string
	DefaultCategoryID int64
	DefaultMethodID   int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultCategoryID: 1,
		DefaultMethodID:   1,
		AutoImportNote:    DefaultAutoImportNote,
		ManualNote:        DefaultManualNote,
	}
}

func (c Config) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultCategoryID <= 0 {
		c.DefaultCategoryID = def.DefaultCategoryID
	}
	if c.DefaultMethodID <= 0 {
		c.DefaultMethodID = def.DefaultMethodID
	}
	if c.AutoImportNote == "" {
		c.AutoImportNote = def.AutoImportNote
	}
	if c.ManualNote == "" {
		c.ManualNote = def.ManualNote
	}
	return c
}
