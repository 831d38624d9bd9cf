// Package config loads ledger settings through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/smartledger/internal/common"
)

// Setting keys.
const (
	KeyDatabasePath      = "database.path"
	KeyDefaultCategoryID = "ledger.default_category_id"
	KeyDefaultMethodID   = "ledger.default_method_id"
	KeyAutoImportNote    = "ledger.auto_import_note"
	KeyManualNote        = "ledger.manual_note"
	KeyIngestWorkers     = "ingest.workers"
	KeyRepayLeadDays     = "reminders.repay_lead_days"
	KeyReminderInterval  = "reminders.interval"
	KeyLogLevel          = "logging.level"
	KeyLogFormat         = "logging.format"
	KeyUITheme           = "ui.theme"
)

// MaxRepayLeadDays is the largest accepted reminder lead.
const MaxRepayLeadDays = 15

// Settings is the resolved application configuration.
type Settings struct {
	DatabasePath      string
	AutoImportNote    string
	ManualNote        string
	LogLevel          string
	LogFormat         string
	UITheme           string
	ReminderInterval  time.Duration
	DefaultCategoryID int64
	DefaultMethodID   int64
	IngestWorkers     int
	RepayLeadDays     int
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath())
	v.SetDefault(KeyDefaultCategoryID, 1)
	v.SetDefault(KeyDefaultMethodID, 1)
	v.SetDefault(KeyAutoImportNote, "短信/通知自动导入")
	v.SetDefault(KeyManualNote, "手动确认记录")
	v.SetDefault(KeyIngestWorkers, 4)
	v.SetDefault(KeyRepayLeadDays, 3)
	v.SetDefault(KeyReminderInterval, 24*time.Hour)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyUITheme, "default")
}

// Load resolves and validates the settings held by v. The repayment lead is
// clamped to 0..MaxRepayLeadDays rather than rejected.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		DatabasePath:      ExpandPath(strings.TrimSpace(v.GetString(KeyDatabasePath))),
		DefaultCategoryID: v.GetInt64(KeyDefaultCategoryID),
		DefaultMethodID:   v.GetInt64(KeyDefaultMethodID),
		AutoImportNote:    v.GetString(KeyAutoImportNote),
		ManualNote:        v.GetString(KeyManualNote),
		IngestWorkers:     v.GetInt(KeyIngestWorkers),
		RepayLeadDays:     max(0, min(v.GetInt(KeyRepayLeadDays), MaxRepayLeadDays)),
		ReminderInterval:  v.GetDuration(KeyReminderInterval),
		LogLevel:          strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:         strings.ToLower(v.GetString(KeyLogFormat)),
		UITheme:           v.GetString(KeyUITheme),
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	switch {
	case s.DatabasePath == "":
		return invalid(KeyDatabasePath, "must not be empty")
	case s.DefaultCategoryID <= 0:
		return invalid(KeyDefaultCategoryID, "must be positive")
	case s.DefaultMethodID <= 0:
		return invalid(KeyDefaultMethodID, "must be positive")
	case s.IngestWorkers <= 0:
		return invalid(KeyIngestWorkers, "must be positive")
	case s.ReminderInterval < time.Minute:
		return invalid(KeyReminderInterval, "must be at least one minute")
	}
	if _, err := common.ParseLevel(s.LogLevel); err != nil {
		return invalid(KeyLogLevel, err.Error())
	}
	if s.LogFormat != "console" && s.LogFormat != "json" {
		return invalid(KeyLogFormat, "must be console or json")
	}
	return nil
}

func invalid(key, reason string) error {
	return fmt.Errorf("%w: %s %s", common.ErrInvalidConfig, key, reason)
}
