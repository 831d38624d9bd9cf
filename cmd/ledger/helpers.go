package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/config"
	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/rules"
	"github.com/Veraticus/smartledger/internal/storage"
)

const dateLayout = "2006-01-02"

func loadSettings() (config.Settings, error) {
	config.SetDefaults(viper.GetViper())
	return config.Load(viper.GetViper())
}

// initStorage opens the configured database, migrating and seeding it.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, config.Settings, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, config.Settings{}, err
	}

	if err := os.MkdirAll(filepath.Dir(settings.DatabasePath), 0750); err != nil {
		return nil, config.Settings{}, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(settings.DatabasePath)
	if err != nil {
		return nil, config.Settings{}, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, config.Settings{}, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := store.Seed(ctx); err != nil {
		_ = store.Close()
		return nil, config.Settings{}, fmt.Errorf("failed to seed defaults: %w", err)
	}
	return store, settings, nil
}

func newProcessor(store *storage.SQLiteStorage, settings config.Settings) *engine.Processor {
	return engine.NewProcessor(store, rules.NewMatcher(), engine.Config{
		AutoImportNote:    settings.AutoImportNote,
		ManualNote:        settings.ManualNote,
		DefaultCategoryID: settings.DefaultCategoryID,
		DefaultMethodID:   settings.DefaultMethodID,
	})
}

// printTable writes rows aligned on tab stops under a styled header.
func printTable(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	styled := make([]string, len(header))
	for i, h := range header {
		styled[i] = cli.HeaderStyle.Render(h)
	}
	fmt.Fprintln(tw, strings.Join(styled, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// parseMonth accepts YYYY-MM; empty means the current month.
func parseMonth(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return model.MonthStart(now), nil
	}
	t, err := time.ParseInLocation("2006-01", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return t, nil
}

func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func optionalID(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func optionalInt(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func formatID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func formatDay(day *int) string {
	if day == nil {
		return "-"
	}
	return strconv.Itoa(*day)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func categoryNames(categories []model.Category) map[int64]string {
	out := make(map[int64]string, len(categories))
	for _, c := range categories {
		out[c.ID] = c.Name
	}
	return out
}

func methodNames(methods []model.Method) map[int64]string {
	out := make(map[int64]string, len(methods))
	for _, m := range methods {
		out[m.ID] = m.Name
	}
	return out
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t time.Time) string {
	duration := time.Since(t)
	switch {
	case duration < time.Minute:
		return "刚刚"
	case duration < time.Hour:
		return fmt.Sprintf("%d 分钟前", int(duration.Minutes()))
	case duration < 24*time.Hour:
		return fmt.Sprintf("%d 小时前", int(duration.Hours()))
	case duration < 7*24*time.Hour:
		return fmt.Sprintf("%d 天前", int(duration.Hours()/24))
	default:
		return t.Format(dateLayout)
	}
}
