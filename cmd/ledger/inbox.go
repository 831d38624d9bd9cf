package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/config"
	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/tui"
	"github.com/Veraticus/smartledger/internal/tui/themes"
)

func inboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Resolve unmatched messages in an interactive inbox",
		Long: `Open the interactive inbox while a message feed is processed in the
background. Matched messages are booked as they arrive; the rest appear in the
inbox, where resolving one books it and learns a rule for its source.

The feed may be a regular file or a named pipe that another process keeps
writing to.`,
		Example: `  mkfifo /tmp/ledger.pipe
  ledger inbox --file /tmp/ledger.pipe`,
		RunE: runInbox,
	}

	cmd.Flags().StringP("file", "f", "", "JSON-lines feed to process while the inbox is open")
	cmd.Flags().IntP("workers", "w", 0, "concurrent workers (default from ingest.workers)")
	cmd.Flags().String("record", "", "write every rendered frame to this directory")

	return cmd
}

func runInbox(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	workers, _ := cmd.Flags().GetInt("workers")
	recordDir, _ := cmd.Flags().GetString("record")
	// The terminal's input belongs to the inbox itself.
	if path == "-" {
		return common.NewUserError("inbox 不能从标准输入读取消息，请使用文件或命名管道", errNoStdin)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, settings, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if workers <= 0 {
		workers = settings.IngestWorkers
	}
	categories, err := store.GetCategories(ctx, "")
	if err != nil {
		return err
	}
	methods, err := store.GetMethods(ctx)
	if err != nil {
		return err
	}

	// Log lines on stderr would corrupt the alternate screen.
	restoreLogs, err := logToFile(filepath.Join(filepath.Dir(settings.DatabasePath), "inbox.log"), settings)
	if err != nil {
		return err
	}
	defer restoreLogs()

	processor := newProcessor(store, settings)

	feedDone := make(chan struct{})
	if path != "" {
		go func() {
			defer close(feedDone)
			feed(ctx, processor, path, workers)
		}()
	} else {
		close(feedDone)
	}

	opts := []tui.Option{
		tui.WithCategories(categories),
		tui.WithMethods(methods),
		tui.WithTheme(themes.GetTheme(settings.UITheme)),
	}
	if recordDir != "" {
		opts = append(opts, tui.WithRecorder(recordDir))
	}

	stats, err := tui.Run(ctx, processor, opts...)
	cancel()
	select {
	case <-feedDone:
	case <-time.After(feedShutdownTimeout):
		slog.Warn("Feed did not stop in time")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s 已记账 %d，已忽略 %d\n", cli.SuccessIcon, stats.Resolved, stats.Dismissed)
	if n := len(processor.Pending()); n > 0 {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%d 条待确认消息未记录", n)))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// feedShutdownTimeout bounds the wait for a feed blocked opening a pipe.
const feedShutdownTimeout = 2 * time.Second

// feed processes path in the background until it ends or ctx is canceled.
func feed(ctx context.Context, processor *engine.Processor, path string, workers int) {
	reader, closeReader, err := openInput(path, nil)
	if err != nil {
		slog.Error("Failed to open feed", "path", path, "error", err)
		return
	}
	stop := context.AfterFunc(ctx, closeReader)
	defer func() {
		if stop() {
			closeReader()
		}
	}()

	stats, _, err := ingest(ctx, processor, reader, workers, nil)
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		slog.Error("Feed stopped", "error", err)
		return
	}
	slog.Info("Feed finished", "committed", stats.Committed, "queued", stats.Queued)
}

func logToFile(path string, settings config.Settings) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) // #nosec G304 -- derived from database path
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	level, err := common.ParseLevel(settings.LogLevel)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	previous := slog.Default()
	if err := common.SetupLogger(f, level, settings.LogFormat); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() {
		slog.SetDefault(previous)
		_ = f.Close()
	}, nil
}
