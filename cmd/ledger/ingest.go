package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/inbound"
	"github.com/Veraticus/smartledger/internal/storage"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Book a feed of SMS and notification messages",
		Long: `Read JSON-lines message records and run each through the rule engine.

Matched messages are booked immediately. Unmatched messages are kept in memory
for this run only; use --review to resolve them before the command exits.`,
		Example: `  # Book a day's worth of captured messages
  ledger ingest --file messages.jsonl

  # Book from stdin and resolve what is left
  cat messages.jsonl | ledger ingest --review`,
		RunE: runIngest,
	}

	cmd.Flags().StringP("file", "f", "-", "JSON-lines feed to read (- for stdin)")
	cmd.Flags().IntP("workers", "w", 0, "concurrent workers (default from ingest.workers)")
	cmd.Flags().Bool("review", false, "resolve unmatched messages interactively afterwards")
	cmd.Flags().Bool("progress", true, "show a progress spinner")

	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	workers, _ := cmd.Flags().GetInt("workers")
	review, _ := cmd.Flags().GetBool("review")
	showProgress, _ := cmd.Flags().GetBool("progress")
	out := cmd.OutOrStdout()

	if review && path == "-" {
		return fmt.Errorf("--review needs --file: stdin is used for answers")
	}

	store, settings, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if workers <= 0 {
		workers = settings.IngestWorkers
	}

	reader, closeReader, err := openInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer closeReader()

	processor := newProcessor(store, settings)
	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), func() int { return len(processor.Pending()) })

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("处理消息"),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
	}

	stats, feedStats, err := ingest(ctx, processor, reader, workers, bar)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Fprintln(out, cli.FormatTitle("导入完成"))
	fmt.Fprintf(out, "  读取: %d 行 (跳过 %d)\n", feedStats.Lines, feedStats.Skipped)
	fmt.Fprintf(out, "  自动记账: %s\n", cli.SuccessStyle.Render(fmt.Sprint(stats.Committed)))
	fmt.Fprintf(out, "  待确认: %s\n", cli.WarningStyle.Render(fmt.Sprint(stats.Queued)))
	if stats.Failed > 0 {
		fmt.Fprintf(out, "  保存失败: %s\n", cli.ErrorStyle.Render(fmt.Sprint(stats.Failed)))
	}
	if interrupts.WasInterrupted() {
		return context.Canceled
	}

	if !review {
		if n := len(processor.Pending()); n > 0 {
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d 条消息未记录，使用 --review 或 ledger inbox 处理", n)))
		}
		return nil
	}
	return reviewPending(ctx, cmd, store, processor)
}

// ingest feeds r through a dispatcher over processor.
func ingest(ctx context.Context, processor *engine.Processor, r io.Reader, workers int, bar *progressbar.ProgressBar) (engine.DispatchStats, inbound.FeedStats, error) {
	messages := make(chan engine.Message)
	dispatcher := engine.NewDispatcher(processor, workers, func(msg engine.Message, outcome engine.Outcome, err error) {
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			slog.Warn("Failed to record message", "channel", msg.Channel, "error", err)
			return
		}
		slog.Debug("Processed message", "channel", msg.Channel, "outcome", outcome.Kind)
	})

	var (
		feedStats inbound.FeedStats
		feedErr   error
	)
	go func() {
		defer close(messages)
		feedStats, feedErr = inbound.Feed(ctx, r, messages)
	}()

	stats, err := dispatcher.Run(ctx, messages)
	// Run only returns once messages is closed or ctx is done; in the second
	// case drain so the feeder can exit.
	for range messages { //nolint:revive // drain
	}
	if feedErr != nil && !errors.Is(feedErr, context.Canceled) {
		return stats, feedStats, feedErr
	}
	return stats, feedStats, err
}

func reviewPending(ctx context.Context, cmd *cobra.Command, store *storage.SQLiteStorage, processor *engine.Processor) error {
	categories, err := store.GetCategories(ctx, "")
	if err != nil {
		return err
	}
	methods, err := store.GetMethods(ctx)
	if err != nil {
		return err
	}

	prompter := cli.NewCLIPrompter(cmd.InOrStdin(), cmd.OutOrStdout(), categories, methods).WithProgress()
	_, err = prompter.Review(ctx, processor)
	prompter.ShowCompletion()
	if errors.Is(err, cli.ErrQuit) {
		return nil
	}
	return err
}

var errNoStdin = errors.New("standard input is not available")

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		if stdin == nil {
			return nil, nil, errNoStdin
		}
		return stdin, func() {}, nil
	}
	f, err := os.Open(path) // #nosec G304 -- user-provided feed path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
