package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/reminder"
)

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Show credit repayment reminders due today",
		Long: `Check credit methods and cards for upcoming repayment days.

With --watch the check repeats every reminders.interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			lead, _ := cmd.Flags().GetInt("lead-days")

			store, settings, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if !cmd.Flags().Changed("lead-days") {
				lead = settings.RepayLeadDays
			}

			writer := reminder.NewWriterNotifier(cmd.OutOrStdout())
			writer.Style = func(title string) string {
				return cli.WarningStyle.Render(cli.BellIcon + " " + title)
			}
			notifier := reminder.NotifierFunc(func(ctx context.Context, r reminder.Reminder) error {
				_ = reminder.LogNotifier{}.Notify(ctx, r)
				return writer.Notify(ctx, r)
			})
			checker := reminder.NewChecker(store, notifier, lead)

			if watch {
				err := reminder.NewScheduler(checker, settings.ReminderInterval).Run(cmd.Context())
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			due, err := checker.Check(cmd.Context())
			if len(due) == 0 && err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render(
					fmt.Sprintf("%s 今天没有需要提醒的还款", time.Now().Format(dateLayout))))
			}
			return err
		},
	}
	cmd.Flags().Bool("watch", false, "keep running and check on every interval")
	cmd.Flags().Int("lead-days", 0, "days before the due day to start reminding (default from config)")
	return cmd
}
