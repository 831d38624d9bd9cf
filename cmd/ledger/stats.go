package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/budget"
	"github.com/Veraticus/smartledger/internal/cli"
)

const barWidth = 24

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show monthly income, expense and breakdowns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			monthArg, _ := cmd.Flags().GetString("month")
			month, err := parseMonth(monthArg, time.Now())
			if err != nil {
				return err
			}

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := budget.NewReporter(store).Month(cmd.Context(), month)
			if err != nil {
				return err
			}
			categories, err := store.GetCategories(cmd.Context(), "")
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), stats, categoryNames(categories))
			return nil
		},
	}
	cmd.Flags().String("month", "", "month (YYYY-MM, default current)")
	return cmd
}

func renderStats(w io.Writer, s budget.MonthStats, categories map[int64]string) {
	fmt.Fprintln(w, cli.FormatTitle("统计 "+s.Month.Format("2006-01")))
	fmt.Fprintf(w, "  支出 %s   收入 %s   结余 %s\n",
		cli.ErrorStyle.Render(s.Expense.StringFixed(2)),
		cli.SuccessStyle.Render(s.Income.StringFixed(2)),
		cli.BoldStyle.Render(s.Balance.StringFixed(2)))
	if s.Budget.Budget != nil {
		printBudgetStatus(w, "预算", s.Budget)
	}

	renderSlices(w, "按分类", s.ByCategory, s.Expense)
	renderSlices(w, "按支付方式", s.ByMethod, s.Expense)

	if len(s.Trend) > 0 {
		fmt.Fprintln(w, "\n"+cli.BoldStyle.Render("每日支出"))
		peak := decimal.Zero
		for _, p := range s.Trend {
			peak = decimal.Max(peak, p.Amount)
		}
		for _, p := range s.Trend {
			fmt.Fprintf(w, "  %02d  %s %s\n", p.Day, bar(p.Amount, peak), p.Amount.StringFixed(2))
		}
	}

	if len(s.Recent) > 0 {
		fmt.Fprintln(w, "\n"+cli.BoldStyle.Render("最近记录"))
		for _, t := range s.Recent {
			fmt.Fprintf(w, "  %s  %s  %s  %s\n",
				t.OccurredAt.Local().Format("01-02 15:04"), cli.FormatAmount(t.Type, t.Amount), categories[t.CategoryID], t.Note)
		}
	}
}

func renderSlices(w io.Writer, title string, slices []budget.Slice, total decimal.Decimal) {
	if len(slices) == 0 {
		return
	}
	fmt.Fprintln(w, "\n"+cli.BoldStyle.Render(title))
	for _, s := range slices {
		share := decimal.Zero
		if total.IsPositive() {
			share = s.Amount.Div(total).Mul(decimal.NewFromInt(100))
		}
		fmt.Fprintf(w, "  %-10s %s %s (%s%%)\n", s.Name, bar(s.Amount, total), s.Amount.StringFixed(2), share.StringFixed(1))
	}
}

func bar(v, peak decimal.Decimal) string {
	if !peak.IsPositive() {
		return strings.Repeat("░", barWidth)
	}
	n := int(v.Div(peak).Mul(decimal.NewFromInt(barWidth)).Round(0).IntPart())
	n = max(0, min(n, barWidth))
	return cli.ProgressStyle.Render(strings.Repeat("█", n)) + cli.SubtleStyle.Render(strings.Repeat("░", barWidth-n))
}
