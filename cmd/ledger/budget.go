package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/budget"
	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
)

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Set and check monthly budgets",
	}
	cmd.AddCommand(setBudgetCmd())
	cmd.AddCommand(showBudgetCmd())
	return cmd
}

func setBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <amount>",
		Short: "Set the budget for a month",
		Long: `Set the spending limit for a month. Without --category, --method or --card
the budget covers every expense of the month. Setting it again replaces it.`,
		Example: `  ledger budget set 5000
  ledger budget set 800 --month 2024-03 --category 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			monthArg, _ := flags.GetString("month")
			categoryID, _ := flags.GetInt64("category")
			methodID, _ := flags.GetInt64("method")
			cardID, _ := flags.GetInt64("card")

			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil || amount < 0 {
				return common.NewUserError("预算金额无效", common.ErrInvalidAmount)
			}
			month, err := parseMonth(monthArg, time.Now())
			if err != nil {
				return err
			}

			b := &model.Budget{Month: month, Amount: amount, Scope: model.BudgetScopeAll}
			switch {
			case cardID > 0:
				b.Scope, b.CardID = model.BudgetScopeCard, &cardID
			case methodID > 0:
				b.Scope, b.MethodID = model.BudgetScopeMethod, &methodID
			case categoryID > 0:
				b.Scope, b.CategoryID = model.BudgetScopeCategory, &categoryID
			}

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id, err := store.SaveBudget(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Budget #%d for %s set to %s (%s)",
				id, month.Format("2006-01"), formatMoney(amount), b.Scope)))
			return nil
		},
	}
	cmd.Flags().String("month", "", "month (YYYY-MM, default current)")
	cmd.Flags().Int64("category", 0, "limit one category")
	cmd.Flags().Int64("method", 0, "limit one payment method")
	cmd.Flags().Int64("card", 0, "limit one card")
	return cmd
}

func showBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show spending against the month's budgets",
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
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle("预算 "+month.Format("2006-01")))
			if stats.Budget.Budget == nil && len(stats.Scoped) == 0 {
				fmt.Fprintln(out, cli.SubtitleStyle.Render("No budget set. Use: ledger budget set <amount>"))
				return nil
			}
			printBudgetStatus(out, "全部支出", stats.Budget)
			for _, s := range stats.Scoped {
				printBudgetStatus(out, scopeLabel(*s.Budget), s)
			}
			return nil
		},
	}
	cmd.Flags().String("month", "", "month (YYYY-MM, default current)")
	return cmd
}

func printBudgetStatus(w io.Writer, label string, s budget.Status) {
	if s.Budget == nil {
		return
	}
	line := fmt.Sprintf("%s: 已用 %s / %s，剩余 %s",
		label, s.Spent.StringFixed(2), s.Limit().StringFixed(2), s.Remaining.StringFixed(2))
	if s.Overspent {
		fmt.Fprintln(w, cli.FormatWarning(line+" (超支)"))
		return
	}
	fmt.Fprintln(w, cli.FormatInfo(line))
}

func scopeLabel(b model.Budget) string {
	switch b.Scope {
	case model.BudgetScopeCategory:
		return "分类 " + formatID(b.CategoryID)
	case model.BudgetScopeMethod:
		return "支付方式 " + formatID(b.MethodID)
	case model.BudgetScopeCard:
		return "卡片 " + formatID(b.CardID)
	default:
		return "全部支出"
	}
}
