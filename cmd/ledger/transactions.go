package main

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/engine"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/service"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List and record transactions",
	}
	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(addTransactionCmd())
	return cmd
}

func listTransactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			monthArg, _ := flags.GetString("month")
			typArg, _ := flags.GetString("type")
			categoryID, _ := flags.GetInt64("category")
			methodID, _ := flags.GetInt64("method")
			limit, _ := flags.GetInt("limit")

			filter := service.TransactionFilter{
				CategoryID: optionalID(categoryID),
				MethodID:   optionalID(methodID),
				Limit:      limit,
			}
			if monthArg != "" {
				month, err := parseMonth(monthArg, time.Now())
				if err != nil {
					return err
				}
				end := month.AddDate(0, 1, 0).Add(-time.Nanosecond)
				filter.Start, filter.End = &month, &end
			}
			if typArg != "" {
				typ, err := model.ParseTransactionType(typArg)
				if err != nil {
					return err
				}
				filter.Type = typ
			}

			ctx := cmd.Context()
			store, _, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txns, err := store.ListTransactions(ctx, filter)
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("No transactions found."))
				return nil
			}
			categories, err := store.GetCategories(ctx, "")
			if err != nil {
				return err
			}
			methods, err := store.GetMethods(ctx)
			if err != nil {
				return err
			}
			catNames, methodNamesByID := categoryNames(categories), methodNames(methods)

			rows := make([][]string, 0, len(txns))
			for _, t := range txns {
				rows = append(rows, []string{
					strconv.FormatInt(t.ID, 10),
					t.OccurredAt.Local().Format("2006-01-02 15:04"),
					cli.FormatAmount(t.Type, t.Amount),
					catNames[t.CategoryID],
					methodNamesByID[t.MethodID],
					t.Source,
					t.Note,
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "TIME", "AMOUNT", "CATEGORY", "METHOD", "SOURCE", "NOTE"}, rows)
			return nil
		},
	}
	cmd.Flags().String("month", "", "only this month (YYYY-MM)")
	cmd.Flags().String("type", "", "only this type (expense, income)")
	cmd.Flags().Int64("category", 0, "only this category id")
	cmd.Flags().Int64("method", 0, "only this payment method id")
	cmd.Flags().IntP("limit", "n", 50, "maximum rows (0 for all)")
	return cmd
}

func addTransactionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <amount>",
		Short: "Record a transaction by hand",
		Long: `Record a transaction by hand. Category and payment method default to the
first available ones.`,
		Example: `  ledger transactions add 32.5 --category 1 --method 2 --note 午饭`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			typArg, _ := flags.GetString("type")
			categoryID, _ := flags.GetInt64("category")
			methodID, _ := flags.GetInt64("method")
			cardID, _ := flags.GetInt64("card")
			dateArg, _ := flags.GetString("date")
			note, _ := flags.GetString("note")

			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil || amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
				return common.NewUserError("金额需大于0", common.ErrInvalidAmount)
			}
			typ, err := model.ParseTransactionType(typArg)
			if err != nil {
				return common.NewUserError("请选择收支类型", err)
			}
			occurred, err := parseDate(dateArg, time.Now())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, settings, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if categoryID <= 0 {
				categories, err := store.GetCategories(ctx, typ)
				if err != nil {
					return err
				}
				if len(categories) == 0 {
					return common.NewUserError("请选择分类", common.ErrMissingCategory)
				}
				categoryID = categories[0].ID
			}
			if methodID <= 0 {
				methods, err := store.GetMethods(ctx)
				if err != nil {
					return err
				}
				if len(methods) == 0 {
					return common.NewUserError("请选择支付方式", common.ErrMissingMethod)
				}
				methodID = methods[0].ID
			}
			if note == "" {
				note = engine.DefaultManualNote
				if settings.ManualNote != "" {
					note = settings.ManualNote
				}
			}

			txn := &model.Transaction{
				Amount:     amount,
				Type:       typ,
				CategoryID: categoryID,
				MethodID:   methodID,
				CardID:     optionalID(cardID),
				OccurredAt: occurred,
				Note:       note,
				Source:     model.SourceManual,
			}
			id, err := store.SaveTransaction(ctx, txn)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Recorded transaction #%d (%s %s)", id, typeLabel(typ), formatMoney(amount))))
			return nil
		},
	}
	cmd.Flags().String("type", "expense", "transaction type (expense, income)")
	cmd.Flags().Int64("category", 0, "category id")
	cmd.Flags().Int64("method", 0, "payment method id")
	cmd.Flags().Int64("card", 0, "card id")
	cmd.Flags().String("date", "", "date (YYYY-MM-DD, default now)")
	cmd.Flags().String("note", "", "note")
	return cmd
}
