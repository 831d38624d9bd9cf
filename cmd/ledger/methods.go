package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/model"
)

func methodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "methods",
		Short: "Manage payment methods and their cards",
	}
	cmd.AddCommand(listMethodsCmd())
	cmd.AddCommand(addMethodCmd())
	cmd.AddCommand(editMethodCmd())
	cmd.AddCommand(cardsCmd())
	return cmd
}

func listMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List payment methods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			methods, err := store.GetMethods(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(methods))
			for _, m := range methods {
				credit := ""
				if m.IsCredit {
					credit = "credit"
				}
				rows = append(rows, []string{
					strconv.FormatInt(m.ID, 10),
					m.Name,
					credit,
					formatDay(m.BillDay),
					formatDay(m.DueDay),
					formatDay(m.RepayLeadDays),
					formatLimit(m.RemainingLimit, m.TotalLimit),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "", "BILL DAY", "DUE DAY", "LEAD", "LIMIT"}, rows)
			return nil
		},
	}
}

func formatLimit(remaining, total *float64) string {
	switch {
	case total == nil:
		return "-"
	case remaining == nil:
		return formatMoney(*total)
	default:
		return formatMoney(*remaining) + " / " + formatMoney(*total)
	}
}

// billingFlags are shared by methods and cards.
func billingFlags(flags *pflag.FlagSet) {
	flags.Int("bill-day", 0, "statement day of month (1-31)")
	flags.Int("due-day", 0, "repayment due day of month (1-31)")
	flags.Int("lead-days", 0, "days before the due day to remind (0-15)")
	flags.Float64("limit", 0, "total credit limit")
	flags.Float64("remaining", 0, "remaining credit limit")
}

type billing struct {
	billDay, dueDay, leadDays **int
	total, remaining          **float64
}

func applyBillingFlags(flags *pflag.FlagSet, b billing) {
	day := func(name string, dst **int) {
		if flags.Changed(name) {
			v, _ := flags.GetInt(name)
			*dst = optionalInt(v)
		}
	}
	money := func(name string, dst **float64) {
		if flags.Changed(name) {
			v, _ := flags.GetFloat64(name)
			*dst = &v
		}
	}
	day("bill-day", b.billDay)
	day("due-day", b.dueDay)
	day("lead-days", b.leadDays)
	money("limit", b.total)
	money("remaining", b.remaining)
}

func addMethodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add <name>",
		Short:   "Add a payment method",
		Example: `  ledger methods add 招行信用卡 --credit --bill-day 5 --due-day 23 --limit 30000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credit, _ := cmd.Flags().GetBool("credit")
			m := &model.Method{Name: strings.TrimSpace(args[0]), IsCredit: credit, IsCustom: true}
			applyBillingFlags(cmd.Flags(), billing{&m.BillDay, &m.DueDay, &m.RepayLeadDays, &m.TotalLimit, &m.RemainingLimit})
			return saveMethod(cmd, m)
		},
	}
	cmd.Flags().Bool("credit", false, "credit method with a repayment cycle")
	billingFlags(cmd.Flags())
	return cmd
}

func editMethodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a payment method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			m, err := store.GetMethodByID(cmd.Context(), id)
			_ = store.Close()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("name") {
				name, _ := cmd.Flags().GetString("name")
				m.Name = strings.TrimSpace(name)
			}
			if cmd.Flags().Changed("credit") {
				m.IsCredit, _ = cmd.Flags().GetBool("credit")
			}
			applyBillingFlags(cmd.Flags(), billing{&m.BillDay, &m.DueDay, &m.RepayLeadDays, &m.TotalLimit, &m.RemainingLimit})
			return saveMethod(cmd, m)
		},
	}
	cmd.Flags().String("name", "", "new name")
	cmd.Flags().Bool("credit", false, "credit method with a repayment cycle")
	billingFlags(cmd.Flags())
	return cmd
}

func saveMethod(cmd *cobra.Command, m *model.Method) error {
	store, _, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	id, err := store.SaveMethod(cmd.Context(), m)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Saved method #%d %s", id, m.Name)))
	return nil
}

func cardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage cards issued under a payment method",
	}
	cmd.AddCommand(listCardsCmd())
	cmd.AddCommand(addCardCmd())
	return cmd
}

func listCardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			methodID, _ := cmd.Flags().GetInt64("method")

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cards, err := store.GetCards(cmd.Context(), methodID)
			if err != nil {
				return err
			}
			methods, err := store.GetMethods(cmd.Context())
			if err != nil {
				return err
			}
			names := methodNames(methods)

			rows := make([][]string, 0, len(cards))
			for _, c := range cards {
				rows = append(rows, []string{
					strconv.FormatInt(c.ID, 10),
					c.Label,
					names[c.MethodID],
					formatDay(c.BillDay),
					formatDay(c.DueDay),
					formatDay(c.RepayLeadDays),
					formatLimit(c.RemainingLimit, c.TotalLimit),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "LABEL", "METHOD", "BILL DAY", "DUE DAY", "LEAD", "LIMIT"}, rows)
			return nil
		},
	}
	cmd.Flags().Int64("method", 0, "only cards of this method")
	return cmd
}

func addCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Add a card under a payment method",
		Long: `Add a card under a payment method. Billing fields left unset inherit
the method's values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			methodID, _ := cmd.Flags().GetInt64("method")
			c := &model.Card{Label: strings.TrimSpace(args[0]), MethodID: methodID, IsCustom: true}
			applyBillingFlags(cmd.Flags(), billing{&c.BillDay, &c.DueDay, &c.RepayLeadDays, &c.TotalLimit, &c.RemainingLimit})

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id, err := store.SaveCard(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Saved card #%d %s", id, c.Label)))
			return nil
		},
	}
	cmd.Flags().Int64("method", 0, "payment method id")
	_ = cmd.MarkFlagRequired("method")
	billingFlags(cmd.Flags())
	return cmd
}
