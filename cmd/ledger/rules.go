package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/rulefile"
	"github.com/Veraticus/smartledger/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage message matching rules",
		Long: `List, create, edit and test the rules that turn messages into transactions.

A rule matches when every keyword appears in the message. Rules bound to a card
beat rules bound to a payment method, which beat rules for a channel, which
beat global rules; priority breaks ties.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(showRuleCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(editRuleCmd())
	cmd.AddCommand(setRuleEnabledCmd("enable", true))
	cmd.AddCommand(setRuleEnabledCmd("disable", false))
	cmd.AddCommand(testRuleCmd())
	cmd.AddCommand(importRulesCmd())
	cmd.AddCommand(exportRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in match order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleSet, err := store.ListRules(cmd.Context())
			if err != nil {
				return err
			}

			var rows [][]string
			for _, r := range ruleSet {
				if !r.Enabled && !all {
					continue
				}
				rows = append(rows, []string{
					strconv.FormatInt(r.ID, 10),
					r.Name,
					rules.TierOf(r, r.CardID, r.MethodID, r.Channel).String(),
					r.Keywords,
					typeLabel(r.Type),
					strconv.Itoa(r.Priority),
					enabledLabel(r.Enabled),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("No rules found."))
				return nil
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "SCOPE", "KEYWORDS", "TYPE", "PRIORITY", "STATUS"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolP("all", "a", false, "include disabled rules")
	return cmd
}

func showRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one rule",
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
			defer func() { _ = store.Close() }()

			r, err := store.GetRule(cmd.Context(), id)
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Channel:   %s\n", valueOr(r.Channel, "(any)"))
			fmt.Fprintf(&b, "Keywords:  %s\n", valueOr(r.Keywords, "(none)"))
			fmt.Fprintf(&b, "Pattern:   %s\n", valueOr(r.Pattern, "(numeric)"))
			fmt.Fprintf(&b, "Type:      %s\n", typeLabel(r.Type))
			fmt.Fprintf(&b, "Category:  %s\n", formatID(r.CategoryID))
			fmt.Fprintf(&b, "Method:    %s\n", formatID(r.MethodID))
			fmt.Fprintf(&b, "Card:      %s\n", formatID(r.CardID))
			fmt.Fprintf(&b, "Priority:  %d\n", r.Priority)
			fmt.Fprintf(&b, "Status:    %s", enabledLabel(r.Enabled))
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(fmt.Sprintf("#%d %s", r.ID, r.Name), b.String()))
			return nil
		},
	}
}

// ruleFlags are shared by add and edit.
func ruleFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "rule name")
	cmd.Flags().String("channel", "", "channel the rule applies to (SMS, app package name)")
	cmd.Flags().String("keywords", "", "comma separated keywords that must all appear")
	cmd.Flags().String("pattern", "", "regular expression extracting the amount")
	cmd.Flags().Int("amount-group", 0, "capture group holding the amount (default 1)")
	cmd.Flags().Int("date-group", 0, "capture group holding the date")
	cmd.Flags().String("type", "expense", "transaction type (expense, income)")
	cmd.Flags().Int64("category", 0, "category id")
	cmd.Flags().Int64("method", 0, "payment method id")
	cmd.Flags().Int64("card", 0, "card id")
	cmd.Flags().Int("priority", 0, "priority within the same scope")
	cmd.Flags().Bool("disabled", false, "create the rule disabled")
}

// applyRuleFlags copies every flag the user set onto e.
func applyRuleFlags(cmd *cobra.Command, e *rulefile.Entry) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	id := func(name string, dst **int64) {
		if flags.Changed(name) {
			v, _ := flags.GetInt64(name)
			*dst = optionalID(v)
		}
	}
	group := func(name string, dst **int) {
		if flags.Changed(name) {
			v, _ := flags.GetInt(name)
			*dst = optionalInt(v)
		}
	}

	str("name", &e.Name)
	str("channel", &e.Channel)
	str("keywords", &e.Keywords)
	str("pattern", &e.Pattern)
	str("type", &e.Type)
	group("amount-group", &e.AmountGroup)
	group("date-group", &e.DateGroup)
	id("category", &e.CategoryID)
	id("method", &e.MethodID)
	id("card", &e.CardID)
	if flags.Changed("priority") {
		e.Priority, _ = flags.GetInt("priority")
	}
	if flags.Changed("disabled") {
		disabled, _ := flags.GetBool("disabled")
		enabled := !disabled
		e.Enabled = &enabled
	}
}

// validateGroups checks that the configured capture groups exist.
func validateGroups(r model.Rule) error {
	if !r.HasPattern() {
		if r.AmountGroup != nil || r.DateGroup != nil {
			return common.NewUserError("捕获组需要配合正则使用", fmt.Errorf("capture groups require a pattern"))
		}
		return nil
	}
	_, groups, err := common.CompileRegex(r.Pattern)
	if err != nil {
		return common.NewUserError("正则表达式无效", err)
	}
	for name, g := range map[string]*int{"amount": r.AmountGroup, "date": r.DateGroup} {
		if g != nil && *g > groups {
			return common.NewUserError("捕获组不存在",
				fmt.Errorf("%s group %d exceeds the %d groups in %q", name, *g, groups, r.Pattern))
		}
	}
	if r.AmountGroup == nil && groups < rules.DefaultAmountGroup {
		return common.NewUserError("正则表达式需要一个捕获金额的分组",
			fmt.Errorf("pattern %q has no capture group", r.Pattern))
	}
	return nil
}

func addRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a rule",
		Example: `  # Bank SMS: book the amount after 消费 as dining
  ledger rules add --name 招行消费 --channel SMS --keywords 招商银行,消费 \
    --pattern '消费(\d+\.?\d*)元' --category 1 --method 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var e rulefile.Entry
			applyRuleFlags(cmd, &e)
			if e.Type == "" {
				e.Type = string(model.TransactionExpense)
			}
			return saveRule(cmd, e, 0)
		},
	}
	ruleFlags(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func editRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a rule",
		Long:  `Change the fields given as flags; everything else is kept.`,
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
			current, err := store.GetRule(cmd.Context(), id)
			_ = store.Close()
			if err != nil {
				return err
			}

			e := rulefile.FromRules([]model.Rule{*current}).Rules[0]
			applyRuleFlags(cmd, &e)
			return saveRule(cmd, e, id)
		},
	}
	ruleFlags(cmd)
	return cmd
}

func saveRule(cmd *cobra.Command, e rulefile.Entry, id int64) error {
	rule, err := e.Rule(rules.NewMatcher())
	if err != nil {
		return err
	}
	if err := validateGroups(rule); err != nil {
		return err
	}
	rule.ID = id

	store, _, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if id != 0 {
		existing, err := store.GetRule(cmd.Context(), id)
		if err != nil {
			return err
		}
		rule.CreatedAt = existing.CreatedAt
	}
	saved, err := store.UpsertRule(cmd.Context(), &rule)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Saved rule #%d %s", saved, rule.Name)))
	return nil
}

func setRuleEnabledCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a rule",
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
			defer func() { _ = store.Close() }()

			if err := store.SetRuleEnabled(cmd.Context(), id, enabled); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule #%d %sd", id, use)))
			return nil
		},
	}
}

func testRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <message>",
		Short: "Show which rule a message would match",
		Long: `Run a message through the stored rules without booking anything.
With --pattern, only check whether a regular expression matches the message.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			out := cmd.OutOrStdout()
			flags := cmd.Flags()
			pattern, _ := flags.GetString("pattern")
			channel, _ := flags.GetString("channel")
			methodID, _ := flags.GetInt64("method")
			cardID, _ := flags.GetInt64("card")
			showOrder, _ := flags.GetBool("order")

			if pattern != "" {
				ok, err := common.MatchRegex(pattern, text)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, cli.FormatWarning("Pattern does not match"))
					return nil
				}
				amount, found := rules.NewMatcher().ParseAmount(model.Rule{Pattern: pattern}, text)
				if found {
					fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Pattern matches, amount %s", formatMoney(amount))))
				} else {
					fmt.Fprintln(out, cli.FormatWarning("Pattern matches but no amount was extracted"))
				}
				return nil
			}

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleSet, err := store.ListRules(cmd.Context())
			if err != nil {
				return err
			}
			q := rules.Query{Text: text, Channel: channel, MethodID: optionalID(methodID), CardID: optionalID(cardID)}
			if showOrder {
				fmt.Fprintln(out, cli.HeaderStyle.Render("Evaluation order"))
				for i, r := range rules.Rank(ruleSet, q) {
					fmt.Fprintf(out, "  %d. #%d %s (%s, priority %d)\n", i+1, r.ID, r.Name,
						rules.TierOf(r, q.CardID, q.MethodID, q.Channel), r.Priority)
				}
			}
			result := rules.NewMatcher().Evaluate(enabledRules(ruleSet), q)
			if !result.Matched() {
				fmt.Fprintln(out, cli.FormatWarning("No rule matches; the message would wait in the inbox"))
				return nil
			}

			r := result.Rule
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Matches rule #%d %s (%s)", r.ID, r.Name,
				rules.TierOf(*r, q.CardID, q.MethodID, q.Channel))))
			if result.Amount != nil {
				fmt.Fprintf(out, "  amount: %s\n", formatMoney(*result.Amount))
			} else {
				fmt.Fprintln(out, cli.FormatWarning("No amount extracted; the message would wait in the inbox"))
			}
			if result.Date != "" {
				fmt.Fprintf(out, "  date:   %s\n", result.Date)
			}
			return nil
		},
	}
	cmd.Flags().String("pattern", "", "only test this regular expression")
	cmd.Flags().String("channel", model.SourceSMS, "channel the message came from")
	cmd.Flags().Int64("method", 0, "payment method id known for the message")
	cmd.Flags().Int64("card", 0, "card id known for the message")
	cmd.Flags().Bool("order", false, "list enabled rules in the order they are tried")
	return cmd
}

func enabledRules(ruleSet []model.Rule) []model.Rule {
	out := make([]model.Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

func importRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import rules from a YAML file",
		Long: `Import rules from a YAML document. A rule whose name already exists is
updated; others are created. With --replace, stored rules the file does not name
are disabled, after an automatic backup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replace, _ := cmd.Flags().GetBool("replace")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			f, err := readRuleFile(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if replace && !dryRun {
				autoBackup(cmd, store, "rules-import")
			}

			result, err := rulefile.Import(cmd.Context(), store, f, rulefile.ImportOptions{Replace: replace, DryRun: dryRun})
			if err != nil {
				return err
			}
			prefix := ""
			if dryRun {
				prefix = "[dry run] "
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%sCreated %d, updated %d, disabled %d rules",
				prefix, result.Created, result.Updated, result.Disabled)))
			return nil
		},
	}
	cmd.Flags().Bool("replace", false, "disable stored rules missing from the file")
	cmd.Flags().Bool("dry-run", false, "validate and report without saving")
	return cmd
}

func readRuleFile(path string, stdin io.Reader) (rulefile.File, error) {
	reader, closeReader, err := openInput(path, stdin)
	if err != nil {
		return rulefile.File{}, err
	}
	defer closeReader()
	return rulefile.Decode(reader)
}

func exportRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export rules as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleSet, err := store.ListRules(cmd.Context())
			if err != nil {
				return err
			}

			if path == "" || path == "-" {
				return rulefile.Encode(cmd.OutOrStdout(), ruleSet)
			}
			f, err := os.Create(path) // #nosec G304 -- user-provided export path
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			if err := rulefile.Encode(f, ruleSet); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d rules to %s", len(ruleSet), path)))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "write to this file instead of stdout")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func typeLabel(t model.TransactionType) string {
	if t == model.TransactionIncome {
		return "收入"
	}
	return "支出"
}

func enabledLabel(enabled bool) string {
	if enabled {
		return cli.SuccessStyle.Render("enabled")
	}
	return cli.SubtleStyle.Render("disabled")
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
