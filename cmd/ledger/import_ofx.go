package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/ofx"
	"github.com/Veraticus/smartledger/internal/rules"
	"github.com/Veraticus/smartledger/internal/storage"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX statements",
		Long: `Import bank or credit card statement lines, categorized by the rule set.

Lines already imported from the same account are skipped, so overlapping
statements can be imported safely.`,
		Example: `  ledger import-ofx ~/Downloads/statement.qfx --method 3
  ledger import-ofx ~/Downloads/*.qfx --card 2 --dry-run
  ledger import-ofx --list-accounts ~/Downloads/statement.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}
	cmd.Flags().BoolP("dry-run", "d", false, "preview without saving")
	cmd.Flags().Int64("method", 0, "record every line under this payment method")
	cmd.Flags().Int64("card", 0, "record every line under this card (implies its method)")
	cmd.Flags().String("account", "", "only import lines of this account id")
	cmd.Flags().Bool("list-accounts", false, "list the accounts in the files and exit")
	cmd.Flags().BoolP("verbose", "v", false, "list every imported line")
	return cmd
}

// expandFiles resolves glob patterns; a pattern without matches is kept when
// it names an existing file.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("no files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, errors.New("no files found to import")
	}
	return files, nil
}

func readStatement(parser *ofx.Parser, cmd *cobra.Command, path string) ([]ofx.Line, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied statement path
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return parser.ParseFile(cmd.Context(), f)
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	methodID, _ := cmd.Flags().GetInt64("method")
	cardID, _ := cmd.Flags().GetInt64("card")
	account, _ := cmd.Flags().GetString("account")
	listAccounts, _ := cmd.Flags().GetBool("list-accounts")
	verbose, _ := cmd.Flags().GetBool("verbose")
	out := cmd.OutOrStdout()

	files, err := expandFiles(args)
	if err != nil {
		return err
	}
	parser := ofx.NewParser()

	if listAccounts {
		for _, path := range files {
			f, err := os.Open(path) //nolint:gosec // user-supplied statement path
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			accounts, err := parser.GetAccounts(cmd.Context(), f)
			_ = f.Close()
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}
			fmt.Fprintf(out, "%s\n", cli.BoldStyle.Render(filepath.Base(path)))
			for _, a := range accounts {
				fmt.Fprintf(out, "  %s %s\n", cli.CardIcon, a)
			}
		}
		return nil
	}

	store, settings, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := ofx.ImportOptions{
		MethodID:          methodID,
		DefaultCategoryID: settings.DefaultCategoryID,
		DefaultMethodID:   settings.DefaultMethodID,
		DryRun:            dryRun,
	}
	if cardID != 0 {
		card, err := findCard(cmd, store, cardID)
		if err != nil {
			return err
		}
		opts.CardID = &card.ID
		opts.MethodID = card.MethodID
	}

	var lines []ofx.Line
	for _, path := range files {
		parsed, err := readStatement(parser, cmd, path)
		if err != nil {
			slog.Error("failed to parse statement", "file", path, "error", err)
			continue
		}
		kept := 0
		for _, l := range parsed {
			if account != "" && l.AccountID != account {
				continue
			}
			lines = append(lines, l)
			kept++
		}
		slog.Info("parsed statement", "file", filepath.Base(path), "lines", len(parsed), "kept", kept)
	}
	if len(lines) == 0 {
		fmt.Fprintln(out, cli.SubtitleStyle.Render("没有可导入的交易"))
		return nil
	}

	if !dryRun {
		autoBackup(cmd, store, "import-ofx")
	}
	result, err := ofx.NewImporter(store, rules.NewMatcher()).Import(cmd.Context(), lines, opts)
	if err != nil {
		return err
	}

	verb := "已导入"
	if dryRun {
		verb = "将导入"
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s %d 笔，规则命中 %d，重复 %d，跳过 %d",
		verb, result.Imported, result.Matched, result.Duplicates, result.Skipped)))

	if verbose || dryRun {
		categories, err := store.GetCategories(cmd.Context(), "")
		if err != nil {
			return err
		}
		names := categoryNames(categories)
		rows := make([][]string, 0, len(result.Transactions))
		for _, t := range result.Transactions {
			rows = append(rows, []string{
				t.OccurredAt.Format(dateLayout),
				typeLabel(t.Type),
				formatMoney(t.Amount),
				names[t.CategoryID],
				ruleLabel(t.MatchedRuleID),
				t.Note,
			})
		}
		printTable(out, []string{"DATE", "TYPE", "AMOUNT", "CATEGORY", "RULE", "NOTE"}, rows)
	}
	return nil
}

func findCard(cmd *cobra.Command, store *storage.SQLiteStorage, id int64) (model.Card, error) {
	cards, err := store.GetCards(cmd.Context(), 0)
	if err != nil {
		return model.Card{}, err
	}
	if i := slices.IndexFunc(cards, func(c model.Card) bool { return c.ID == id }); i >= 0 {
		return cards[i], nil
	}
	return model.Card{}, fmt.Errorf("%w: card %d", common.ErrNotFound, id)
}

func ruleLabel(id *int64) string {
	if id == nil {
		return "-"
	}
	return "#" + strconv.FormatInt(*id, 10)
}
