package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/tui/themes"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage transaction categories",
	}
	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	return cmd
}

func listCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			typArg, _ := cmd.Flags().GetString("type")
			var typ model.TransactionType
			if typArg != "" {
				parsed, err := model.ParseTransactionType(typArg)
				if err != nil {
					return err
				}
				typ = parsed
			}

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(cmd.Context(), typ)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(categories))
			for _, c := range categories {
				custom := ""
				if c.IsCustom {
					custom = "custom"
				}
				rows = append(rows, []string{
					strconv.FormatInt(c.ID, 10),
					themes.CategoryIcon(c.Icon) + " " + c.Name,
					typeLabel(c.Type),
					custom,
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "TYPE", ""}, rows)
			return nil
		},
	}
	cmd.Flags().String("type", "", "only this type (expense, income)")
	return cmd
}

func addCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typArg, _ := cmd.Flags().GetString("type")
			icon, _ := cmd.Flags().GetString("icon")

			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("category name must not be empty")
			}
			typ, err := model.ParseTransactionType(typArg)
			if err != nil {
				return err
			}

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id, err := store.SaveCategory(cmd.Context(), &model.Category{Name: name, Type: typ, Icon: icon, IsCustom: true})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added category #%d %s", id, name)))
			return nil
		},
	}
	cmd.Flags().String("type", "expense", "category type (expense, income)")
	cmd.Flags().String("icon", "", "emoji shown next to the name")
	return cmd
}
