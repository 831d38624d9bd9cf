package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/smartledger/internal/cli"
	"github.com/Veraticus/smartledger/internal/storage"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage database backups",
		Long: `Create, list, restore, and delete snapshots of the ledger database.

Backups are also taken automatically before migrations and before
replacing the rule set.`,
		Example: `  ledger backup create --tag before-cleanup
  ledger backup list
  ledger backup restore before-cleanup`,
	}

	cmd.AddCommand(createBackupCmd())
	cmd.AddCommand(listBackupsCmd())
	cmd.AddCommand(restoreBackupCmd())
	cmd.AddCommand(deleteBackupCmd())
	return cmd
}

func openBackups(cmd *cobra.Command) (*storage.SQLiteStorage, *storage.BackupManager, error) {
	store, _, err := initStorage(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	manager, err := store.NewBackupManager()
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to open backups: %w", err)
	}
	return store, manager, nil
}

// autoBackup snapshots the database before a destructive operation. A failed
// snapshot is logged and does not stop the operation.
func autoBackup(cmd *cobra.Command, store *storage.SQLiteStorage, operation string) {
	manager, err := store.NewBackupManager()
	if err == nil {
		var info *storage.BackupInfo
		info, err = manager.Auto(cmd.Context(), operation)
		if err == nil {
			slog.Info("created automatic backup", "id", info.ID, "operation", operation)
			return
		}
	}
	if errors.Is(err, storage.ErrInMemoryBackup) {
		slog.Debug("skipping automatic backup", "operation", operation, "error", err)
		return
	}
	slog.Warn("automatic backup failed", "operation", operation, "error", err)
}

func createBackupCmd() *cobra.Command {
	var tag, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, manager, err := openBackups(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			info, err := manager.Create(cmd.Context(), tag, description)
			if err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s 已创建备份 %s (%s)\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(info.ID),
				formatFileSize(info.FileSize))
			if info.Description != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", info.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "backup name (timestamped if empty)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description of the backup")
	return cmd
}

func listBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, manager, err := openBackups(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			backups, err := manager.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("暂无备份"))
				return nil
			}

			rows := make([][]string, 0, len(backups))
			for _, b := range backups {
				kind := "manual"
				if b.IsAuto {
					kind = "auto"
				}
				rows = append(rows, []string{
					b.ID,
					formatRelativeTime(b.CreatedAt),
					formatFileSize(b.FileSize),
					strconv.Itoa(b.RowCounts["transactions"]),
					strconv.Itoa(b.RowCounts["rules"]),
					strconv.Itoa(b.SchemaVersion),
					kind,
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "CREATED", "SIZE", "TRANSACTIONS", "RULES", "SCHEMA", "TYPE"}, rows)
			return nil
		},
	}
}

func restoreBackupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Replace the database with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			store, manager, err := openBackups(cmd)
			if err != nil {
				return err
			}
			closed := false
			defer func() {
				if !closed {
					_ = store.Close()
				}
			}()

			info, err := findBackup(cmd, manager, id)
			if err != nil {
				return err
			}
			if !force && !confirm(cmd, fmt.Sprintf("将用备份 %s (%s) 覆盖当前数据库，继续吗? (y/N) ",
				id, info.CreatedAt.Local().Format("2006-01-02 15:04"))) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("已取消"))
				return nil
			}

			// Restore closes the storage itself.
			closed = true
			if err := manager.Restore(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to restore backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s 已从备份 %s 恢复\n",
				cli.SuccessStyle.Render(cli.SuccessIcon), cli.InfoStyle.Render(id))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}

func deleteBackupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <backup-id>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			store, manager, err := openBackups(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if _, err := findBackup(cmd, manager, id); err != nil {
				return err
			}
			if !force && !confirm(cmd, fmt.Sprintf("删除备份 %s? (y/N) ", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("已取消"))
				return nil
			}
			if err := manager.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s 已删除备份 %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon), cli.InfoStyle.Render(id))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}

func findBackup(cmd *cobra.Command, manager *storage.BackupManager, id string) (storage.BackupInfo, error) {
	backups, err := manager.List(cmd.Context())
	if err != nil {
		return storage.BackupInfo{}, fmt.Errorf("failed to list backups: %w", err)
	}
	for _, b := range backups {
		if b.ID == id {
			return b, nil
		}
	}
	return storage.BackupInfo{}, fmt.Errorf("%w: %s", storage.ErrBackupNotFound, id)
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), cli.WarningStyle.Render(cli.WarningIcon)+" "+prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}
