package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Backup errors.
var (
	ErrBackupNotFound  = errors.New("backup not found")
	ErrBackupExists    = errors.New("backup already exists")
	ErrBackupCorrupted = errors.New("backup integrity check failed")
	ErrInMemoryBackup  = errors.New("in-memory databases cannot be backed up")
)

const maxAutoBackups = 5

// BackupInfo describes one stored snapshot of the database.
type BackupInfo struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// BackupManager snapshots the ledger database into a sibling backups directory.
type BackupManager struct {
	storage *SQLiteStorage
	dir     string
}

// NewBackupManager creates a manager for the storage's database file.
func (s *SQLiteStorage) NewBackupManager() (*BackupManager, error) {
	if s.dbPath == ":memory:" {
		return nil, ErrInMemoryBackup
	}
	absPath, err := filepath.Abs(s.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	dir := filepath.Join(filepath.Dir(absPath), "backups")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}
	return &BackupManager{storage: s, dir: dir}, nil
}

func validateBackupID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\'";`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid backup id %q", id)
	}
	return nil
}

// Create snapshots the database under tag. An empty tag gets a timestamped name.
func (bm *BackupManager) Create(ctx context.Context, tag, description string) (*BackupInfo, error) {
	if tag == "" {
		tag = fmt.Sprintf("backup-%s", time.Now().Format("2006-01-02-150405"))
	}
	if err := validateBackupID(tag); err != nil {
		return nil, err
	}

	dbFile := filepath.Join(bm.dir, tag+".db")
	if _, err := os.Stat(dbFile); err == nil {
		return nil, ErrBackupExists
	}

	version, err := bm.storage.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := bm.storage.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	// #nosec G201 - dbFile is built from a validated id
	if _, err := bm.storage.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dbFile)); err != nil {
		return nil, fmt.Errorf("failed to back up database: %w", err)
	}

	stat, err := os.Stat(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	info := BackupInfo{
		ID:            tag,
		CreatedAt:     time.Now(),
		Description:   description,
		FileSize:      stat.Size(),
		RowCounts:     bm.rowCounts(ctx),
		SchemaVersion: version,
	}
	if err := bm.saveInfo(info); err != nil {
		if rmErr := os.Remove(dbFile); rmErr != nil {
			slog.Error("failed to remove backup after metadata save failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save backup metadata: %w", err)
	}
	return &info, nil
}

// Auto creates a backup before a destructive operation and prunes old
// automatic backups.
func (bm *BackupManager) Auto(ctx context.Context, operation string) (*BackupInfo, error) {
	tag := fmt.Sprintf("auto-%s-%s", operation, time.Now().Format("2006-01-02-150405.000"))
	info, err := bm.Create(ctx, tag, fmt.Sprintf("Automatic backup before %s", operation))
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic backup: %w", err)
	}
	info.IsAuto = true
	if err := bm.saveInfo(*info); err != nil {
		slog.Warn("failed to mark backup as automatic", "id", tag, "error", err)
	}

	backups, err := bm.List(ctx)
	if err != nil {
		slog.Warn("failed to list backups for pruning", "error", err)
		return info, nil
	}
	autoCount := 0
	for _, b := range backups {
		if !b.IsAuto {
			continue
		}
		autoCount++
		if autoCount > maxAutoBackups {
			if err := bm.Delete(ctx, b.ID); err != nil {
				slog.Debug("failed to prune automatic backup", "id", b.ID, "error", err)
			}
		}
	}
	return info, nil
}

// List returns stored backups, newest first.
func (bm *BackupManager) List(_ context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(bm.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		info, err := bm.loadInfo(strings.TrimSuffix(entry.Name(), ".meta.json"))
		if err != nil {
			continue
		}
		backups = append(backups, *info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Restore replaces the live database file with a backup. The storage is
// closed first and must be reopened by the caller.
func (bm *BackupManager) Restore(_ context.Context, id string) error {
	if err := validateBackupID(id); err != nil {
		return err
	}
	dbFile := filepath.Join(bm.dir, id+".db")
	if _, err := os.Stat(dbFile); err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("failed to access backup: %w", err)
	}
	if err := verifyIntegrity(dbFile); err != nil {
		return fmt.Errorf("%w: %w", ErrBackupCorrupted, err)
	}

	if err := bm.storage.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	// Stale WAL files would otherwise be replayed over the restored copy.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(bm.storage.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s file: %w", suffix, err)
		}
	}
	return copyFile(dbFile, bm.storage.dbPath)
}

// Delete removes a backup and its metadata.
func (bm *BackupManager) Delete(_ context.Context, id string) error {
	if err := validateBackupID(id); err != nil {
		return err
	}
	dbFile := filepath.Join(bm.dir, id+".db")
	if err := os.Remove(dbFile); err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	if err := os.Remove(filepath.Join(bm.dir, id+".meta.json")); err != nil {
		slog.Debug("failed to remove backup metadata", "id", id, "error", err)
	}
	return nil
}

func (bm *BackupManager) rowCounts(ctx context.Context) map[string]int {
	queries := map[string]string{
		"transactions": "SELECT COUNT(*) FROM transactions",
		"rules":        "SELECT COUNT(*) FROM rules",
		"categories":   "SELECT COUNT(*) FROM categories",
		"methods":      "SELECT COUNT(*) FROM methods",
		"budgets":      "SELECT COUNT(*) FROM budgets",
	}
	counts := make(map[string]int, len(queries))
	for table, query := range queries {
		var n int
		if err := bm.storage.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			slog.Debug("failed to count rows", "table", table, "error", err)
		}
		counts[table] = n
	}
	return counts
}

func (bm *BackupManager) saveInfo(info BackupInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(bm.dir, info.ID+".meta.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (bm *BackupManager) loadInfo(id string) (*BackupInfo, error) {
	// #nosec G304 - id comes from the backups directory listing
	data, err := os.ReadFile(filepath.Join(bm.dir, id+".meta.json"))
	if err != nil {
		return nil, err
	}
	var info BackupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func verifyIntegrity(path string) error {
	db, err := openRaw(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func copyFile(src, dst string) error {
	// #nosec G304 - src is a validated backup path
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	tmp := dst + ".tmp"
	// #nosec G304 - dst is the configured database path
	destination, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := destination.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
