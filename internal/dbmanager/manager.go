// Package dbmanager promotes freshly built documentation databases into
// the active path.
//
// The swap protocol never leaves the active path without a usable
// database: candidates are verified before anything moves, the previous
// active file is kept as a timestamped backup, and a failed promotion
// restores the backup. Renames are atomic because candidate, active, and
// backup all live on the same filesystem.
package dbmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dshills/docfind-mcp/internal/storage"
)

const (
	// DefaultBackupKeep is how many timestamped backups survive pruning
	DefaultBackupKeep = 1

	// backupTimestampLayout orders backups lexically by recency
	backupTimestampLayout = "20060102-150405"
)

var (
	// ErrCandidateInvalid means the candidate failed verification and the
	// active database was left untouched.
	ErrCandidateInvalid = errors.New("candidate database failed verification")
)

// Manager owns the active database path and its backups.
type Manager struct {
	activePath string
	backupKeep int
	log        *slog.Logger
}

// New creates a Manager for activePath. backupKeep <= 0 selects the
// default retention of one backup.
func New(activePath string, backupKeep int, log *slog.Logger) *Manager {
	if backupKeep <= 0 {
		backupKeep = DefaultBackupKeep
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{activePath: activePath, backupKeep: backupKeep, log: log}
}

// ActivePath returns the path the manager promotes into.
func (m *Manager) ActivePath() string {
	return m.activePath
}

// VerifyDatabase checks that the file at path is a structurally sound
// documentation database: PRAGMA integrity_check passes and every
// required table exists.
func (m *Manager) VerifyDatabase(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %v", ErrCandidateInvalid, err)
	}

	db, err := sql.Open(storage.DriverName, path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCandidateInvalid, err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: integrity check failed: %v", ErrCandidateInvalid, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: integrity check reported %q", ErrCandidateInvalid, result)
	}

	for _, table := range storage.RequiredTables {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: missing table %q", ErrCandidateInvalid, table)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCandidateInvalid, err)
		}
	}

	return nil
}

// SwapDatabase atomically promotes the candidate into the active path.
//
//  1. Verify the candidate; a bad candidate never touches the active file.
//  2. Rename the current active file to a timestamped backup.
//  3. Rename the candidate into the active path.
//  4. Prune old backups down to the retention count.
//
// If the promote rename fails, the backup is restored. A restore failure
// on top of a promote failure returns both, joined.
func (m *Manager) SwapDatabase(ctx context.Context, candidatePath string) error {
	if err := m.VerifyDatabase(ctx, candidatePath); err != nil {
		return err
	}

	var backupPath string
	if _, err := os.Stat(m.activePath); err == nil {
		backupPath = fmt.Sprintf("%s.backup-%s", m.activePath, time.Now().Format(backupTimestampLayout))
		if err := os.Rename(m.activePath, backupPath); err != nil {
			return fmt.Errorf("failed to back up active database: %w", err)
		}
		m.log.Info("backed up active database", "backup", backupPath)
	}

	if err := os.Rename(candidatePath, m.activePath); err != nil {
		promoteErr := fmt.Errorf("failed to promote candidate: %w", err)
		if backupPath == "" {
			return promoteErr
		}

		if restoreErr := os.Rename(backupPath, m.activePath); restoreErr != nil {
			return errors.Join(
				promoteErr,
				fmt.Errorf("rollback failed, active database missing: %w", restoreErr),
			)
		}
		m.log.Warn("promotion failed, backup restored", "error", err)
		return promoteErr
	}

	m.log.Info("promoted candidate database", "active", m.activePath)

	if err := m.pruneBackups(); err != nil {
		// Retention is best effort; the swap itself succeeded.
		m.log.Warn("failed to prune backups", "error", err)
	}
	return nil
}

// CleanupStaleDatabases removes leftover candidate files from interrupted
// builds and backups beyond the retention count.
func (m *Manager) CleanupStaleDatabases() error {
	for _, suffix := range []string{".new", ".new-wal", ".new-shm"} {
		stale := m.activePath + suffix
		if err := os.Remove(stale); err == nil {
			m.log.Info("removed stale candidate file", "path", stale)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", stale, err)
		}
	}
	return m.pruneBackups()
}

// pruneBackups keeps the newest backupKeep backups and removes the rest.
func (m *Manager) pruneBackups() error {
	backups, err := m.listBackups()
	if err != nil {
		return err
	}
	if len(backups) <= m.backupKeep {
		return nil
	}

	for _, path := range backups[m.backupKeep:] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove backup %s: %w", path, err)
		}
		m.log.Info("pruned old backup", "path", path)
	}
	return nil
}

// listBackups returns backup paths sorted newest first. The timestamp
// suffix sorts lexically, so a plain string sort suffices.
func (m *Manager) listBackups() ([]string, error) {
	pattern := m.activePath + ".backup-*"
	backups, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}
