// The MIT License
//
// Copyright (c) 2022 Temporal Technologies Inc.  All rights reserved.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package internal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteStore is the durable Store shipped with the library. Bindings and
// checkpoints must survive process restarts because executions can run for
// months; a single-file SQLite database in WAL mode covers single-host
// deployments without external infrastructure.
type sqliteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed Store at path.
// Use ":memory:" for a throwaway database in tests.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time; a larger pool only produces
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	s := &sqliteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS execution_bindings (
			execution_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			version TEXT NOT NULL,
			major INTEGER NOT NULL,
			minor INTEGER NOT NULL,
			class INTEGER NOT NULL,
			bound_at TEXT NOT NULL,
			UNIQUE(execution_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_execution ON execution_bindings(execution_id)`,
		`CREATE TABLE IF NOT EXISTS execution_status (
			execution_id TEXT NOT NULL PRIMARY KEY,
			closed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS task_queue_versions (
			queue TEXT NOT NULL,
			version TEXT NOT NULL,
			major INTEGER NOT NULL,
			minor INTEGER NOT NULL,
			first_seen TEXT NOT NULL,
			UNIQUE(queue, major, minor)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_versions_queue ON task_queue_versions(queue)`,
		`CREATE TABLE IF NOT EXISTS replay_checkpoints (
			execution_id TEXT NOT NULL PRIMARY KEY,
			last_verified_index INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *sqliteStore) CreateBinding(ctx context.Context, binding *ExecutionVersionBinding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM execution_status WHERE execution_id = ?`, binding.ExecutionID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to check binding existence: %w", err)
	}
	if existing > 0 {
		err = ErrBindingExists
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO execution_status (execution_id, closed) VALUES (?, 0)`, binding.ExecutionID); err != nil {
		return fmt.Errorf("failed to insert execution status: %w", err)
	}
	for seq, entry := range binding.Entries {
		if err = insertBindingEntry(ctx, tx, binding.ExecutionID, seq, entry); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit binding: %w", err)
	}
	return nil
}

func insertBindingEntry(ctx context.Context, tx *sql.Tx, executionID string, seq int, entry BindingEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO execution_bindings (execution_id, seq, version, major, minor, class, bound_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		executionID, seq, entry.Version.Original, entry.Version.Major, entry.Version.Minor,
		int32(entry.Class), entry.BoundAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert binding entry: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetBinding(ctx context.Context, executionID string) (*ExecutionVersionBinding, error) {
	var closed int
	err := s.db.QueryRowContext(ctx,
		`SELECT closed FROM execution_status WHERE execution_id = ?`, executionID).Scan(&closed)
	if err == sql.ErrNoRows {
		return nil, ErrBindingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load execution status: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT version, major, minor, class, bound_at
		 FROM execution_bindings WHERE execution_id = ? ORDER BY seq ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load binding entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	binding := &ExecutionVersionBinding{ExecutionID: executionID, Closed: closed != 0}
	for rows.Next() {
		var (
			entry   BindingEntry
			class   int32
			boundAt string
		)
		if err := rows.Scan(&entry.Version.Original, &entry.Version.Major, &entry.Version.Minor, &class, &boundAt); err != nil {
			return nil, fmt.Errorf("failed to scan binding entry: %w", err)
		}
		entry.Class = CompatibilityClass(class)
		if entry.BoundAt, err = time.Parse(time.RFC3339Nano, boundAt); err != nil {
			return nil, fmt.Errorf("failed to parse bound_at: %w", err)
		}
		binding.Entries = append(binding.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate binding entries: %w", err)
	}
	if len(binding.Entries) == 0 {
		return nil, ErrBindingNotFound
	}
	return binding, nil
}

func (s *sqliteStore) AppendBindingEntry(ctx context.Context, executionID string, entry BindingEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM execution_bindings WHERE execution_id = ?`, executionID).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to count binding entries: %w", err)
	}
	if next == 0 {
		err = ErrBindingNotFound
		return err
	}
	if err = insertBindingEntry(ctx, tx, executionID, next, entry); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit binding entry: %w", err)
	}
	return nil
}

func (s *sqliteStore) CloseBinding(ctx context.Context, executionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE execution_status SET closed = 1 WHERE execution_id = ?`, executionID)
	if err != nil {
		return fmt.Errorf("failed to close binding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrBindingNotFound
	}
	return nil
}

func (s *sqliteStore) RecordQueueVersion(ctx context.Context, queue string, version WorkerVersion, firstSeen time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_queue_versions (queue, version, major, minor, first_seen)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(queue, major, minor) DO NOTHING`,
		queue, version.Original, version.Major, version.Minor, firstSeen.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record queue version: %w", err)
	}
	return nil
}

func (s *sqliteStore) ListQueueVersions(ctx context.Context, queue string) ([]WorkerVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, major, minor FROM task_queue_versions
		 WHERE queue = ? ORDER BY major ASC, minor ASC`, queue)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []WorkerVersion
	for rows.Next() {
		var v WorkerVersion
		if err := rows.Scan(&v.Original, &v.Major, &v.Minor); err != nil {
			return nil, fmt.Errorf("failed to scan queue version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue versions: %w", err)
	}
	return versions, nil
}

func (s *sqliteStore) GetCheckpoint(ctx context.Context, executionID string) (int64, error) {
	var index int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_verified_index FROM replay_checkpoints WHERE execution_id = ?`, executionID).Scan(&index)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return index, nil
}

func (s *sqliteStore) CompareAndSetCheckpoint(ctx context.Context, executionID string, old, new int64) (bool, error) {
	if old == 0 {
		// First commit for this execution races on row creation, not value.
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO replay_checkpoints (execution_id, last_verified_index)
			 VALUES (?, ?)
			 ON CONFLICT(execution_id) DO UPDATE SET last_verified_index = excluded.last_verified_index
			 WHERE last_verified_index = 0`,
			executionID, new)
		if err != nil {
			return false, fmt.Errorf("failed to commit checkpoint: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read rows affected: %w", err)
		}
		return affected > 0, nil
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE replay_checkpoints SET last_verified_index = ?
		 WHERE execution_id = ? AND last_verified_index = ?`,
		new, executionID, old)
	if err != nil {
		return false, fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
