/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.PoolStore.
var _ store.PoolStore = (*Service)(nil)

// execer is the subset shared by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Service struct {
	*queries
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	// _txlock=immediate takes the write lock at BEGIN so two writers never
	// interleave a read-modify-write of pool_state.
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_txlock=immediate&_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newService(db)
	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newService(db *sql.DB) *Service {
	return &Service{queries: &queries{q: db}, db: db}
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// RunInTx executes fn inside one transaction. Reads made through the
// supplied Tx observe the writes made earlier in the same fn.
func (s *Service) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			zap.L().Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(&txQueries{queries: queries{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	-- Deposits carry no reference to the funding account
	CREATE TABLE IF NOT EXISTS deposits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		amount TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'scheduled'))
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_status ON deposits(status);

	-- Scheduled payouts
	CREATE TABLE IF NOT EXISTS queue_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_deposit_id INTEGER NOT NULL REFERENCES deposits(id),
		recipient TEXT NOT NULL,
		amount TEXT NOT NULL,
		fee_rate_bps INTEGER NOT NULL,
		ready_at INTEGER NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('waiting', 'processing', 'completed', 'failed')),
		transfer_ref TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		settled_at INTEGER NOT NULL DEFAULT 0
	);

	-- Readiness scans walk (state, ready_at)
	CREATE INDEX IF NOT EXISTS idx_queue_items_state_ready ON queue_items(state, ready_at);
	CREATE INDEX IF NOT EXISTS idx_queue_items_deposit ON queue_items(source_deposit_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_items_transfer_ref ON queue_items(transfer_ref) WHERE transfer_ref != '';

	-- Append-only audit trail
	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		account TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		fee_rate_bps INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);

	CREATE TRIGGER IF NOT EXISTS history_no_update BEFORE UPDATE ON history
	BEGIN
		SELECT RAISE(ABORT, 'history is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS history_no_delete BEFORE DELETE ON history
	BEGIN
		SELECT RAISE(ABORT, 'history is append-only');
	END;

	-- Queue-bypassing administrator withdrawals
	CREATE TABLE IF NOT EXISTS emergency_transfers (
		reference TEXT PRIMARY KEY,
		recipient TEXT NOT NULL,
		amount TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('pending', 'completed', 'failed')),
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		settled_at INTEGER NOT NULL DEFAULT 0
	);

	-- Pooled balance and cached aggregates, single row
	CREATE TABLE IF NOT EXISTS pool_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		balance TEXT NOT NULL DEFAULT '0',
		pending_amount TEXT NOT NULL DEFAULT '0',
		retained_fees TEXT NOT NULL DEFAULT '0',
		total_deposited TEXT NOT NULL DEFAULT '0',
		total_withdrawn TEXT NOT NULL DEFAULT '0',
		queue_size INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		completed_count INTEGER NOT NULL DEFAULT 0,
		last_processed_at INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO pool_state (id) VALUES (1);

	CREATE TABLE IF NOT EXISTS parameters (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		min_fee_rate_bps INTEGER NOT NULL,
		max_fee_rate_bps INTEGER NOT NULL,
		current_fee_rate_bps INTEGER NOT NULL,
		min_delay INTEGER NOT NULL,
		max_delay INTEGER NOT NULL,
		min_deposit TEXT NOT NULL,
		max_deposit TEXT NOT NULL,
		min_withdraw TEXT NOT NULL,
		operational_reserve TEXT NOT NULL,
		withdrawal_timeout INTEGER NOT NULL,
		max_queue_size INTEGER NOT NULL,
		max_parts_per_split INTEGER NOT NULL,
		admin_id TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS blacklist (
		account TEXT PRIMARY KEY,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS oracle (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		rate TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Timestamps are stored as unix nanoseconds, 0 meaning unset.
func toUnixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
