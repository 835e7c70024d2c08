package database

import (
	"context"
	"database/sql"
	"fmt"

	"delayed-pool-go/internal/store"

	"go.uber.org/zap"
)

// queries implements store.Reader over either the pool or an open transaction
type queries struct {
	q execer
}

// txQueries adds the write side. It is only ever built around a *sql.Tx.
type txQueries struct {
	queries
}

var (
	_ store.Reader = (*queries)(nil)
	_ store.Tx     = (*txQueries)(nil)
)

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

// expectOneRow maps a guarded UPDATE that matched nothing to ErrConcurrentModification
func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for %s: %w", what, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrConcurrentModification)
	}
	return nil
}

func (q *queries) queryCount(ctx context.Context, query string, args ...any) (uint64, error) {
	var count int64
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return uint64(count), nil
}
