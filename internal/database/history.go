package database

import (
	"context"
	"fmt"

	"delayed-pool-go/internal/models"

	"github.com/shopspring/decimal"
)

// GetHistory returns records in insertion order. A non-positive limit means no limit.
func (q *queries) GetHistory(ctx context.Context, offset, limit int) ([]models.HistoryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := q.q.QueryContext(ctx, queryGetHistory, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer closeRows(rows)

	var records []models.HistoryRecord
	for rows.Next() {
		var (
			record    models.HistoryRecord
			kind      string
			amountStr string
			feeRate   int64
			timestamp int64
		)
		err := rows.Scan(&record.Seq, &record.Id, &kind, &record.Account, &amountStr,
			&feeRate, &record.Status, &record.Reference, &timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}

		record.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse history amount '%s': %w", amountStr, err)
		}
		record.Kind = models.HistoryKind(kind)
		record.FeeRateBps = uint16(feeRate)
		record.Timestamp = fromUnixNanos(timestamp)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return records, nil
}

func (q *queries) HistoryLength(ctx context.Context) (uint64, error) {
	count, err := q.queryCount(ctx, queryHistoryLength)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

func (t *txQueries) AppendHistory(ctx context.Context, record *models.HistoryRecord) error {
	result, err := t.q.ExecContext(ctx, queryAppendHistory,
		record.Id,
		string(record.Kind),
		record.Account,
		record.Amount.String(),
		int64(record.FeeRateBps),
		record.Status,
		record.Reference,
		toUnixNanos(record.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read history sequence: %w", err)
	}
	record.Seq = uint64(seq)
	return nil
}
