package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (*models.QueueItem, error) {
	var (
		item                          models.QueueItem
		amountStr, state              string
		feeRate                       int64
		readyAt, createdAt, settledAt int64
	)
	err := row.Scan(&item.Id, &item.SourceDepositId, &item.Recipient, &amountStr, &feeRate, &readyAt,
		&state, &item.TransferRef, &item.FailureReason, &createdAt, &settledAt)
	if err != nil {
		return nil, err
	}

	item.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse queue item amount '%s': %w", amountStr, err)
	}
	item.FeeRateBps = uint16(feeRate)
	item.State = models.QueueItemState(state)
	item.ReadyAt = fromUnixNanos(readyAt)
	item.CreatedAt = fromUnixNanos(createdAt)
	item.SettledAt = fromUnixNanos(settledAt)
	return &item, nil
}

func (q *queries) GetQueueItem(ctx context.Context, id uint64) (*models.QueueItem, error) {
	item, err := scanQueueItem(q.q.QueryRowContext(ctx, queryGetQueueItem, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue item %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return item, nil
}

func (q *queries) FindQueueItemByTransferRef(ctx context.Context, ref string) (*models.QueueItem, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty transfer reference: %w", store.ErrNotFound)
	}
	item, err := scanQueueItem(q.q.QueryRowContext(ctx, queryFindQueueItemByTransferRef, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transfer %s: %w", ref, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find queue item by transfer ref: %w", err)
	}
	return item, nil
}

func (q *queries) NextReadyItemId(ctx context.Context, now time.Time) (uint64, bool, error) {
	var id uint64
	err := q.q.QueryRowContext(ctx, queryNextReadyItem, now.UnixNano()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find next ready item: %w", err)
	}
	return id, true, nil
}

func (q *queries) CountReadyItems(ctx context.Context, now time.Time) (uint64, error) {
	count, err := q.queryCount(ctx, queryCountReadyItems, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to count ready items: %w", err)
	}
	return count, nil
}

func (q *queries) ListQueueItems(ctx context.Context, filter store.QueueFilter) ([]models.QueueItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	state := string(filter.State)

	rows, err := q.q.QueryContext(ctx, queryListQueueItems, state, state, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer closeRows(rows)

	var items []models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue item rows: %w", err)
	}
	return items, nil
}

// SumActiveItems adds up waiting and processing amounts in decimal, not in SQL,
// so large integer amounts never pass through floating point.
func (q *queries) SumActiveItems(ctx context.Context) (decimal.Decimal, uint64, error) {
	rows, err := q.q.QueryContext(ctx, queryActiveItemAmounts)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to sum active items: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	var count uint64
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, 0, fmt.Errorf("failed to scan active item amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("failed to parse active item amount '%s': %w", amountStr, err)
		}
		total = total.Add(amount)
		count++
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, 0, fmt.Errorf("error iterating active item rows: %w", err)
	}
	return total, count, nil
}

func (t *txQueries) InsertQueueItem(ctx context.Context, item *models.QueueItem) (uint64, error) {
	result, err := t.q.ExecContext(ctx, queryInsertQueueItem,
		item.SourceDepositId,
		item.Recipient,
		item.Amount.String(),
		int64(item.FeeRateBps),
		toUnixNanos(item.ReadyAt),
		string(item.State),
		item.TransferRef,
		item.FailureReason,
		toUnixNanos(item.CreatedAt),
		toUnixNanos(item.SettledAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert queue item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue item id: %w", err)
	}

	zap.L().Debug("Queue item inserted",
		zap.Int64("item_id", id),
		zap.Time("ready_at", item.ReadyAt))
	return uint64(id), nil
}

// UpdateQueueItem writes the mutable settlement columns, guarded by the state
// the caller read. A mismatch means another writer moved the item first.
func (t *txQueries) UpdateQueueItem(ctx context.Context, item *models.QueueItem, from models.QueueItemState) error {
	result, err := t.q.ExecContext(ctx, queryUpdateQueueItem,
		string(item.State),
		item.TransferRef,
		item.FailureReason,
		toUnixNanos(item.SettledAt),
		item.Id,
		string(from))
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	return expectOneRow(result, fmt.Sprintf("queue item %d %s -> %s", item.Id, from, item.State))
}
