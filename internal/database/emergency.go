package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/shopspring/decimal"
)

func scanEmergencyTransfer(row rowScanner) (*models.EmergencyTransfer, error) {
	var (
		transfer             models.EmergencyTransfer
		amountStr, state     string
		createdAt, settledAt int64
	)
	err := row.Scan(&transfer.Reference, &transfer.Recipient, &amountStr, &state,
		&transfer.Reason, &createdAt, &settledAt)
	if err != nil {
		return nil, err
	}

	transfer.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse emergency transfer amount '%s': %w", amountStr, err)
	}
	transfer.State = models.EmergencyState(state)
	transfer.CreatedAt = fromUnixNanos(createdAt)
	transfer.SettledAt = fromUnixNanos(settledAt)
	return &transfer, nil
}

func (q *queries) GetEmergencyTransfer(ctx context.Context, ref string) (*models.EmergencyTransfer, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty transfer reference: %w", store.ErrNotFound)
	}
	transfer, err := scanEmergencyTransfer(q.q.QueryRowContext(ctx, queryGetEmergencyTransfer, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("emergency transfer %s: %w", ref, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get emergency transfer: %w", err)
	}
	return transfer, nil
}

func (q *queries) ListEmergencyTransfers(ctx context.Context, state models.EmergencyState) ([]models.EmergencyTransfer, error) {
	rows, err := q.q.QueryContext(ctx, queryListEmergencyTransfers, string(state), string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to list emergency transfers: %w", err)
	}
	defer closeRows(rows)

	var transfers []models.EmergencyTransfer
	for rows.Next() {
		transfer, err := scanEmergencyTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan emergency transfer: %w", err)
		}
		transfers = append(transfers, *transfer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emergency transfer rows: %w", err)
	}
	return transfers, nil
}

func (t *txQueries) InsertEmergencyTransfer(ctx context.Context, transfer *models.EmergencyTransfer) error {
	_, err := t.q.ExecContext(ctx, queryInsertEmergencyTransfer,
		transfer.Reference,
		transfer.Recipient,
		transfer.Amount.String(),
		string(transfer.State),
		transfer.Reason,
		toUnixNanos(transfer.CreatedAt),
		toUnixNanos(transfer.SettledAt))
	if err != nil {
		return fmt.Errorf("failed to insert emergency transfer: %w", err)
	}
	return nil
}

// UpdateEmergencyTransfer settles a transfer, guarded by the state the caller read
func (t *txQueries) UpdateEmergencyTransfer(ctx context.Context, transfer *models.EmergencyTransfer, from models.EmergencyState) error {
	result, err := t.q.ExecContext(ctx, queryUpdateEmergencyTransfer,
		string(transfer.State),
		transfer.Reason,
		toUnixNanos(transfer.SettledAt),
		transfer.Reference,
		string(from))
	if err != nil {
		return fmt.Errorf("failed to update emergency transfer: %w", err)
	}
	return expectOneRow(result, fmt.Sprintf("emergency transfer %s %s -> %s", transfer.Reference, from, transfer.State))
}
