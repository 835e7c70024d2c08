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
)

func (q *queries) GetParameters(ctx context.Context) (*models.Parameters, error) {
	var (
		params                                    models.Parameters
		minFee, maxFee, currentFee                int64
		minDelay, maxDelay, timeout, updatedAt    int64
		minDeposit, maxDeposit, minWithdraw, rsrv string
		maxQueue, maxParts                        int64
	)
	err := q.q.QueryRowContext(ctx, queryGetParameters).Scan(
		&minFee, &maxFee, &currentFee, &minDelay, &maxDelay,
		&minDeposit, &maxDeposit, &minWithdraw, &rsrv, &timeout,
		&maxQueue, &maxParts, &params.AdminId, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("parameters: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parameters: %w", err)
	}

	for _, field := range []struct {
		raw  string
		dest *decimal.Decimal
		name string
	}{
		{minDeposit, &params.MinDeposit, "min_deposit"},
		{maxDeposit, &params.MaxDeposit, "max_deposit"},
		{minWithdraw, &params.MinWithdraw, "min_withdraw"},
		{rsrv, &params.OperationalReserve, "operational_reserve"},
	} {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s '%s': %w", field.name, field.raw, err)
		}
		*field.dest = value
	}

	params.MinFeeRateBps = uint16(minFee)
	params.MaxFeeRateBps = uint16(maxFee)
	params.CurrentFeeRateBps = uint16(currentFee)
	params.MinDelay = time.Duration(minDelay)
	params.MaxDelay = time.Duration(maxDelay)
	params.WithdrawalTimeout = time.Duration(timeout)
	params.MaxQueueSize = uint64(maxQueue)
	params.MaxPartsPerSplit = int(maxParts)
	params.UpdatedAt = fromUnixNanos(updatedAt)
	return &params, nil
}

func (t *txQueries) SaveParameters(ctx context.Context, params *models.Parameters) error {
	_, err := t.q.ExecContext(ctx, queryUpsertParameters,
		int64(params.MinFeeRateBps),
		int64(params.MaxFeeRateBps),
		int64(params.CurrentFeeRateBps),
		int64(params.MinDelay),
		int64(params.MaxDelay),
		params.MinDeposit.String(),
		params.MaxDeposit.String(),
		params.MinWithdraw.String(),
		params.OperationalReserve.String(),
		int64(params.WithdrawalTimeout),
		int64(params.MaxQueueSize),
		int64(params.MaxPartsPerSplit),
		params.AdminId,
		toUnixNanos(params.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save parameters: %w", err)
	}
	return nil
}

func (q *queries) IsBlacklisted(ctx context.Context, account string) (bool, error) {
	var one int
	err := q.q.QueryRowContext(ctx, queryIsBlacklisted, account).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return true, nil
}

func (q *queries) ListBlacklist(ctx context.Context) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, queryListBlacklist)
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}
	defer closeRows(rows)

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blacklist rows: %w", err)
	}
	return accounts, nil
}

func (t *txQueries) SetBlacklisted(ctx context.Context, account string, banned bool) error {
	query := queryDeleteBlacklist
	if banned {
		query = queryInsertBlacklist
	}
	if _, err := t.q.ExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("failed to update blacklist: %w", err)
	}
	return nil
}

func (q *queries) GetOracle(ctx context.Context) (*models.OracleValue, error) {
	var (
		rateStr   string
		updatedAt int64
	)
	err := q.q.QueryRowContext(ctx, queryGetOracle).Scan(&rateStr, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("oracle: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get oracle value: %w", err)
	}

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse oracle rate '%s': %w", rateStr, err)
	}
	return &models.OracleValue{Rate: rate, UpdatedAt: fromUnixNanos(updatedAt)}, nil
}

func (t *txQueries) SaveOracle(ctx context.Context, oracle *models.OracleValue) error {
	_, err := t.q.ExecContext(ctx, queryUpsertOracle, oracle.Rate.String(), toUnixNanos(oracle.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save oracle value: %w", err)
	}
	return nil
}
