package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *Service {
	t.Helper()

	// One connection: every :memory: connection is its own database.
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(service.Close)
	return service
}

func TestNewService_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.DatabaseConfig
		want string
	}{
		{"empty path", models.DatabaseConfig{MaxOpenConns: 1, PingTimeout: time.Second}, "path cannot be empty"},
		{"zero open conns", models.DatabaseConfig{Path: ":memory:", PingTimeout: time.Second}, "max open connections"},
		{"negative idle", models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: -1, PingTimeout: time.Second}, "max idle connections"},
		{"zero ping timeout", models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1}, "ping timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestPoolState_InitialRow(t *testing.T) {
	service := setupTestDB(t)

	state, err := service.GetPoolState(context.Background())
	if err != nil {
		t.Fatalf("GetPoolState failed: %v", err)
	}
	if !state.Balance.IsZero() || !state.PendingAmount.IsZero() {
		t.Errorf("Expected zero balance and pending, got %s / %s", state.Balance, state.PendingAmount)
	}
	if state.QueueSize != 0 || state.Version != 0 {
		t.Errorf("Expected empty queue at version 0, got size=%d version=%d", state.QueueSize, state.Version)
	}
	if !state.LastProcessedAt.IsZero() {
		t.Errorf("Expected zero LastProcessedAt, got %v", state.LastProcessedAt)
	}
}

func TestPoolState_OptimisticLocking(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()

	stale, err := service.GetPoolState(ctx)
	if err != nil {
		t.Fatalf("GetPoolState failed: %v", err)
	}

	err = service.RunInTx(ctx, func(tx store.Tx) error {
		state, err := tx.GetPoolState(ctx)
		if err != nil {
			return err
		}
		state.Balance = decimal.NewFromInt(1000)
		state.QueueSize = 2
		return tx.SavePoolState(ctx, state)
	})
	if err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	err = service.RunInTx(ctx, func(tx store.Tx) error {
		stale.Balance = decimal.NewFromInt(5)
		return tx.SavePoolState(ctx, stale)
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}

	state, err := service.GetPoolState(ctx)
	if err != nil {
		t.Fatalf("GetPoolState failed: %v", err)
	}
	if !state.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected balance 1000, got %s", state.Balance)
	}
	if state.Version != 1 {
		t.Errorf("Expected version 1, got %d", state.Version)
	}
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := service.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := tx.InsertDeposit(ctx, &models.Deposit{
			Amount:    decimal.NewFromInt(10),
			CreatedAt: time.Now(),
			Status:    models.DepositPending,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	if _, err := service.GetDeposit(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected rolled back deposit to be missing, got %v", err)
	}
}

func TestDeposits_InsertAndGuardedStatus(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var id uint64
	err := service.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		id, err = tx.InsertDeposit(ctx, &models.Deposit{
			Amount:    decimal.RequireFromString("1000000000000000000"),
			CreatedAt: createdAt,
			Status:    models.DepositPending,
		})
		return err
	})
	if err != nil {
		t.Fatalf("InsertDeposit failed: %v", err)
	}

	deposit, err := service.GetDeposit(ctx, id)
	if err != nil {
		t.Fatalf("GetDeposit failed: %v", err)
	}
	if !deposit.Amount.Equal(decimal.RequireFromString("1000000000000000000")) {
		t.Errorf("Expected amount 1e18, got %s", deposit.Amount)
	}
	if !deposit.CreatedAt.Equal(createdAt) {
		t.Errorf("Expected created_at %v, got %v", createdAt, deposit.CreatedAt)
	}

	err = service.RunInTx(ctx, func(tx store.Tx) error {
		return tx.UpdateDepositStatus(ctx, id, models.DepositPending, models.DepositScheduled)
	})
	if err != nil {
		t.Fatalf("UpdateDepositStatus failed: %v", err)
	}

	// Second transition from pending must be rejected
	err = service.RunInTx(ctx, func(tx store.Tx) error {
		return tx.UpdateDepositStatus(ctx, id, models.DepositPending, models.DepositScheduled)
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification, got %v", err)
	}
}

func TestDeposits_IdsIncrease(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()

	var ids []uint64
	for i := 0; i < 2; i++ {
		err := service.RunInTx(ctx, func(tx store.Tx) error {
			id, err := tx.InsertDeposit(ctx, &models.Deposit{Amount: decimal.NewFromInt(1), CreatedAt: time.Now(), Status: models.DepositPending})
			ids = append(ids, id)
			return err
		})
		if err != nil {
			t.Fatalf("InsertDeposit failed: %v", err)
		}
	}
	if ids[0] == 0 || ids[1] <= ids[0] {
		t.Errorf("Expected increasing ids, got %v", ids)
	}
}

func insertTestItems(t *testing.T, service *Service, readyAts ...time.Time) []uint64 {
	t.Helper()
	ctx := context.Background()

	var ids []uint64
	err := service.RunInTx(ctx, func(tx store.Tx) error {
		depositId, err := tx.InsertDeposit(ctx, &models.Deposit{Amount: decimal.NewFromInt(1000), CreatedAt: time.Now(), Status: models.DepositScheduled})
		if err != nil {
			return err
		}
		for i, readyAt := range readyAts {
			id, err := tx.InsertQueueItem(ctx, &models.QueueItem{
				SourceDepositId: depositId,
				Recipient:       "recipient-" + string(rune('a'+i)),
				Amount:          decimal.NewFromInt(100),
				FeeRateBps:      50,
				ReadyAt:         readyAt,
				State:           models.ItemWaiting,
				CreatedAt:       time.Now(),
			})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to insert queue items: %v", err)
	}
	return ids
}

func TestQueue_NextReadyItemIsLowestReadyId(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Item 1 is not ready yet; items 2 and 3 are.
	ids := insertTestItems(t, service, now.Add(time.Hour), now.Add(-time.Minute), now)

	id, ok, err := service.NextReadyItemId(ctx, now)
	if err != nil {
		t.Fatalf("NextReadyItemId failed: %v", err)
	}
	if !ok || id != ids[1] {
		t.Errorf("Expected ready item %d, got %d (ok=%v)", ids[1], id, ok)
	}

	count, err := service.CountReadyItems(ctx, now)
	if err != nil {
		t.Fatalf("CountReadyItems failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 ready items, got %d", count)
	}

	_, ok, err = service.NextReadyItemId(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("NextReadyItemId failed: %v", err)
	}
	if ok {
		t.Error("Expected no ready item an hour earlier")
	}
}

func TestQueue_UpdateGuardAndTransferRef(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ids := insertTestItems(t, service, now.Add(-time.Second))

	err := service.RunInTx(ctx, func(tx store.Tx) error {
		item, err := tx.GetQueueItem(ctx, ids[0])
		if err != nil {
			return err
		}
		item.State = models.ItemProcessing
		item.TransferRef = "ref-1"
		return tx.UpdateQueueItem(ctx, item, models.ItemWaiting)
	})
	if err != nil {
		t.Fatalf("UpdateQueueItem failed: %v", err)
	}

	item, err := service.FindQueueItemByTransferRef(ctx, "ref-1")
	if err != nil {
		t.Fatalf("FindQueueItemByTransferRef failed: %v", err)
	}
	if item.Id != ids[0] || item.State != models.ItemProcessing {
		t.Errorf("Unexpected item %+v", item)
	}

	// A writer that still believes the item is waiting loses
	err = service.RunInTx(ctx, func(tx store.Tx) error {
		item.State = models.ItemCompleted
		return tx.UpdateQueueItem(ctx, item, models.ItemWaiting)
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification, got %v", err)
	}

	if _, err := service.FindQueueItemByTransferRef(ctx, ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty ref, got %v", err)
	}
}

func TestQueue_ListAndSumActive(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ids := insertTestItems(t, service, now, now, now)

	err := service.RunInTx(ctx, func(tx store.Tx) error {
		item, err := tx.GetQueueItem(ctx, ids[2])
		if err != nil {
			return err
		}
		item.State = models.ItemCompleted
		item.SettledAt = now
		return tx.UpdateQueueItem(ctx, item, models.ItemWaiting)
	})
	if err != nil {
		t.Fatalf("UpdateQueueItem failed: %v", err)
	}

	total, count, err := service.SumActiveItems(ctx)
	if err != nil {
		t.Fatalf("SumActiveItems failed: %v", err)
	}
	if count != 2 || !total.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected 2 active items totalling 200, got %d / %s", count, total)
	}

	waiting, err := service.ListQueueItems(ctx, store.QueueFilter{State: models.ItemWaiting})
	if err != nil {
		t.Fatalf("ListQueueItems failed: %v", err)
	}
	if len(waiting) != 2 {
		t.Errorf("Expected 2 waiting items, got %d", len(waiting))
	}

	page, err := service.ListQueueItems(ctx, store.QueueFilter{Limit: 1, Offset: 2})
	if err != nil {
		t.Fatalf("ListQueueItems failed: %v", err)
	}
	if len(page) != 1 || page[0].Id != ids[2] {
		t.Errorf("Expected page with item %d, got %+v", ids[2], page)
	}
}

func TestHistory_AppendOnly(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()

	err := service.RunInTx(ctx, func(tx store.Tx) error {
		for _, id := range []string{"h-1", "h-2"} {
			if err := tx.AppendHistory(ctx, &models.HistoryRecord{
				Id:        id,
				Kind:      models.HistoryDeposit,
				Amount:    decimal.NewFromInt(10),
				Status:    "completed",
				Timestamp: time.Now(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	if _, err := service.db.Exec("UPDATE history SET amount = '0'"); err == nil {
		t.Error("Expected history update to be rejected")
	}
	if _, err := service.db.Exec("DELETE FROM history"); err == nil {
		t.Error("Expected history delete to be rejected")
	}

	records, err := service.GetHistory(ctx, 0, 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(records) != 2 || records[0].Id != "h-1" || records[1].Id != "h-2" {
		t.Errorf("Expected records in insertion order, got %+v", records)
	}

	length, err := service.HistoryLength(ctx)
	if err != nil {
		t.Fatalf("HistoryLength failed: %v", err)
	}
	if length != 2 {
		t.Errorf("Expected history length 2, got %d", length)
	}

	tail, err := service.GetHistory(ctx, 1, 10)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(tail) != 1 || tail[0].Id != "h-2" {
		t.Errorf("Expected only h-2 after offset 1, got %+v", tail)
	}
}

func TestParameters_RoundTrip(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()

	if _, err := service.GetParameters(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before bootstrap, got %v", err)
	}

	params := &models.Parameters{
		MinFeeRateBps:      10,
		MaxFeeRateBps:      300,
		CurrentFeeRateBps:  50,
		MinDelay:           time.Hour,
		MaxDelay:           72 * time.Hour,
		MinDeposit:         decimal.NewFromInt(100),
		MaxDeposit:         decimal.NewFromInt(1000000),
		MinWithdraw:        decimal.NewFromInt(50),
		OperationalReserve: decimal.NewFromInt(5),
		WithdrawalTimeout:  7 * 24 * time.Hour,
		MaxQueueSize:       1000,
		MaxPartsPerSplit:   10,
		AdminId:            "admin",
		UpdatedAt:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	err := service.RunInTx(ctx, func(tx store.Tx) error {
		return tx.SaveParameters(ctx, params)
	})
	if err != nil {
		t.Fatalf("SaveParameters failed: %v", err)
	}

	got, err := service.GetParameters(ctx)
	if err != nil {
		t.Fatalf("GetParameters failed: %v", err)
	}
	if got.MaxDelay != params.MaxDelay || got.AdminId != "admin" || got.MaxPartsPerSplit != 10 {
		t.Errorf("Unexpected parameters %+v", got)
	}
	if !got.OperationalReserve.Equal(params.OperationalReserve) {
		t.Errorf("Expected reserve %s, got %s", params.OperationalReserve, got.OperationalReserve)
	}
}

func TestBlacklist_AddRemove(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()

	err := service.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.SetBlacklisted(ctx, "mallory", true); err != nil {
			return err
		}
		// Adding twice is a no-op
		return tx.SetBlacklisted(ctx, "mallory", true)
	})
	if err != nil {
		t.Fatalf("SetBlacklisted failed: %v", err)
	}

	banned, err := service.IsBlacklisted(ctx, "mallory")
	if err != nil || !banned {
		t.Fatalf("Expected mallory to be blacklisted, got %v (%v)", banned, err)
	}

	err = service.RunInTx(ctx, func(tx store.Tx) error {
		return tx.SetBlacklisted(ctx, "mallory", false)
	})
	if err != nil {
		t.Fatalf("SetBlacklisted failed: %v", err)
	}

	accounts, err := service.ListBlacklist(ctx)
	if err != nil {
		t.Fatalf("ListBlacklist failed: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("Expected empty blacklist, got %v", accounts)
	}
}

func TestOracle_RoundTrip(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()

	if _, err := service.GetOracle(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	err := service.RunInTx(ctx, func(tx store.Tx) error {
		return tx.SaveOracle(ctx, &models.OracleValue{Rate: decimal.RequireFromString("1.25"), UpdatedAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("SaveOracle failed: %v", err)
	}

	oracle, err := service.GetOracle(ctx)
	if err != nil {
		t.Fatalf("GetOracle failed: %v", err)
	}
	if !oracle.Rate.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("Expected rate 1.25, got %s", oracle.Rate)
	}
}

func TestEmergencyTransfers_InsertAndGuardedSettle(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := service.RunInTx(ctx, func(tx store.Tx) error {
		for _, ref := range []string{"emergency-1", "emergency-2"} {
			err := tx.InsertEmergencyTransfer(ctx, &models.EmergencyTransfer{
				Reference: ref,
				Recipient: "admin-ops",
				Amount:    decimal.NewFromInt(400),
				State:     models.EmergencyPending,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InsertEmergencyTransfer failed: %v", err)
	}

	transfer, err := service.GetEmergencyTransfer(ctx, "emergency-1")
	if err != nil {
		t.Fatalf("GetEmergencyTransfer failed: %v", err)
	}
	if !transfer.Amount.Equal(decimal.NewFromInt(400)) || transfer.State != models.EmergencyPending {
		t.Errorf("Unexpected transfer %+v", transfer)
	}

	err = service.RunInTx(ctx, func(tx store.Tx) error {
		transfer.State = models.EmergencyFailed
		transfer.Reason = "rejected"
		transfer.SettledAt = now
		return tx.UpdateEmergencyTransfer(ctx, transfer, models.EmergencyPending)
	})
	if err != nil {
		t.Fatalf("UpdateEmergencyTransfer failed: %v", err)
	}

	// Settling twice from pending loses
	err = service.RunInTx(ctx, func(tx store.Tx) error {
		transfer.State = models.EmergencyCompleted
		return tx.UpdateEmergencyTransfer(ctx, transfer, models.EmergencyPending)
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification, got %v", err)
	}

	pending, err := service.ListEmergencyTransfers(ctx, models.EmergencyPending)
	if err != nil {
		t.Fatalf("ListEmergencyTransfers failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Reference != "emergency-2" {
		t.Errorf("Expected only emergency-2 pending, got %+v", pending)
	}

	all, err := service.ListEmergencyTransfers(ctx, "")
	if err != nil {
		t.Fatalf("ListEmergencyTransfers failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 transfers, got %d", len(all))
	}

	if _, err := service.GetEmergencyTransfer(ctx, ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty ref, got %v", err)
	}
}
