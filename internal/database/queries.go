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

const (
	// Deposit queries
	queryInsertDeposit = `
		INSERT INTO deposits (amount, created_at, status)
		VALUES (?, ?, ?)`

	queryGetDeposit = `
		SELECT id, amount, created_at, status
		FROM deposits
		WHERE id = ?`

	queryUpdateDepositStatus = `
		UPDATE deposits
		SET status = ?
		WHERE id = ? AND status = ?`

	// Queue item queries
	queueItemColumns = `id, source_deposit_id, recipient, amount, fee_rate_bps, ready_at,
		       state, transfer_ref, failure_reason, created_at, settled_at`

	queryInsertQueueItem = `
		INSERT INTO queue_items (
			source_deposit_id, recipient, amount, fee_rate_bps, ready_at,
			state, transfer_ref, failure_reason, created_at, settled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetQueueItem = `
		SELECT ` + queueItemColumns + `
		FROM queue_items
		WHERE id = ?`

	queryFindQueueItemByTransferRef = `
		SELECT ` + queueItemColumns + `
		FROM queue_items
		WHERE transfer_ref = ?`

	queryNextReadyItem = `
		SELECT id
		FROM queue_items
		WHERE state = 'waiting' AND ready_at <= ?
		ORDER BY id
		LIMIT 1`

	queryCountReadyItems = `
		SELECT COUNT(*)
		FROM queue_items
		WHERE state = 'waiting' AND ready_at <= ?`

	queryListQueueItems = `
		SELECT ` + queueItemColumns + `
		FROM queue_items
		WHERE (? = '' OR state = ?)
		ORDER BY id
		LIMIT ? OFFSET ?`

	queryActiveItemAmounts = `
		SELECT amount
		FROM queue_items
		WHERE state IN ('waiting', 'processing')`

	// Settlement never touches ready_at, it is fixed at scheduling time.
	queryUpdateQueueItem = `
		UPDATE queue_items
		SET state = ?, transfer_ref = ?, failure_reason = ?, settled_at = ?
		WHERE id = ? AND state = ?`

	// Pool state queries
	queryGetPoolState = `
		SELECT balance, pending_amount, retained_fees, total_deposited, total_withdrawn,
		       queue_size, failed_count, completed_count, last_processed_at, version
		FROM pool_state
		WHERE id = 1`

	queryUpdatePoolState = `
		UPDATE pool_state
		SET balance = ?, pending_amount = ?, retained_fees = ?, total_deposited = ?, total_withdrawn = ?,
		    queue_size = ?, failed_count = ?, completed_count = ?, last_processed_at = ?,
		    version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1 AND version = ?`

	// Parameter queries
	queryGetParameters = `
		SELECT min_fee_rate_bps, max_fee_rate_bps, current_fee_rate_bps, min_delay, max_delay,
		       min_deposit, max_deposit, min_withdraw, operational_reserve, withdrawal_timeout,
		       max_queue_size, max_parts_per_split, admin_id, updated_at
		FROM parameters
		WHERE id = 1`

	queryUpsertParameters = `
		INSERT INTO parameters (
			id, min_fee_rate_bps, max_fee_rate_bps, current_fee_rate_bps, min_delay, max_delay,
			min_deposit, max_deposit, min_withdraw, operational_reserve, withdrawal_timeout,
			max_queue_size, max_parts_per_split, admin_id, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			min_fee_rate_bps = excluded.min_fee_rate_bps,
			max_fee_rate_bps = excluded.max_fee_rate_bps,
			current_fee_rate_bps = excluded.current_fee_rate_bps,
			min_delay = excluded.min_delay,
			max_delay = excluded.max_delay,
			min_deposit = excluded.min_deposit,
			max_deposit = excluded.max_deposit,
			min_withdraw = excluded.min_withdraw,
			operational_reserve = excluded.operational_reserve,
			withdrawal_timeout = excluded.withdrawal_timeout,
			max_queue_size = excluded.max_queue_size,
			max_parts_per_split = excluded.max_parts_per_split,
			admin_id = excluded.admin_id,
			updated_at = excluded.updated_at`

	// Blacklist queries
	queryIsBlacklisted = `
		SELECT 1 FROM blacklist WHERE account = ? LIMIT 1`

	queryListBlacklist = `
		SELECT account FROM blacklist ORDER BY account`

	queryInsertBlacklist = `
		INSERT OR IGNORE INTO blacklist (account) VALUES (?)`

	queryDeleteBlacklist = `
		DELETE FROM blacklist WHERE account = ?`

	// History queries
	queryAppendHistory = `
		INSERT INTO history (id, kind, account, amount, fee_rate_bps, status, reference, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetHistory = `
		SELECT seq, id, kind, account, amount, fee_rate_bps, status, reference, timestamp
		FROM history
		ORDER BY seq
		LIMIT ? OFFSET ?`

	queryHistoryLength = `
		SELECT COUNT(*) FROM history`

	// Emergency transfer queries
	emergencyTransferColumns = `reference, recipient, amount, state, failure_reason, created_at, settled_at`

	queryInsertEmergencyTransfer = `
		INSERT INTO emergency_transfers (` + emergencyTransferColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetEmergencyTransfer = `
		SELECT ` + emergencyTransferColumns + `
		FROM emergency_transfers
		WHERE reference = ?`

	queryListEmergencyTransfers = `
		SELECT ` + emergencyTransferColumns + `
		FROM emergency_transfers
		WHERE (? = '' OR state = ?)
		ORDER BY created_at, reference`

	queryUpdateEmergencyTransfer = `
		UPDATE emergency_transfers
		SET state = ?, failure_reason = ?, settled_at = ?
		WHERE reference = ? AND state = ?`

	// Oracle queries
	queryGetOracle = `
		SELECT rate, updated_at FROM oracle WHERE id = 1`

	queryUpsertOracle = `
		INSERT INTO oracle (id, rate, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET rate = excluded.rate, updated_at = excluded.updated_at`
)
