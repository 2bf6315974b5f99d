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
	// Balance queries
	queryGetBalanceRow = `
		SELECT id, balance, status, tier, version, updated_at
		FROM user_balances
		WHERE user_address = ? AND currency = ?`

	queryGetAllBalances = `
		SELECT id, user_address, currency, balance, status, tier,
		       COALESCE(last_audit_id, ''), version, created_at, updated_at
		FROM user_balances
		WHERE user_address = ?
		ORDER BY currency`

	queryInsertBalanceRow = `
		INSERT INTO user_balances (id, user_address, currency, balance, status, tier, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryUpdateBalanceRow = `
		UPDATE user_balances
		SET balance = ?, last_audit_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_address = ? AND currency = ? AND version = ?`

	querySetAccountStatus = `
		UPDATE user_balances
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_address = ? AND currency = ?`

	// Audit queries
	queryCheckDuplicateTx = `
		SELECT id FROM balance_audit_log
		WHERE currency = ? AND transaction_hash = ?
		LIMIT 1`

	queryInsertAuditEntry = `
		INSERT INTO balance_audit_log (
			id, user_address, currency, operation_type, amount,
			balance_before, balance_after, transaction_hash, bet_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetAuditHistory = `
		SELECT id, user_address, currency, operation_type, amount,
		       balance_before, balance_after,
		       COALESCE(transaction_hash, ''), COALESCE(bet_id, ''), created_at
		FROM balance_audit_log
		WHERE user_address = ? AND currency = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetMostRecentAuditTime = `
		SELECT MAX(created_at)
		FROM balance_audit_log
		WHERE transaction_hash IS NOT NULL`

	// Amounts are decimal strings; summation happens in Go to stay exact.
	queryReconcileEntries = `
		SELECT operation_type, amount
		FROM balance_audit_log
		WHERE user_address = ? AND currency = ?
		ORDER BY created_at, rowid`

	// Reporting queries
	queryAllBalanceRows = `
		SELECT currency, balance
		FROM user_balances
		ORDER BY currency`

	queryWinStreakEntries = `
		SELECT user_address, currency, operation_type
		FROM balance_audit_log
		WHERE operation_type IN ('bet_won', 'bet_lost')
		ORDER BY user_address, currency, created_at, rowid`
)
