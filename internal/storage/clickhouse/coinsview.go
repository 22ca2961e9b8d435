package clickhouse

import (
	"context"
	"fmt"
	"time"
)

// UnspentValueForScript sums the value of every unspent output paying
// scriptPubkey, so a validator's live stake can be re-derived from the UTXO
// set rather than from a cached balance. No code in this module calls it yet.
func (r *Repository) UnspentValueForScript(ctx context.Context, scriptPubkey []byte) (int64, error) {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("unspent_value_for_script", r.network, err, start)
	}()

	const query = `
SELECT coalesce(sum(value), toInt64(0)) AS total_value
FROM utxo_outputs
WHERE network = ? AND script_pubkey = ? AND spent = 0`

	rows, err := r.conn.Query(ctx, query, r.network, scriptPubkey)
	if err != nil {
		return 0, fmt.Errorf("query unspent value: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	var total int64
	if !rows.Next() {
		return 0, nil
	}
	if err = rows.Scan(&total); err != nil {
		return 0, fmt.Errorf("scan unspent value: %w", err)
	}
	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate unspent value: %w", err)
	}
	return total, nil
}

// UTXOCount returns the number of unspent outputs on this network. The
// minter loop does not use it: it paces pos_timeout with
// Wallet.AvailableUTXOCount.
func (r *Repository) UTXOCount(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("utxo_count", r.network, err, start)
	}()

	const query = `
SELECT count() AS utxo_count
FROM utxo_outputs
WHERE network = ? AND spent = 0`

	rows, err := r.conn.Query(ctx, query, r.network)
	if err != nil {
		return 0, fmt.Errorf("query utxo count: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	var count int64
	if !rows.Next() {
		return 0, nil
	}
	if err = rows.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan utxo count: %w", err)
	}
	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate utxo count: %w", err)
	}
	return count, nil
}
