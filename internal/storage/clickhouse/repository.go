// Package clickhouse persists the validator registry and implements the
// consensus.CoinsView interface, backed by a ClickHouse table of validator
// state and a materialized UTXO table.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Metrics observes one storage operation's outcome and latency.
type Metrics interface {
	Observe(operation string, network string, err error, started time.Time)
}

// Repository wraps a ClickHouse connection with the queries the consensus
// core needs: validator-registry persistence and UTXO-backed CoinsView
// lookups.
type Repository struct {
	conn    clickhouse.Conn
	metrics Metrics
	network string
}

// NewRepository opens a ClickHouse connection against dsn.
func NewRepository(dsn string, network string, metrics Metrics) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("clickhouse dsn is required")
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &Repository{conn: conn, metrics: metrics, network: network}, nil
}

// Close releases the underlying connection.
func (r *Repository) Close() error {
	return r.conn.Close()
}
