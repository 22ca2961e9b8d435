package clickhouse

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bt2c-network/pos-consensus/internal/validator"
	"github.com/bt2c-network/pos-consensus/pkg/batcher"
)

// NewReputationBatcher wraps a Repository in a size/interval-flushed
// batcher, so every validator.Registry mutation (registration, reputation
// update, slash) can be queued through Registry.SetOnUpdate without
// forcing a synchronous ClickHouse round trip on the hot path of block
// production.
func NewReputationBatcher(repo *Repository, logger *zap.Logger, flushSize int, flushInterval time.Duration, rps int) *batcher.Batcher[validator.Validator] {
	return batcher.New(logger, repo.saveValidatorBatch, flushSize, flushInterval, rps)
}

func (r *Repository) saveValidatorBatch(ctx context.Context, batch []validator.Validator) error {
	for _, v := range batch {
		if err := r.SaveValidator(ctx, v); err != nil {
			return err
		}
	}
	return nil
}
