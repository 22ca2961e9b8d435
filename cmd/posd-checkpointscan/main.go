// Package main recomputes stake-modifier checksums over a height range and
// compares them against the hardcoded checkpoint table, flagging any
// mismatch. It is a diagnostic tool for verifying a checkpoint table
// against a populated block index before shipping a release.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/bt2c-network/pos-consensus/internal/consensus"
	"github.com/bt2c-network/pos-consensus/internal/model"
	"github.com/bt2c-network/pos-consensus/pkg/safe"
	"github.com/bt2c-network/pos-consensus/pkg/workerpool"
)

type config struct {
	Network     string `long:"network" env:"POSD_CHECKPOINTSCAN_NETWORK" description:"mainnet or testnet" default:"mainnet"`
	StartHeight int64  `long:"start-height" env:"POSD_CHECKPOINTSCAN_START_HEIGHT" description:"first height to verify" default:"0"`
	EndHeight   int64  `long:"end-height" env:"POSD_CHECKPOINTSCAN_END_HEIGHT" description:"last height to verify (inclusive)" required:"true"`
	WorkerCount int    `long:"workers" env:"POSD_CHECKPOINTSCAN_WORKERS" description:"number of concurrent verification workers" default:"4"`
}

// blockSource resolves a contiguous, linear stretch of recorded block index
// entries by height. This module has no implementation of it (the
// internal/storage/clickhouse package stores no block index); it is an
// interface so the scan logic stays testable without a database. Entries must be ordered by ascending
// height with no gaps, matching what a single, unforked section of the
// active chain would produce.
type blockSource interface {
	BlockRange(ctx context.Context, from, to int32) ([]model.BlockIndex, error)
}

func main() {
	cfg := config{}
	if _, err := flags.Parse(&cfg); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		log.Fatalf("failed to parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := consensus.MainnetParams()
	if cfg.Network == "testnet" {
		params = consensus.TestnetParams()
	}

	// No blockSource is wired here: this binary ships the scan algorithm
	// and its worker pool, but an implementation that reads recorded block
	// index entries is left to the embedding deployment, so only a range
	// whose sole checkpoint is height 0 succeeds when run as is.
	if err := runScan(ctx, cfg, params, nil); err != nil {
		log.Fatalf("checkpointscan failed: %v", err)
	}
}

// runScan verifies every height in [start, end] that has a checkpoint entry
// against source, using a worker pool sized by cfg.WorkerCount. For each
// checkpoint height it loads a trailing window of ancestors covering one
// full stake-modifier selection interval, recomputes the modifier and
// checksum from scratch with consensus.Node.VerifyStakeModifierChecksum, and
// compares the freshly computed checksum against the hardcoded table -
// rather than trusting whatever checksum was last recorded for that height.
// Height 0 always passes without consulting source. Passing a nil source is
// only valid when no height in range other than 0 has a checkpoint entry.
func runScan(ctx context.Context, cfg config, params consensus.ChainParams, source blockSource) error {
	node := consensus.NewNode(params)

	heights := make([]int32, 0)
	for h := cfg.StartHeight; h <= cfg.EndHeight; h++ {
		height, err := safe.Uint32(h)
		if err != nil {
			return fmt.Errorf("height %d out of range: %w", h, err)
		}
		if _, ok := params.StakeModifierCheckpoints[int32(height)]; ok {
			heights = append(heights, int32(height))
		}
	}
	if len(heights) == 0 {
		log.Printf("no checkpoints in range [%d, %d]", cfg.StartHeight, cfg.EndHeight)
		return nil
	}

	lookback := int32(node.Modifier.SelectionInterval())/int32(params.TargetSpacing) + 64

	var mismatches sync.Map
	err := workerpool.Process(ctx, cfg.WorkerCount, heights, func(ctx context.Context, height int32) error {
		if height == 0 {
			return nil
		}
		if source == nil {
			return fmt.Errorf("no block source configured to verify height %d", height)
		}
		from := height - lookback
		if from < 0 {
			from = 0
		}
		blocks, err := source.BlockRange(ctx, from, height)
		if err != nil {
			return fmt.Errorf("load block range [%d, %d]: %w", from, height, err)
		}
		if len(blocks) < 2 {
			mismatches.Store(height, "not enough recorded ancestors to recompute checksum")
			return nil
		}

		arena := model.NewChainIndexArena()
		for i, b := range blocks {
			if i == 0 {
				// The oldest loaded ancestor anchors the lookback window;
				// trust its recorded stake modifier as already generated.
				b.Flags |= model.FlagStakeModifier
				b.Prev = -1
			} else {
				b.Prev = int32(i - 1)
			}
			arena.Add(b)
		}

		current := arena.At(int32(len(blocks) - 1))
		prevChecksum := arena.At(int32(len(blocks) - 2)).StakeModifierChecksum

		checksum, ok, err := node.VerifyStakeModifierChecksum(arena, current, prevChecksum)
		if err != nil {
			return fmt.Errorf("recompute checksum at height %d: %w", height, err)
		}
		if !ok {
			mismatches.Store(height, fmt.Sprintf("checksum mismatch: recomputed 0x%08x", checksum))
		}
		return nil
	}, nil)
	if err != nil {
		return fmt.Errorf("scan checkpoints: %w", err)
	}

	count := 0
	mismatches.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count > 0 {
		return fmt.Errorf("%d checkpoint mismatch(es) found", count)
	}

	log.Printf("verified %d checkpoints in range [%d, %d], no mismatches", len(heights), cfg.StartHeight, cfg.EndHeight)
	return nil
}
