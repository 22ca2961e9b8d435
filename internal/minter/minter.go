// Package minter runs the block-production loop: on each tick it checks
// whether this node's validator was selected for the current slot, and if
// so assembles, signs, and hands off a new block. It is grounded on the
// reference implementation's PoSMiner thread.
package minter

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/consensus"
	"github.com/bt2c-network/pos-consensus/internal/metrics"
	"github.com/bt2c-network/pos-consensus/internal/validator"
)

// Config tunes the loop's pacing. Values mirror the constants the
// reference implementation hardcodes into PoSMiner.
type Config struct {
	Network string
	// CoinstakeSearchWindow bounds how far into the future CreateNewBlock
	// may search for a kernel match before giving up on this attempt.
	CoinstakeSearchWindow time.Duration
	// WalletLockedRetry is how long the loop sleeps between checks while
	// the wallet is locked.
	WalletLockedRetry time.Duration
	// PostSuccessSleepBase/Jitter reproduce the reference implementation's
	// 60 + GetRand(4) second pause after a successful mint.
	PostSuccessSleepBase   time.Duration
	PostSuccessSleepJitter time.Duration
}

// DefaultConfig returns the pacing the reference implementation uses.
func DefaultConfig(network string) Config {
	return Config{
		Network:                network,
		CoinstakeSearchWindow:  60 * time.Second,
		WalletLockedRetry:      10 * time.Second,
		PostSuccessSleepBase:   60 * time.Second,
		PostSuccessSleepJitter: 4 * time.Second,
	}
}

// Minter owns the minting loop for one validator identity.
type Minter struct {
	cfg       Config
	node      *consensus.Node
	registry  *validator.Registry
	store     consensus.BlockIndexStore
	assembler consensus.BlockAssembler
	wallet    consensus.Wallet
	processor consensus.NewBlockProcessor
	clock     consensus.Clock
	metrics   *metrics.Consensus
	logger    *zap.Logger

	validatorID     chainhash.Hash
	mintDestination []byte
	walletWasLocked bool
}

// Deps bundles every collaborator the Minter needs, so construction reads
// as one call instead of a long positional parameter list.
type Deps struct {
	Node      *consensus.Node
	Registry  *validator.Registry
	Store     consensus.BlockIndexStore
	Assembler consensus.BlockAssembler
	Wallet    consensus.Wallet
	Processor consensus.NewBlockProcessor
	Clock     consensus.Clock
	Metrics   *metrics.Consensus
	Logger    *zap.Logger
}

// New constructs a Minter for one validator identity.
func New(cfg Config, validatorID chainhash.Hash, deps Deps) *Minter {
	return &Minter{
		cfg:         cfg,
		node:        deps.Node,
		registry:    deps.Registry,
		store:       deps.Store,
		assembler:   deps.Assembler,
		wallet:      deps.Wallet,
		processor:   deps.Processor,
		clock:       deps.Clock,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		validatorID: validatorID,
	}
}

// posTimeout computes the per-tick sleep: 500ms plus 30ms per square root
// of the wallet's spendable UTXO count, matching the reference
// implementation's back-off for wallets with many candidate kernels.
func posTimeout(utxoCount int) time.Duration {
	return 500*time.Millisecond + time.Duration(30*math.Sqrt(float64(utxoCount)))*time.Millisecond
}

// Run drives the minting loop until ctx is cancelled.
func (m *Minter) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		locked, err := m.wallet.IsLocked(ctx)
		if err != nil {
			m.logger.Error("minter: wallet lock check failed", zap.Error(err))
			if sleepErr := m.clock.Sleep(ctx, m.cfg.WalletLockedRetry); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		if locked {
			if !m.walletWasLocked {
				m.logger.Warn("minter: wallet is locked, staking paused")
				m.walletWasLocked = true
			}
			if sleepErr := m.clock.Sleep(ctx, m.cfg.WalletLockedRetry); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		if m.walletWasLocked {
			m.logger.Info("minter: wallet unlocked, staking resumed")
			m.walletWasLocked = false
		}

		if m.mintDestination == nil {
			dest, err := m.wallet.MintDestination(ctx)
			if err != nil {
				return fmt.Errorf("minter: resolve mint destination: %w", err)
			}
			m.mintDestination = dest
		}

		utxoCount, err := m.wallet.AvailableUTXOCount(ctx)
		if err != nil {
			m.logger.Error("minter: failed to count available UTXOs", zap.Error(err))
			utxoCount = 0
		}
		timeout := posTimeout(utxoCount)

		produced, err := m.tryMintOnce(ctx)
		if err != nil {
			m.logger.Error("minter: mint attempt failed", zap.Error(err))
		}
		if produced {
			jitter := time.Duration(rand.Int63n(int64(m.cfg.PostSuccessSleepJitter) + 1))
			if sleepErr := m.clock.Sleep(ctx, m.cfg.PostSuccessSleepBase+jitter); sleepErr != nil {
				return sleepErr
			}
		}

		if sleepErr := m.clock.Sleep(ctx, timeout); sleepErr != nil {
			return sleepErr
		}
	}
}

// tryMintOnce checks this validator's slot eligibility for the current
// chain tip and, if selected, assembles, signs, and hands off one block.
// It returns true only when a block was successfully produced.
func (m *Minter) tryMintOnce(ctx context.Context) (bool, error) {
	tip, err := m.store.Tip(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve chain tip: %w", err)
	}

	slotTime := uint32(m.clock.Now().Unix())
	selected, err := m.registry.SelectNextValidator(tip.Hash, slotTime)
	if err != nil {
		m.metrics.ObserveSlotMissed(m.cfg.Network, "no_active_validators")
		return false, nil
	}
	if selected.ID != m.validatorID {
		m.metrics.ObserveSlotMissed(m.cfg.Network, "not_selected")
		return false, nil
	}

	template, found, err := m.assembler.CreateNewBlock(ctx, m.mintDestination, m.cfg.CoinstakeSearchWindow)
	if err != nil {
		m.metrics.ObserveSlotMissed(m.cfg.Network, "assembly_error")
		return false, fmt.Errorf("assemble block: %w", err)
	}
	if !found {
		m.metrics.ObserveSlotMissed(m.cfg.Network, "no_kernel_match")
		return false, nil
	}

	if err := m.wallet.SignBlock(ctx, &template.Header, &template.CoinstakeTx); err != nil {
		m.metrics.ObserveSlotMissed(m.cfg.Network, "sign_error")
		if regErr := m.registry.UpdateValidatorReputation(m.validatorID, false, int64(slotTime)); regErr != nil {
			m.logger.Warn("minter: failed to record missed slot", zap.Error(regErr))
		}
		return false, fmt.Errorf("sign block: %w", err)
	}

	if err := m.processor.ProcessBlockFound(ctx, &template.Header, &template.CoinstakeTx); err != nil {
		m.metrics.ObserveSlotMissed(m.cfg.Network, "process_error")
		if regErr := m.registry.UpdateValidatorReputation(m.validatorID, false, int64(slotTime)); regErr != nil {
			m.logger.Warn("minter: failed to record missed slot", zap.Error(regErr))
		}
		return false, fmt.Errorf("process block: %w", err)
	}

	if err := m.registry.UpdateValidatorReputation(m.validatorID, true, int64(slotTime)); err != nil {
		m.logger.Warn("minter: failed to record produced block", zap.Error(err))
	}
	m.metrics.ObserveBlockProduced(m.cfg.Network, m.validatorID.String())
	m.logger.Info("minter: produced block", zap.Int32("height", tip.Height+1), zap.String("validator", m.validatorID.String()))
	return true, nil
}
