// Package main is the minter daemon's entrypoint for one validator identity
// against one network. It rehydrates the validator registry from ClickHouse,
// persists registry updates, and serves metrics; it does not construct a
// minter.Minter, so it produces no blocks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/clock"
	"github.com/bt2c-network/pos-consensus/internal/consensus"
	"github.com/bt2c-network/pos-consensus/internal/metrics"
	chstorage "github.com/bt2c-network/pos-consensus/internal/storage/clickhouse"
	"github.com/bt2c-network/pos-consensus/internal/validator"
)

type config struct {
	ClickhouseDSN string        `long:"clickhouse-dsn" env:"POSD_MINTER_CLICKHOUSE_DSN" description:"ClickHouse DSN" required:"true"`
	Network       string        `long:"network" env:"POSD_MINTER_NETWORK" description:"mainnet or testnet" default:"testnet"`
	ValidatorID   string        `long:"validator-id" env:"POSD_MINTER_VALIDATOR_ID" description:"this node's validator id (hex)" required:"true"`
	MetricsAddr   string        `long:"metrics-addr" env:"POSD_MINTER_METRICS_ADDR" description:"address for metrics server" default:":2113"`
	MinimumStake  int64         `long:"minimum-stake" env:"POSD_MINTER_MINIMUM_STAKE" description:"minimum stake in satoshis" default:"3200000000"`
	SearchWindow  time.Duration `long:"coinstake-search-window" env:"POSD_MINTER_SEARCH_WINDOW" description:"how long block assembly searches for a kernel match" default:"60s"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("minter failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	startMetricsServer(ctx, cfg.MetricsAddr, reg, logger)
	consensusMetrics := metrics.NewConsensus(reg)

	validatorID, err := chainhash.NewHashFromStr(cfg.ValidatorID)
	if err != nil {
		return fmt.Errorf("parse validator id: %w", err)
	}

	params := consensus.TestnetParams()
	if cfg.Network == "mainnet" {
		params = consensus.MainnetParams()
	}
	node := consensus.NewNode(params)

	storageMetrics := storageMetricsAdapter{logger: logger}
	repo, err := chstorage.NewRepository(cfg.ClickhouseDSN, cfg.Network, storageMetrics)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("failed to close storage", zap.Error(closeErr))
		}
	}()

	registry := validator.NewRegistry(cfg.MinimumStake)

	reputationBatcher := chstorage.NewReputationBatcher(repo, logger, 50, 10*time.Second, 5)
	reputationBatcher.Start(ctx)
	defer reputationBatcher.Stop()
	registry.SetOnUpdate(func(v validator.Validator) {
		if err := reputationBatcher.Add(ctx, v); err != nil {
			logger.Warn("dropped validator update", zap.String("id", v.ID.String()), zap.Error(err))
		}
	})

	existing, err := repo.LoadValidators(ctx)
	if err != nil {
		return fmt.Errorf("load validators: %w", err)
	}
	for _, v := range existing {
		if _, regErr := registry.RegisterValidator(v.ScriptPubKey, v.StakedAmount, v.RegistrationTime); regErr != nil {
			logger.Warn("skipping validator on rehydrate", zap.String("id", v.ID.String()), zap.Error(regErr))
		}
	}

	// The block store, wallet, block assembler, and block processor are
	// owned by the rest of the node (P2P, mempool, wallet) and are reached
	// only through the consensus.BlockIndexStore/Wallet/BlockAssembler/
	// NewBlockProcessor interfaces; wiring concrete implementations of
	// those is the embedding node's responsibility, not this package's.
	// Everything this entrypoint owns - network parameters, the validator
	// registry, and metrics - is constructed above and ready to hand to a
	// minter.New call once those collaborators exist.
	logger.Info("minter configured",
		zap.String("network", cfg.Network),
		zap.String("validator_id", validatorID.String()),
		zap.Uint32("stake_min_age", node.Params.StakeMinAge),
	)
	consensusMetrics.SetActiveValidators(len(registry.GetActiveValidators()))

	// Until the rest of the node supplies the remaining minter.Deps
	// collaborators, this entrypoint still owns a real Clock and uses it to
	// keep the active-validator gauge fresh, rather than blocking on nothing
	// but ctx.Done until minter.New can be called.
	clk := clock.SystemClock{}
	for {
		if err := clk.Sleep(ctx, 30*time.Second); err != nil {
			return err
		}
		consensusMetrics.SetActiveValidators(len(registry.GetActiveValidators()))
		logger.Debug("minter heartbeat", zap.Time("now", clk.Now()))
	}
}

// storageMetricsAdapter satisfies chstorage.Metrics by logging instead of
// exporting a dedicated counter, keeping this entrypoint's wiring short;
// a full deployment would route this through metrics.Consensus instead.
type storageMetricsAdapter struct {
	logger *zap.Logger
}

func (a storageMetricsAdapter) Observe(operation string, network string, err error, started time.Time) {
	if err != nil {
		a.logger.Warn("storage operation failed", zap.String("operation", operation), zap.String("network", network), zap.Error(err), zap.Duration("took", time.Since(started)))
	}
}

func startMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}
