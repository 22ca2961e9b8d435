package minter

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/consensus"
	"github.com/bt2c-network/pos-consensus/internal/metrics"
	"github.com/bt2c-network/pos-consensus/internal/model"
	"github.com/bt2c-network/pos-consensus/internal/validator"
)

type fakeWallet struct {
	locked  bool
	dest    []byte
	utxos   int
	signErr error
}

func (w *fakeWallet) IsLocked(context.Context) (bool, error)          { return w.locked, nil }
func (w *fakeWallet) MintDestination(context.Context) ([]byte, error) { return w.dest, nil }
func (w *fakeWallet) AvailableUTXOCount(context.Context) (int, error) { return w.utxos, nil }
func (w *fakeWallet) SignBlock(context.Context, *consensus.BlockHeader, *consensus.RawTransaction) error {
	return w.signErr
}

type fakeAssembler struct {
	found    bool
	template *consensus.BlockTemplate
}

func (a *fakeAssembler) CreateNewBlock(context.Context, []byte, time.Duration) (*consensus.BlockTemplate, bool, error) {
	return a.template, a.found, nil
}

type fakeProcessor struct {
	processed int
}

func (p *fakeProcessor) ProcessBlockFound(context.Context, *consensus.BlockHeader, *consensus.RawTransaction) error {
	p.processed++
	return nil
}

type fakeStore struct {
	tip *model.BlockIndex
}

func (s *fakeStore) ByHash(context.Context, chainhash.Hash) (*model.BlockIndex, error) { return nil, nil }
func (s *fakeStore) Next(context.Context, *model.BlockIndex) (*model.BlockIndex, bool, error) {
	return nil, false, nil
}
func (s *fakeStore) Contains(context.Context, *model.BlockIndex) (bool, error) { return true, nil }
func (s *fakeStore) Tip(context.Context) (*model.BlockIndex, error)            { return s.tip, nil }

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(ctx context.Context, _ time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func newTestDeps(t *testing.T) (Deps, *validator.Registry, *fakeWallet, *fakeAssembler, *fakeProcessor) {
	t.Helper()
	reg := validator.NewRegistry(32 * consensus.Coin)
	node := consensus.NewNode(consensus.TestnetParams())
	wallet := &fakeWallet{dest: []byte{0x76, 0xa9, 0x14, 0x01, 0x88, 0xac}, utxos: 4}
	assembler := &fakeAssembler{}
	processor := &fakeProcessor{}
	store := &fakeStore{tip: &model.BlockIndex{Height: 100, Hash: chainhash.Hash{0xAA}}}

	return Deps{
		Node:      node,
		Registry:  reg,
		Store:     store,
		Assembler: assembler,
		Wallet:    wallet,
		Processor: processor,
		Clock:     &fakeClock{now: time.Unix(1700000000, 0)},
		Metrics:   metrics.NewConsensus(prometheus.NewRegistry()),
		Logger:    zap.NewNop(),
	}, reg, wallet, assembler, processor
}

func TestTryMintOnce_NotSelected(t *testing.T) {
	t.Parallel()

	deps, reg, _, _, _ := newTestDeps(t)
	if _, err := reg.RegisterValidator([]byte{0x01}, 32*consensus.Coin, 1000); err != nil {
		t.Fatalf("RegisterValidator: %v", err)
	}

	var notUs chainhash.Hash
	notUs[0] = 0xFF
	m := New(DefaultConfig("testnet"), notUs, deps)

	produced, err := m.tryMintOnce(context.Background())
	if err != nil {
		t.Fatalf("tryMintOnce: %v", err)
	}
	if produced {
		t.Fatalf("expected no block produced for an unselected validator")
	}
}

func TestTryMintOnce_SelectedButNoKernelMatch(t *testing.T) {
	t.Parallel()

	deps, reg, _, assembler, _ := newTestDeps(t)
	v, err := reg.RegisterValidator([]byte{0x02}, 32*consensus.Coin, 1000)
	if err != nil {
		t.Fatalf("RegisterValidator: %v", err)
	}
	assembler.found = false

	m := New(DefaultConfig("testnet"), v.ID, deps)
	produced, err := m.tryMintOnce(context.Background())
	if err != nil {
		t.Fatalf("tryMintOnce: %v", err)
	}
	if produced {
		t.Fatalf("expected no block produced when the assembler finds no kernel match")
	}
}

func TestTryMintOnce_SelectedAndProduces(t *testing.T) {
	t.Parallel()

	deps, reg, _, assembler, processor := newTestDeps(t)
	v, err := reg.RegisterValidator([]byte{0x03}, 32*consensus.Coin, 1000)
	if err != nil {
		t.Fatalf("RegisterValidator: %v", err)
	}
	assembler.found = true
	assembler.template = &consensus.BlockTemplate{
		Header:      consensus.BlockHeader{Version: 1, Time: 1700000000},
		CoinstakeTx: consensus.RawTransaction{Version: 1},
	}

	m := New(DefaultConfig("testnet"), v.ID, deps)
	produced, err := m.tryMintOnce(context.Background())
	if err != nil {
		t.Fatalf("tryMintOnce: %v", err)
	}
	if !produced {
		t.Fatalf("expected block to be produced")
	}
	if processor.processed != 1 {
		t.Fatalf("expected ProcessBlockFound called once, got %d", processor.processed)
	}

	got, err := reg.GetValidator(v.ID)
	if err != nil {
		t.Fatalf("GetValidator: %v", err)
	}
	if got.Reputation.BlocksProduced != 1 {
		t.Fatalf("expected BlocksProduced=1, got %d", got.Reputation.BlocksProduced)
	}
}

func TestPosTimeout_ScalesWithUTXOCount(t *testing.T) {
	t.Parallel()

	if got := posTimeout(0); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms floor for zero UTXOs, got %v", got)
	}
	if got := posTimeout(100); got <= 500*time.Millisecond {
		t.Fatalf("expected posTimeout to grow with UTXO count, got %v", got)
	}
}
