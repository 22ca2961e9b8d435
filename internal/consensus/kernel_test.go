package consensus

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/consensus/errs"
)

func preV03Input(params ChainParams) KernelCheckInput {
	txTime := params.V03.Mainnet - 10_000_000
	return KernelCheckInput{
		Bits:          0x01000001,
		BlockFromTime: txTime - params.StakeMinAge - 10,
		TxPrevOffset:  0,
		PrevOutValue:  100 * Coin,
		PrevOutIndex:  0,
		TxTime:        txTime,
	}
}

func TestKernelHasher_Check_RejectsNTimeViolation(t *testing.T) {
	t.Parallel()

	hasher := NewKernelHasher(MainnetParams())
	in := preV03Input(MainnetParams())
	in.TxPrevTime = in.TxTime + 1

	_, err := hasher.Check(context.Background(), nil, nil, in)
	if !errors.Is(err, errs.ErrKernelCheckFailed) {
		t.Fatalf("expected ErrKernelCheckFailed, got %v", err)
	}
}

func TestKernelHasher_Check_RejectsMinAgeViolation(t *testing.T) {
	t.Parallel()

	hasher := NewKernelHasher(MainnetParams())
	in := preV03Input(MainnetParams())
	in.BlockFromTime = in.TxTime

	_, err := hasher.Check(context.Background(), nil, nil, in)
	if !errors.Is(err, errs.ErrKernelCheckFailed) {
		t.Fatalf("expected ErrKernelCheckFailed, got %v", err)
	}
}

func TestKernelHasher_Check_FailsAgainstATinyTarget(t *testing.T) {
	t.Parallel()

	hasher := NewKernelHasher(MainnetParams())
	in := preV03Input(MainnetParams())
	in.Bits = 0x01000001 // exponent 1 shifts the mantissa out: target == 0, so no hash can be below it

	_, err := hasher.Check(context.Background(), nil, nil, in)
	if !errors.Is(err, errs.ErrKernelCheckFailed) {
		t.Fatalf("expected the kernel predicate to fail against a near-zero target, got %v", err)
	}
}

func TestKernelHasher_Check_PassesAgainstAnExpansiveTarget(t *testing.T) {
	t.Parallel()

	hasher := NewKernelHasher(MainnetParams())
	in := preV03Input(MainnetParams())
	in.Bits = 0x20ffffff // exponent 32, mantissa 0x7fffff: target larger than any 256-bit hash

	hash, err := hasher.Check(context.Background(), nil, nil, in)
	if err != nil {
		t.Fatalf("expected the kernel predicate to pass against an expansive target: %v", err)
	}
	if hash == (chainhash.Hash{}) {
		t.Fatalf("expected a non-zero proof-of-stake hash on success")
	}
}
