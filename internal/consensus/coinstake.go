package consensus

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/consensus/errs"
	"github.com/bt2c-network/pos-consensus/internal/model"
)

// maxFutureBlockTimePrev09 bounds how far ahead of the coinstake time a
// V0.2-era block's timestamp may be.
const maxFutureBlockTimePrev09 = 7200

// CoinstakeVerifier ties script verification and the kernel predicate
// together into the single CheckProofOfStake entry point a block validator
// calls for every candidate PoS block.
type CoinstakeVerifier struct {
	eras     ProtocolEras
	kernel   KernelHasher
	verifier ScriptVerifier
}

// NewCoinstakeVerifier binds the verifier to one network's parameters.
func NewCoinstakeVerifier(params ChainParams) CoinstakeVerifier {
	return CoinstakeVerifier{eras: NewProtocolEras(params), kernel: NewKernelHasher(params), verifier: NewScriptVerifier()}
}

// CheckCoinStakeTimestamp reports whether a coinstake's timestamp matches
// the block that contains it, per the era-gated rule: V0.3+ requires exact
// equality; earlier eras allow nTimeTx <= nTimeBlock <= nTimeTx+7200.
func (v CoinstakeVerifier) CheckCoinStakeTimestamp(blockTime, txTime uint32) bool {
	if v.eras.IsProtocolV03(txTime) {
		return blockTime == txTime
	}
	return txTime <= blockTime && blockTime <= txTime+maxFutureBlockTimePrev09
}

// CheckProofOfStakeInput is everything CheckProofOfStake needs about the
// coinstake transaction and the previous output its first input spends.
type CheckProofOfStakeInput struct {
	Bits      uint32
	Prev      *model.BlockIndex
	Coinstake RawTransaction
	TxTime    uint32
}

// CheckProofOfStake verifies the coinstake's signature against the previous
// output it spends, then checks the kernel predicate, mirroring
// CheckProofOfStake in the reference implementation.
func (v CoinstakeVerifier) CheckProofOfStake(ctx context.Context, arena *model.ChainIndexArena, store BlockIndexStore, txIndex TransactionIndex, in CheckProofOfStakeInput) (chainhash.Hash, error) {
	if len(in.Coinstake.TxIn) == 0 {
		return chainhash.Hash{}, fmt.Errorf("%w: coinstake has no inputs", errs.ErrKernelCheckFailed)
	}
	kernelIn := in.Coinstake.TxIn[0]

	prevOut, err := txIndex.PrevOutput(ctx, kernelIn.PreviousOutPoint.Hash, kernelIn.PreviousOutPoint.Index)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %v", errs.ErrMissingData, err)
	}

	if err := v.verifier.Verify(in.Coinstake, prevOut.ScriptPubKey, prevOut.Value); err != nil {
		return chainhash.Hash{}, err
	}

	return v.kernel.Check(ctx, arena, store, KernelCheckInput{
		Bits:          in.Bits,
		Prev:          in.Prev,
		BlockFromTime: prevOut.BlockTime,
		BlockFromHash: prevOut.BlockHash,
		TxPrevOffset:  prevOut.OffsetInBlock,
		TxPrevTime:    prevOut.TxTime,
		PrevOutValue:  prevOut.Value,
		PrevOutIndex:  kernelIn.PreviousOutPoint.Index,
		TxTime:        in.TxTime,
	})
}
