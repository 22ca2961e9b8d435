package consensus

import (
	"context"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/consensus/errs"
	"github.com/bt2c-network/pos-consensus/internal/model"
)

// KernelHasher implements the coin-age x stake-modifier kernel predicate:
//
//	H(modifier || t_block_from || tx_prev_offset || t_tx_prev || vout_n || t_tx)
//	    < target_per_coin_day * coin_day_weight
//
// where coin_day_weight = value_in * time_weight / Coin / 86400 and
// time_weight = min(t_tx - t_tx_prev, StakeMaxAge) - (V03 ? StakeMinAge : 0).
type KernelHasher struct {
	params   ChainParams
	eras     ProtocolEras
	modifier StakeModifierEngine
}

// NewKernelHasher binds the hasher to one network's parameters.
func NewKernelHasher(params ChainParams) KernelHasher {
	return KernelHasher{params: params, eras: NewProtocolEras(params), modifier: NewStakeModifierEngine(params)}
}

// KernelCheckInput bundles everything CheckStakeKernelHash needs about the
// candidate coinstake and the previous output it spends.
type KernelCheckInput struct {
	Bits             uint32
	Prev             *model.BlockIndex
	BlockFromTime    uint32
	BlockFromHash    chainhash.Hash
	TxPrevOffset     uint32
	TxPrevTime       uint32
	PrevOutValue     int64
	PrevOutIndex     uint32
	TxTime           uint32
}

// Check evaluates the kernel predicate and returns the resulting
// proof-of-stake hash on success.
func (k KernelHasher) Check(ctx context.Context, arena *model.ChainIndexArena, store BlockIndexStore, in KernelCheckInput) (chainhash.Hash, error) {
	txPrevTime := in.TxPrevTime
	if txPrevTime == 0 {
		txPrevTime = in.BlockFromTime
	}

	if in.TxTime < txPrevTime {
		return chainhash.Hash{}, fmt.Errorf("%w: nTime violation", errs.ErrKernelCheckFailed)
	}
	if in.BlockFromTime+k.params.StakeMinAge > in.TxTime {
		return chainhash.Hash{}, fmt.Errorf("%w: min age violation", errs.ErrKernelCheckFailed)
	}

	target := compactToBig(in.Bits)

	timeWeight := int64(in.TxTime) - int64(txPrevTime)
	if timeWeight > int64(k.params.StakeMaxAge) {
		timeWeight = int64(k.params.StakeMaxAge)
	}
	if k.eras.IsProtocolV03(in.TxTime) {
		timeWeight -= int64(k.params.StakeMinAge)
	}
	if timeWeight < 0 {
		timeWeight = 0
	}

	coinDayWeight := new(big.Int).Mul(big.NewInt(in.PrevOutValue), big.NewInt(timeWeight))
	coinDayWeight.Div(coinDayWeight, big.NewInt(Coin))
	coinDayWeight.Div(coinDayWeight, big.NewInt(86400))

	var preimage []byte
	if k.eras.IsProtocolV03(in.TxTime) {
		modifier, _, _, err := k.modifier.KernelStakeModifier(ctx, arena, store, in.Prev, in.BlockFromHash, in.TxTime)
		if err != nil {
			return chainhash.Hash{}, err
		}
		preimage = appendUint64LE(preimage, modifier)
	} else {
		preimage = appendUint32LE(preimage, in.Bits)
	}
	preimage = appendUint32LE(preimage, in.BlockFromTime)
	preimage = appendUint32LE(preimage, in.TxPrevOffset)
	preimage = appendUint32LE(preimage, txPrevTime)
	preimage = appendUint32LE(preimage, in.PrevOutIndex)
	preimage = appendUint32LE(preimage, in.TxTime)

	hashProofOfStake := chainhash.DoubleHashH(preimage)

	targetTimesWeight := new(big.Int).Mul(target, coinDayWeight)
	if hashToBig(hashProofOfStake).Cmp(targetTimesWeight) >= 0 {
		return chainhash.Hash{}, fmt.Errorf("%w: hash proof does not meet target", errs.ErrKernelCheckFailed)
	}

	return hashProofOfStake, nil
}

func appendUint32LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64LE(b []byte, v uint64) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
