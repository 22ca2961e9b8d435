package consensus

import (
	"context"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/consensus/errs"
	"github.com/bt2c-network/pos-consensus/internal/model"
)

// StakeModifierEngine computes and looks up stake modifiers: the 64-bit
// scalar recomputed once per modifier epoch from 64 ancestor blocks chosen
// by a deterministic selection procedure.
type StakeModifierEngine struct {
	params ChainParams
	eras   ProtocolEras
}

// NewStakeModifierEngine binds the engine to one network's parameters.
func NewStakeModifierEngine(params ChainParams) StakeModifierEngine {
	return StakeModifierEngine{params: params, eras: NewProtocolEras(params)}
}

// SelectionIntervalSection returns the length, in seconds, of selection
// round section (0-63). Later sections are longer than earlier ones: section
// 63 is ModifierIntervalRatio times the length of section 0, so the oldest
// part of the window is cut into the finest-grained rounds.
func (e StakeModifierEngine) SelectionIntervalSection(section int) int64 {
	if section < 0 || section >= 64 {
		panic("consensus: selection interval section out of range [0,64)")
	}
	return int64(e.params.ModifierInterval) * 63 / (63 + int64(63-section)*(ModifierIntervalRatio-1))
}

// SelectionInterval returns the sum of all 64 section lengths.
func (e StakeModifierEngine) SelectionInterval() int64 {
	var total int64
	for i := 0; i < 64; i++ {
		total += e.SelectionIntervalSection(i)
	}
	return total
}

// candidate is a lightweight view of a BlockIndex entry used only for
// modifier selection, so sorting does not need to mutate the arena.
type candidate struct {
	index *model.BlockIndex
}

// sortCandidates orders by (time, hash-as-uint256) ascending. This is
// already a strict total order, so the reference implementation's
// Fisher-Yates pre-shuffle before this sort cannot change the final
// ordering. We therefore skip the shuffle and sort directly.
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].index, candidates[j].index
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		ah, bh := hashToBig(a.Hash), hashToBig(b.Hash)
		return ah.Cmp(bh) < 0
	})
}

// selectBlockFromCandidates picks the candidate with the lowest selection
// hash among those not already selected and within [*, selectionIntervalStop].
// The first unselected candidate is always taken as the starting pick, even
// when it lies past selectionIntervalStop.
func selectBlockFromCandidates(candidates []candidate, selected map[chainhash.Hash]bool, selectionIntervalStop int64, stakeModifierPrev uint64) *model.BlockIndex {
	var (
		picked  *model.BlockIndex
		best    = hashToBig(zeroHash)
		fPicked bool
	)

	for _, c := range candidates {
		idx := c.index
		if fPicked && int64(idx.Time) > selectionIntervalStop {
			break
		}
		if selected[idx.Hash] {
			continue
		}

		hashProof := idx.HashProofOfStake
		if !idx.IsProofOfStake() {
			hashProof = idx.Hash
		}

		preimage := make([]byte, chainhash.HashSize+8)
		copy(preimage, hashProof[:])
		for i := 0; i < 8; i++ {
			preimage[chainhash.HashSize+i] = byte(stakeModifierPrev >> (8 * i))
		}
		selHash := hashToBig(chainhash.DoubleHashH(preimage))
		if idx.IsProofOfStake() {
			selHash.Rsh(selHash, 32)
		}

		if fPicked && selHash.Cmp(best) < 0 {
			best = selHash
			picked = idx
		} else if !fPicked {
			fPicked = true
			best = selHash
			picked = idx
		}
	}

	return picked
}

// lastStakeModifier walks Prev pointers back to the nearest ancestor (or
// self) whose stake modifier has been generated.
func lastStakeModifier(arena *model.ChainIndexArena, from *model.BlockIndex) (uint64, int64, error) {
	cur := from
	for cur != nil && arena.Prev(cur) != nil && !cur.HasStakeModifier() {
		cur = arena.Prev(cur)
	}
	if cur == nil || !cur.HasStakeModifier() {
		return 0, 0, fmt.Errorf("%w: no generated stake modifier reachable from %s", errs.ErrModifierUnavailable, from.Hash)
	}
	return cur.StakeModifier, int64(cur.Time), nil
}

// ComputeNext computes the stake modifier for pindexCurrent. generated is
// false when the current modifier epoch has not rolled over yet, in which
// case modifier is the inherited value from pindexPrev and callers should
// not persist it as newly generated.
func (e StakeModifierEngine) ComputeNext(arena *model.ChainIndexArena, current *model.BlockIndex) (modifier uint64, generated bool, err error) {
	prev := arena.Prev(current)
	if prev == nil {
		// genesis block's modifier is 0.
		return 0, true, nil
	}

	lastModifier, modifierTime, err := lastStakeModifier(arena, prev)
	if err != nil {
		return 0, false, err
	}

	interval := int64(e.params.ModifierInterval)
	if modifierTime/interval >= int64(prev.Time)/interval {
		return lastModifier, false, nil
	}
	if modifierTime/interval >= int64(current.Time)/interval && e.eras.IsProtocolV04(current.Time) {
		return lastModifier, false, nil
	}

	selectionInterval := e.SelectionInterval()
	selectionIntervalStart := (int64(prev.Time)/interval)*interval - selectionInterval

	var candidates []candidate
	for cur := prev; cur != nil && int64(cur.Time) >= selectionIntervalStart; cur = arena.Prev(cur) {
		candidates = append(candidates, candidate{index: cur})
	}
	sortCandidates(candidates)

	var (
		newModifier        uint64
		selectionStop      = selectionIntervalStart
		selected           = make(map[chainhash.Hash]bool, 64)
		rounds             = len(candidates)
	)
	if rounds > 64 {
		rounds = 64
	}
	for round := 0; round < rounds; round++ {
		selectionStop += e.SelectionIntervalSection(round)
		pick := selectBlockFromCandidates(candidates, selected, selectionStop, lastModifier)
		if pick == nil {
			return 0, false, fmt.Errorf("%w: unable to select block at round %d", errs.ErrModifierUnavailable, round)
		}
		newModifier |= uint64(pick.StakeEntropyBit()) << round
		selected[pick.Hash] = true
	}

	return newModifier, true, nil
}

// KernelStakeModifier resolves the modifier a kernel check at nTimeTx must
// use. V0.5+ walks backward from prev; earlier protocol versions walk
// forward from the block that contains the staked output.
func (e StakeModifierEngine) KernelStakeModifier(ctx context.Context, arena *model.ChainIndexArena, store BlockIndexStore, prev *model.BlockIndex, hashBlockFrom chainhash.Hash, nTimeTx uint32) (modifier uint64, height int32, modifierTime int64, err error) {
	if e.eras.IsProtocolV05(nTimeTx) {
		return e.kernelStakeModifierV05(arena, prev, nTimeTx)
	}
	return e.kernelStakeModifierV03(ctx, arena, store, prev, hashBlockFrom, nTimeTx)
}

func (e StakeModifierEngine) kernelStakeModifierV05(arena *model.ChainIndexArena, prev *model.BlockIndex, nTimeTx uint32) (uint64, int32, int64, error) {
	selectionInterval := e.SelectionInterval()
	cur := prev
	height := cur.Height
	modifierTime := int64(cur.Time)

	if modifierTime+int64(e.params.StakeMinAge)-selectionInterval <= int64(nTimeTx) {
		return 0, 0, 0, fmt.Errorf("%w: best block %s at height %d too old for stake", errs.ErrModifierUnavailable, cur.Hash, cur.Height)
	}

	for modifierTime+int64(e.params.StakeMinAge)-selectionInterval > int64(nTimeTx) {
		parent := arena.Prev(cur)
		if parent == nil {
			return 0, 0, 0, fmt.Errorf("%w: reached genesis block while resolving kernel stake modifier", errs.ErrModifierUnavailable)
		}
		cur = parent
		if cur.HasStakeModifier() {
			height = cur.Height
			modifierTime = int64(cur.Time)
		}
	}
	return cur.StakeModifier, height, modifierTime, nil
}

func (e StakeModifierEngine) kernelStakeModifierV03(ctx context.Context, arena *model.ChainIndexArena, store BlockIndexStore, prev *model.BlockIndex, hashBlockFrom chainhash.Hash, nTimeTx uint32) (uint64, int32, int64, error) {
	from := arena.ByHash(hashBlockFrom)
	if from == nil {
		resolved, err := store.ByHash(ctx, hashBlockFrom)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %v", errs.ErrMissingData, err)
		}
		from = resolved
	}

	height := from.Height
	modifierTime := int64(from.Time)
	selectionInterval := e.SelectionInterval()

	// Synthesize the portion of the chain between prev and from that is not
	// yet on the node's active chain, so we can walk it forward without
	// depending on chain-active successor links that may not exist yet for
	// a block still being validated.
	var tmpChain []*model.BlockIndex
	for cur := prev; cur != nil && cur.Height >= from.Height-1; cur = arena.Prev(cur) {
		onActive, err := store.Contains(ctx, cur)
		if err == nil && onActive {
			break
		}
		tmpChain = append(tmpChain, cur)
	}
	for i, j := 0, len(tmpChain)-1; i < j; i, j = i+1, j-1 {
		tmpChain[i], tmpChain[j] = tmpChain[j], tmpChain[i]
	}

	cur := from
	n := 0
	for modifierTime < int64(from.Time)+selectionInterval {
		var next *model.BlockIndex
		if n < len(tmpChain) && cur.Height >= tmpChain[0].Height-1 {
			next = tmpChain[n]
			n++
		} else {
			successor, ok, err := store.Next(ctx, cur)
			if err != nil {
				return 0, 0, 0, fmt.Errorf("%w: %v", errs.ErrIO, err)
			}
			if !ok {
				return 0, 0, 0, fmt.Errorf("%w: reached best block %s at height %d from %s", errs.ErrModifierUnavailable, cur.Hash, cur.Height, hashBlockFrom)
			}
			next = successor
		}
		cur = next
		if cur.HasStakeModifier() {
			height = cur.Height
			modifierTime = int64(cur.Time)
		}
	}

	return cur.StakeModifier, height, modifierTime, nil
}
