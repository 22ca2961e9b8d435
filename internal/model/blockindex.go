// Package model holds the plain data types shared across the consensus core.
package model

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockFlags records per-block consensus facts that would otherwise require
// re-deriving from ancestors on every lookup.
type BlockFlags uint32

const (
	// FlagProofOfStake marks a block produced by the PoS kernel rather than
	// a legacy proof-of-work block.
	FlagProofOfStake BlockFlags = 1 << iota
	// FlagStakeModifier marks a block whose StakeModifier field has been
	// computed and is valid for use by descendants.
	FlagStakeModifier
	// FlagStakeEntropyBit records the extracted entropy bit as a flag so it
	// does not need to be recomputed from the block hash/signature.
	FlagStakeEntropyBit
)

// BlockIndex is one entry in the chain's index. Index references between
// blocks are by position in a ChainIndexArena, not by pointer: this keeps
// the structure a flat, contiguous, easily snapshotted value type instead of
// a pointer graph that needs a garbage collector to reason about.
type BlockIndex struct {
	Height int32
	Hash   chainhash.Hash
	Prev   int32 // index into the owning arena, -1 for the genesis block

	Time          uint32
	Bits          uint32
	Flags         BlockFlags
	StakeModifier uint64
	// StakeModifierChecksum is the high 32 bits of
	// H(prev.checksum || flags || hash_proof_of_stake || stake_modifier).
	StakeModifierChecksum uint32
	HashProofOfStake      chainhash.Hash
}

// IsProofOfStake reports whether the block was produced by the kernel.
func (b *BlockIndex) IsProofOfStake() bool { return b.Flags&FlagProofOfStake != 0 }

// HasStakeModifier reports whether StakeModifier has already been computed.
func (b *BlockIndex) HasStakeModifier() bool { return b.Flags&FlagStakeModifier != 0 }

// StakeEntropyBit returns 0 or 1 depending on FlagStakeEntropyBit.
func (b *BlockIndex) StakeEntropyBit() uint32 {
	if b.Flags&FlagStakeEntropyBit != 0 {
		return 1
	}
	return 0
}

// BlockTime returns Time as a time.Time in UTC.
func (b *BlockIndex) BlockTime() time.Time { return time.Unix(int64(b.Time), 0).UTC() }

// ChainIndexArena owns a contiguous slice of BlockIndex values and a
// hash-to-position lookup, giving the rest of the package pointer-free
// access to ancestors by walking Prev indices instead of following pointers
// through a graph that another goroutine could be mutating.
type ChainIndexArena struct {
	entries []BlockIndex
	byHash  map[chainhash.Hash]int32
}

// NewChainIndexArena returns an empty arena.
func NewChainIndexArena() *ChainIndexArena {
	return &ChainIndexArena{byHash: make(map[chainhash.Hash]int32)}
}

// Add appends a new entry and returns its arena position.
func (a *ChainIndexArena) Add(entry BlockIndex) int32 {
	pos := int32(len(a.entries))
	a.entries = append(a.entries, entry)
	a.byHash[entry.Hash] = pos
	return pos
}

// At returns the entry at a given arena position, or nil if out of range.
func (a *ChainIndexArena) At(pos int32) *BlockIndex {
	if pos < 0 || int(pos) >= len(a.entries) {
		return nil
	}
	return &a.entries[pos]
}

// ByHash returns the entry for a given block hash, or nil if not present.
func (a *ChainIndexArena) ByHash(hash chainhash.Hash) *BlockIndex {
	pos, ok := a.byHash[hash]
	if !ok {
		return nil
	}
	return &a.entries[pos]
}

// Prev returns the predecessor of entry, or nil if entry is the genesis block.
func (a *ChainIndexArena) Prev(entry *BlockIndex) *BlockIndex {
	if entry == nil || entry.Prev < 0 {
		return nil
	}
	return a.At(entry.Prev)
}

// Ancestor walks Prev pointers back to (and including) the given height.
func (a *ChainIndexArena) Ancestor(entry *BlockIndex, height int32) *BlockIndex {
	cur := entry
	for cur != nil && cur.Height > height {
		cur = a.Prev(cur)
	}
	if cur != nil && cur.Height == height {
		return cur
	}
	return nil
}
