package consensus

import "github.com/bt2c-network/pos-consensus/internal/model"

// EraFlags is a bitset recording every protocol era a given timestamp/height
// has crossed, computed once per block instead of re-checking each
// IsProtocolVxx predicate at every call site (spec.md's centralized EraFlags
// design note).
type EraFlags uint16

const (
	EraV03 EraFlags = 1 << iota
	EraV04
	EraV05
	EraV06
	EraV07
)

// ProtocolEras answers era-gating questions against one ChainParams value.
// It is intentionally stateless: every method takes the timestamp/height it
// needs rather than reading ambient global state.
type ProtocolEras struct {
	params ChainParams
}

// NewProtocolEras binds era gating to a concrete network's switch times.
func NewProtocolEras(params ChainParams) ProtocolEras {
	return ProtocolEras{params: params}
}

// IsProtocolV03 reports whether a coinstake timestamp is on or after the
// V0.3 switch (kernel time-weight no longer has a floor at StakeMinAge).
func (e ProtocolEras) IsProtocolV03(coinstakeTime uint32) bool {
	return coinstakeTime >= e.params.switchTime(e.params.V03)
}

// IsProtocolV04 reports whether a block timestamp is on or after the V0.4
// switch (entropy bit source moves from the block signature to the hash).
func (e ProtocolEras) IsProtocolV04(blockTime uint32) bool {
	return blockTime >= e.params.switchTime(e.params.V04)
}

// IsProtocolV05 reports whether a transaction timestamp is on or after the
// V0.5 switch (KernelStakeModifier lookup switches from forward to backward walk).
func (e ProtocolEras) IsProtocolV05(txTime uint32) bool {
	return txTime >= e.params.switchTime(e.params.V05)
}

// IsProtocolV06 reports whether a block's predecessor is on or after the V0.6
// switch. V0.6 is a super-majority hardfork: beyond the switch time, prev
// also has to be past a network-specific height before the era activates.
// Regtest bypasses both gates, matching the reference implementation.
func (e ProtocolEras) IsProtocolV06(prev *model.BlockIndex) bool {
	if e.params.IsRegtest {
		return true
	}
	if prev.Time < e.params.switchTime(e.params.V06) {
		return false
	}
	return prev.Height > e.params.heightThreshold(e.params.V06HeightThreshold)
}

// IsProtocolV07 reports whether a transaction timestamp is on or after the V0.7 switch.
func (e ProtocolEras) IsProtocolV07(txTime uint32) bool {
	return txTime >= e.params.switchTime(e.params.V07)
}

// Flags computes the full EraFlags bitset for prev, to be cached on the
// BlockIndex entry built on top of it instead of recomputed per lookup.
func (e ProtocolEras) Flags(prev *model.BlockIndex) EraFlags {
	var f EraFlags
	if e.IsProtocolV03(prev.Time) {
		f |= EraV03
	}
	if e.IsProtocolV04(prev.Time) {
		f |= EraV04
	}
	if e.IsProtocolV05(prev.Time) {
		f |= EraV05
	}
	if e.IsProtocolV06(prev) {
		f |= EraV06
	}
	if e.IsProtocolV07(prev.Time) {
		f |= EraV07
	}
	return f
}

// IsSuperMajority reports whether a super-majority of the most recent window
// blocks (walking Prev pointers from start) declare a version >= minVersion.
func IsSuperMajority(minVersion int32, start *model.BlockIndex, arena *model.ChainIndexArena, blockVersion func(*model.BlockIndex) int32, required, window int) bool {
	have, checked := 0, 0
	cur := start
	for cur != nil && checked < window {
		if blockVersion(cur) >= minVersion {
			have++
		}
		checked++
		cur = arena.Prev(cur)
	}
	return have >= required
}

// HowSuperMajority returns the (have, checked) pair backing IsSuperMajority,
// for callers that want the ratio rather than a yes/no answer (debug RPC,
// telemetry).
func HowSuperMajority(minVersion int32, start *model.BlockIndex, arena *model.ChainIndexArena, blockVersion func(*model.BlockIndex) int32, window int) (have, checked int) {
	cur := start
	for cur != nil && checked < window {
		if blockVersion(cur) >= minVersion {
			have++
		}
		checked++
		cur = arena.Prev(cur)
	}
	return have, checked
}
