package consensus

import "github.com/bt2c-network/pos-consensus/internal/model"

// Node bundles every stateless consensus component bound to one network's
// parameters. The reference implementation reaches singletons like
// Params() and g_validatorRegistry from anywhere; this module instead
// threads one Node value explicitly through every call site, so tests can
// construct an isolated Node per case instead of mutating global state.
type Node struct {
	Params     ChainParams
	Eras       ProtocolEras
	Modifier   StakeModifierEngine
	Kernel     KernelHasher
	Coinstake  CoinstakeVerifier
	Checkpoint CheckpointGuard
	Entropy    EntropyBitExtractor
}

// NewNode constructs every component from a single ChainParams value.
func NewNode(params ChainParams) *Node {
	eras := NewProtocolEras(params)
	return &Node{
		Params:     params,
		Eras:       eras,
		Modifier:   NewStakeModifierEngine(params),
		Kernel:     NewKernelHasher(params),
		Coinstake:  NewCoinstakeVerifier(params),
		Checkpoint: NewCheckpointGuard(params),
		Entropy:    NewEntropyBitExtractor(eras),
	}
}

// VerifyStakeModifierChecksum recomputes current's stake modifier, derives
// its checksum from prevChecksum, and checks the result against any
// checkpoint recorded for current's height. This is the production
// composition of StakeModifierEngine.ComputeNext, StakeModifierChecksum, and
// CheckpointGuard.Check, the way Node's Kernel/Coinstake fields compose the
// kernel and coinstake checks.
func (n *Node) VerifyStakeModifierChecksum(arena *model.ChainIndexArena, current *model.BlockIndex, prevChecksum uint32) (checksum uint32, matchesCheckpoint bool, err error) {
	modifier, _, err := n.Modifier.ComputeNext(arena, current)
	if err != nil {
		return 0, false, err
	}
	checksum, err = StakeModifierChecksum(prevChecksum, uint32(current.Flags), current.HashProofOfStake, modifier)
	if err != nil {
		return 0, false, err
	}
	return checksum, n.Checkpoint.Check(current.Height, checksum), nil
}
