package consensus

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// StakeModifierChecksum computes H(prevChecksum || flags || hashProofOfStake
// || stakeModifier) and returns the high 32 bits, the same construction
// kernel.cpp's GetStakeModifierChecksum uses to let CheckpointGuard catch a
// diverged stake-modifier chain without storing the full 64-bit modifier at
// every checkpoint height.
func StakeModifierChecksum(prevChecksum uint32, flags uint32, hashProofOfStake chainhash.Hash, stakeModifier uint64) (uint32, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, prevChecksum); err != nil {
		return 0, fmt.Errorf("write prev checksum: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, flags); err != nil {
		return 0, fmt.Errorf("write flags: %w", err)
	}
	if _, err := buf.Write(hashProofOfStake[:]); err != nil {
		return 0, fmt.Errorf("write hash proof of stake: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, stakeModifier); err != nil {
		return 0, fmt.Errorf("write stake modifier: %w", err)
	}

	digest := chainhash.DoubleHashB(buf.Bytes())
	// high 32 bits of the digest, read little-endian off the tail 4 bytes.
	return binary.LittleEndian.Uint32(digest[len(digest)-4:]), nil
}

// CheckpointGuard validates computed stake-modifier checksums against the
// hardcoded per-height checkpoints in ChainParams.
type CheckpointGuard struct {
	params ChainParams
}

// NewCheckpointGuard binds checkpoint checking to one network's checkpoint table.
func NewCheckpointGuard(params ChainParams) CheckpointGuard {
	return CheckpointGuard{params: params}
}

// Check reports whether checksum matches the checkpoint recorded for
// height, if any. Height 0 always passes: genesis blocks are a BT2C-specific
// override, since genesis stake modifiers are not derived from ancestor
// selection and would otherwise never match a checkpoint computed the usual
// way.
func (g CheckpointGuard) Check(height int32, checksum uint32) bool {
	if height == 0 {
		return true
	}
	want, ok := g.params.StakeModifierCheckpoints[height]
	if !ok {
		return true
	}
	return want == checksum
}
