package consensus

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func TestStakeModifierChecksum_Deterministic(t *testing.T) {
	t.Parallel()

	var hash chainhash.Hash
	hash[0] = 0x42

	a, err := StakeModifierChecksum(0x0e00670b, 1, hash, 0xABCD)
	if err != nil {
		t.Fatalf("StakeModifierChecksum: %v", err)
	}
	b, err := StakeModifierChecksum(0x0e00670b, 1, hash, 0xABCD)
	if err != nil {
		t.Fatalf("StakeModifierChecksum: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical inputs to produce identical checksums, got %x and %x", a, b)
	}

	c, err := StakeModifierChecksum(0x0e00670b, 1, hash, 0xABCE)
	if err != nil {
		t.Fatalf("StakeModifierChecksum: %v", err)
	}
	if a == c {
		t.Fatalf("expected a different stake modifier to change the checksum")
	}
}

func TestCheckpointGuard_GenesisAlwaysPasses(t *testing.T) {
	t.Parallel()

	guard := NewCheckpointGuard(MainnetParams())
	if !guard.Check(0, 0xdeadbeef) {
		t.Fatalf("expected height 0 to always pass regardless of checksum")
	}
}

func TestCheckpointGuard_MatchesKnownCheckpoint(t *testing.T) {
	t.Parallel()

	guard := NewCheckpointGuard(MainnetParams())
	if !guard.Check(19080, 0xad4e4d29) {
		t.Fatalf("expected the recorded checksum at height 19080 to pass")
	}
	if guard.Check(19080, 0xdeadbeef) {
		t.Fatalf("expected a mismatched checksum at height 19080 to fail")
	}
}

func TestCheckpointGuard_UncheckpointedHeightAlwaysPasses(t *testing.T) {
	t.Parallel()

	guard := NewCheckpointGuard(MainnetParams())
	if !guard.Check(123456, 0xdeadbeef) {
		t.Fatalf("expected a height with no checkpoint entry to always pass")
	}
}
