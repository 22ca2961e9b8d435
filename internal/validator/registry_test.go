package validator

import (
	"errors"
	"math/big"
	"testing"

	"github.com/bt2c-network/pos-consensus/internal/consensus/errs"
)

const testMinimumStake = 32 * 100_000_000

func pubkey(b byte) []byte {
	return []byte{0x76, 0xa9, 0x14, b, 0xff, 0x88, 0xac}
}

func TestRegisterValidator_RejectsBelowMinimum(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testMinimumStake)
	_, err := r.RegisterValidator(pubkey(1), testMinimumStake-1, 1000)
	if !errors.Is(err, errs.ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}
}

func TestRegisterValidator_ActivatesOnSuccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testMinimumStake)
	v, err := r.RegisterValidator(pubkey(1), testMinimumStake, 1000)
	if err != nil {
		t.Fatalf("RegisterValidator: %v", err)
	}
	if v.Status != StatusActive {
		t.Fatalf("expected StatusActive, got %v", v.Status)
	}
	if v.Reputation.ReputationScore != 50 {
		t.Fatalf("expected initial reputation score 50, got %d", v.Reputation.ReputationScore)
	}

	active := r.GetActiveValidators()
	if len(active) != 1 {
		t.Fatalf("expected 1 active validator, got %d", len(active))
	}
}

func TestRemoveValidator_SoftDeletes(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testMinimumStake)
	v, _ := r.RegisterValidator(pubkey(1), testMinimumStake, 1000)

	if err := r.RemoveValidator(v.ID, 2000); err != nil {
		t.Fatalf("RemoveValidator: %v", err)
	}

	got, err := r.GetValidator(v.ID)
	if err != nil {
		t.Fatalf("GetValidator after removal: %v", err)
	}
	if got.Status != StatusPendingExit {
		t.Fatalf("expected StatusPendingExit, got %v", got.Status)
	}

	if len(r.GetActiveValidators()) != 0 {
		t.Fatalf("removed validator should not be selectable")
	}
}

func TestRemoveValidator_UnknownID(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testMinimumStake)
	var unknown [32]byte
	if err := r.RemoveValidator(unknown, 1000); !errors.Is(err, errs.ErrValidatorNotFound) {
		t.Fatalf("expected ErrValidatorNotFound, got %v", err)
	}
}

func TestUpdateValidatorReputation_ScoreFormula(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testMinimumStake)
	v, _ := r.RegisterValidator(pubkey(1), testMinimumStake, 1000)

	for i := 0; i < 100; i++ {
		if err := r.UpdateValidatorReputation(v.ID, true, 1000); err != nil {
			t.Fatalf("UpdateValidatorReputation: %v", err)
		}
	}
	got, _ := r.GetValidator(v.ID)
	if got.Reputation.BlocksProduced != 100 {
		t.Fatalf("expected 100 blocks produced, got %d", got.Reputation.BlocksProduced)
	}
	// 50 + min(100/10, 30) = 60
	if got.Reputation.ReputationScore != 60 {
		t.Fatalf("expected reputation score 60, got %d", got.Reputation.ReputationScore)
	}

	for i := 0; i < 50; i++ {
		_ = r.UpdateValidatorReputation(v.ID, false, 1000)
	}
	got, _ = r.GetValidator(v.ID)
	// 60 - min(50/5, 20) = 50
	if got.Reputation.ReputationScore != 50 {
		t.Fatalf("expected reputation score 50 after misses, got %d", got.Reputation.ReputationScore)
	}
}

func TestSlash_DefaultRatio(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testMinimumStake)
	v, _ := r.RegisterValidator(pubkey(1), testMinimumStake, 1000)

	slashed, err := r.Slash(v.ID)
	if err != nil {
		t.Fatalf("Slash: %v", err)
	}
	wantSlashed := int64(float64(testMinimumStake) * DefaultSlashRatio)
	if slashed != wantSlashed {
		t.Fatalf("expected slashed amount %d, got %d", wantSlashed, slashed)
	}

	got, _ := r.GetValidator(v.ID)
	if got.Status != StatusSlashed {
		t.Fatalf("expected StatusSlashed, got %v", got.Status)
	}
	if got.StakedAmount != testMinimumStake-wantSlashed {
		t.Fatalf("expected remaining stake %d, got %d", testMinimumStake-wantSlashed, got.StakedAmount)
	}
	if len(r.GetActiveValidators()) != 0 {
		t.Fatalf("slashed validator should not be selectable")
	}
}

func TestSelectNextValidator_Deterministic(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testMinimumStake)
	for i := byte(1); i <= 5; i++ {
		if _, err := r.RegisterValidator(pubkey(i), testMinimumStake*int64(i), 1000); err != nil {
			t.Fatalf("RegisterValidator(%d): %v", i, err)
		}
	}

	var prevHash [32]byte
	prevHash[0] = 0xAB

	first, err := r.SelectNextValidator(prevHash, 123456)
	if err != nil {
		t.Fatalf("SelectNextValidator: %v", err)
	}
	second, err := r.SelectNextValidator(prevHash, 123456)
	if err != nil {
		t.Fatalf("SelectNextValidator: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected deterministic selection for identical (prevHash, slotTime), got %s and %s", first.ID, second.ID)
	}
}

func TestWeight_StakeAndReputationFormula(t *testing.T) {
	t.Parallel()

	equalStake := int64(100) * 100_000_000
	highRep := Validator{StakedAmount: equalStake}
	highRep.Reputation.ReputationScore = 100
	lowRep := Validator{StakedAmount: equalStake}
	lowRep.Reputation.ReputationScore = 0

	// w = (stake/COIN) * (reputation/10 + 1): 100*11 vs 100*1, an 11:1 ratio,
	// not the 101:1 a bare (reputation+1) multiplier would give.
	wHigh := weight(highRep)
	wLow := weight(lowRep)
	if wHigh.Int64() != 1100 {
		t.Fatalf("expected weight 1100 for reputation 100, got %s", wHigh)
	}
	if wLow.Int64() != 100 {
		t.Fatalf("expected weight 100 for reputation 0, got %s", wLow)
	}
	ratio := new(big.Int).Div(wHigh, wLow)
	if ratio.Int64() != 11 {
		t.Fatalf("expected an 11:1 weight ratio between reputation 100 and 0, got %s:1", ratio)
	}
}

func TestSelectNextValidator_NoActiveValidators(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testMinimumStake)
	var prevHash [32]byte
	if _, err := r.SelectNextValidator(prevHash, 1); !errors.Is(err, errs.ErrValidatorNotFound) {
		t.Fatalf("expected ErrValidatorNotFound, got %v", err)
	}
}

func TestSetOnUpdate_FiresOnEveryMutation(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testMinimumStake)
	var seen []string
	r.SetOnUpdate(func(v Validator) {
		seen = append(seen, v.Status.String())
	})

	v, err := r.RegisterValidator(pubkey(1), testMinimumStake, 1000)
	if err != nil {
		t.Fatalf("RegisterValidator: %v", err)
	}
	if err := r.UpdateValidatorReputation(v.ID, true, 1000); err != nil {
		t.Fatalf("UpdateValidatorReputation: %v", err)
	}
	if err := r.RemoveValidator(v.ID, 2000); err != nil {
		t.Fatalf("RemoveValidator: %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("expected 3 update notifications, got %d: %v", len(seen), seen)
	}
	if seen[len(seen)-1] != StatusPendingExit.String() {
		t.Fatalf("expected final notification to report PENDING_EXIT, got %v", seen)
	}
}
