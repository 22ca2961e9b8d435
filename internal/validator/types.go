// Package validator implements the validator registry: registration,
// weighted-random selection, reputation scoring, and slashing.
package validator

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Status mirrors the reference implementation's ValidatorStatus enum.
type Status int

const (
	StatusInactive Status = iota
	StatusActive
	StatusSlashed
	StatusPendingExit
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "INACTIVE"
	case StatusActive:
		return "ACTIVE"
	case StatusSlashed:
		return "SLASHED"
	case StatusPendingExit:
		return "PENDING_EXIT"
	default:
		return "UNKNOWN"
	}
}

// Reputation tracks a validator's block-production history and the
// derived score used to weight selection.
type Reputation struct {
	BlocksProduced    uint32
	BlocksMissed      uint32
	SlashableOffenses uint32
	ReputationScore   int32
	FirstActiveTime   int64
	LastActiveTime    int64
	TotalActiveTime   int64
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// UpdateScore recomputes ReputationScore from the current counters:
//
//	score = clamp(50 + min(produced/10, 30) - min(missed/5, 20) - min(offenses*10, 50), 0, 100)
func (r *Reputation) UpdateScore() {
	produced := int32(r.BlocksProduced)
	missed := int32(r.BlocksMissed)
	offenses := int32(r.SlashableOffenses)

	score := 50 + min32(produced/10, 30) - min32(missed/5, 20) - min32(offenses*10, 50)
	r.ReputationScore = clamp(score, 0, 100)
}

// Validator is one registry entry.
type Validator struct {
	ID               chainhash.Hash
	ScriptPubKey     []byte
	StakedAmount     int64
	Status           Status
	Reputation       Reputation
	RegistrationTime int64
}

// MeetsMinimumStake reports whether StakedAmount is still at or above the
// registration minimum.
func (v *Validator) MeetsMinimumStake(minimumStake int64) bool {
	return v.StakedAmount >= minimumStake
}

// Activate transitions the validator to ACTIVE, recording firstActiveTime
// on first activation.
func (v *Validator) Activate(now int64) {
	if v.Status != StatusActive {
		if v.Reputation.FirstActiveTime == 0 {
			v.Reputation.FirstActiveTime = now
		}
		v.Status = StatusActive
	}
	v.Reputation.LastActiveTime = now
}

// Deactivate transitions the validator to INACTIVE, accumulating the active
// duration into TotalActiveTime.
func (v *Validator) Deactivate(now int64) {
	if v.Status == StatusActive && v.Reputation.LastActiveTime > 0 {
		v.Reputation.TotalActiveTime += now - v.Reputation.LastActiveTime
	}
	v.Status = StatusInactive
}

// Slash deducts ratio*StakedAmount, records a slashable offense, recomputes
// the reputation score, and sets Status to SLASHED. It returns the amount
// deducted.
func (v *Validator) Slash(ratio float64) (int64, error) {
	if ratio <= 0 || ratio > 1 {
		return 0, fmt.Errorf("validator: slash ratio %.4f out of range (0,1]", ratio)
	}
	v.Reputation.SlashableOffenses++
	v.Reputation.UpdateScore()

	amount := int64(float64(v.StakedAmount) * ratio)
	v.StakedAmount -= amount
	v.Status = StatusSlashed
	return amount, nil
}

// ValidatorID derives the deterministic validator ID from a scriptPubKey,
// the same way the reference implementation hashes scriptPubKey to form
// validatorId.
func ValidatorID(scriptPubKey []byte) chainhash.Hash {
	return chainhash.HashH(scriptPubKey)
}
