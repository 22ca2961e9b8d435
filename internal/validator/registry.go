package validator

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/consensus"
	"github.com/bt2c-network/pos-consensus/internal/consensus/errs"
)

// DefaultSlashRatio is the fraction of stake burned on a single slashable
// offense absent an explicit ratio.
const DefaultSlashRatio = 0.10

// Registry holds every registered validator. A single RWMutex guards it:
// selection and listing take the read lock and can run concurrently with
// each other; registration, removal, reputation updates, and slashing take
// the write lock. This plays the same readers-block-writers role the
// reference implementation's cs_main-nested validator lock does, without
// reaching for a recursive mutex - Go's sync primitives are intentionally
// non-reentrant, so every method here takes the lock at most once per call.
type Registry struct {
	mu           sync.RWMutex
	validators   map[chainhash.Hash]*Validator
	minimumStake int64
	onUpdate     func(Validator)
}

// NewRegistry constructs an empty registry gated at minimumStake.
func NewRegistry(minimumStake int64) *Registry {
	return &Registry{
		validators:   make(map[chainhash.Hash]*Validator),
		minimumStake: minimumStake,
	}
}

// SetOnUpdate installs a callback invoked, outside the registry's lock,
// with a snapshot of a validator after any state-mutating call. A
// production deployment uses this to enqueue the change onto a
// persistence batcher without making the registry itself storage-aware.
func (r *Registry) SetOnUpdate(fn func(Validator)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = fn
}

func (r *Registry) notify(v Validator) {
	r.mu.RLock()
	fn := r.onUpdate
	r.mu.RUnlock()
	if fn != nil {
		fn(v)
	}
}

// RegisterValidator admits a new validator keyed by the hash of its
// scriptPubKey, rejecting stakes below the registry minimum.
func (r *Registry) RegisterValidator(scriptPubKey []byte, stakedAmount int64, now int64) (*Validator, error) {
	if stakedAmount < r.minimumStake {
		return nil, fmt.Errorf("%w: staked %d below minimum %d", errs.ErrInsufficientStake, stakedAmount, r.minimumStake)
	}

	id := ValidatorID(scriptPubKey)

	r.mu.Lock()
	if existing, ok := r.validators[id]; ok {
		existing.StakedAmount = stakedAmount
		snapshot := *existing
		r.mu.Unlock()
		r.notify(snapshot)
		return existing, nil
	}

	v := &Validator{
		ID:               id,
		ScriptPubKey:     append([]byte(nil), scriptPubKey...),
		StakedAmount:     stakedAmount,
		Status:           StatusInactive,
		RegistrationTime: now,
	}
	v.Reputation.ReputationScore = 50
	v.Activate(now)
	r.validators[id] = v
	snapshot := *v
	r.mu.Unlock()
	r.notify(snapshot)
	return v, nil
}

// RemoveValidator soft-deletes a validator by moving it to PENDING_EXIT
// rather than erasing its history, mirroring RemoveValidator in the
// reference implementation.
func (r *Registry) RemoveValidator(id chainhash.Hash, now int64) error {
	r.mu.Lock()
	v, ok := r.validators[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", errs.ErrValidatorNotFound, id)
	}
	v.Deactivate(now)
	v.Status = StatusPendingExit
	snapshot := *v
	r.mu.Unlock()
	r.notify(snapshot)
	return nil
}

// GetValidator returns a copy of the validator's current state.
func (r *Registry) GetValidator(id chainhash.Hash) (Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.validators[id]
	if !ok {
		return Validator{}, fmt.Errorf("%w: %s", errs.ErrValidatorNotFound, id)
	}
	return *v, nil
}

// GetActiveValidators returns a snapshot of every ACTIVE validator meeting
// the minimum stake, sorted by ID for deterministic iteration order.
func (r *Registry) GetActiveValidators() []Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Validator, 0, len(r.validators))
	for _, v := range r.validators {
		if v.Status == StatusActive && v.MeetsMinimumStake(r.minimumStake) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// weight returns the selection weight of an active validator:
// (stake / COIN) * (reputation / 10 + 1), with a floor of 1 so a validator
// never reaches true-zero weight while still ACTIVE.
func weight(v Validator) *big.Int {
	stakeInCoins := new(big.Int).Div(big.NewInt(v.StakedAmount), big.NewInt(consensus.Coin))
	reputationFactor := big.NewInt(int64(v.Reputation.ReputationScore)/10 + 1)
	w := new(big.Int).Mul(stakeInCoins, reputationFactor)
	if w.Sign() <= 0 {
		return big.NewInt(1)
	}
	return w
}

// SelectNextValidator deterministically selects one active validator,
// weighted by stake x reputation, seeded from the previous block hash and
// the slot timestamp. The reference implementation draws from GetRand
// without ever mixing in the selection-seed hash it computes, making
// selection non-deterministic and unverifiable by other nodes; this
// implementation uses that same seed hash to drive the draw, so every
// node reproduces the identical selection for a given (prevHash, slotTime).
func (r *Registry) SelectNextValidator(prevHash chainhash.Hash, slotTime uint32) (*Validator, error) {
	candidates := r.GetActiveValidators()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no active validators", errs.ErrValidatorNotFound)
	}

	totalWeight := new(big.Int)
	weights := make([]*big.Int, len(candidates))
	for i, v := range candidates {
		weights[i] = weight(v)
		totalWeight.Add(totalWeight, weights[i])
	}

	seed := selectionSeed(prevHash, slotTime)
	draw := new(big.Int).Mod(seed, totalWeight)

	cursor := new(big.Int)
	for i, v := range candidates {
		cursor.Add(cursor, weights[i])
		if draw.Cmp(cursor) < 0 {
			selected := v
			return &selected, nil
		}
	}
	// Unreachable given exact arithmetic above; fall back to the last
	// candidate rather than returning a nil validator.
	selected := candidates[len(candidates)-1]
	return &selected, nil
}

// selectionSeed hashes the previous block hash with the slot timestamp to
// produce the deterministic draw used by SelectNextValidator.
func selectionSeed(prevHash chainhash.Hash, slotTime uint32) *big.Int {
	buf := make([]byte, chainhash.HashSize+4)
	copy(buf, prevHash[:])
	buf[chainhash.HashSize] = byte(slotTime)
	buf[chainhash.HashSize+1] = byte(slotTime >> 8)
	buf[chainhash.HashSize+2] = byte(slotTime >> 16)
	buf[chainhash.HashSize+3] = byte(slotTime >> 24)
	digest := chainhash.HashB(buf)
	return new(big.Int).SetBytes(digest)
}

// UpdateValidatorReputation records the outcome of one assigned slot and
// recomputes the validator's reputation score.
func (r *Registry) UpdateValidatorReputation(id chainhash.Hash, produced bool, now int64) error {
	r.mu.Lock()
	v, ok := r.validators[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", errs.ErrValidatorNotFound, id)
	}
	if produced {
		v.Reputation.BlocksProduced++
		v.Reputation.LastActiveTime = now
	} else {
		v.Reputation.BlocksMissed++
	}
	v.Reputation.UpdateScore()
	snapshot := *v
	r.mu.Unlock()
	r.notify(snapshot)
	return nil
}

// Slash applies DefaultSlashRatio to a validator's stake and marks it
// SLASHED, removing it from selection. Registering the same scriptPubKey
// again only updates the stake; the validator stays SLASHED.
func (r *Registry) Slash(id chainhash.Hash) (int64, error) {
	return r.SlashWithRatio(id, DefaultSlashRatio)
}

// SlashWithRatio is Slash with an explicit ratio, for callers (e.g. a
// governance module) applying a non-default penalty.
func (r *Registry) SlashWithRatio(id chainhash.Hash, ratio float64) (int64, error) {
	r.mu.Lock()
	v, ok := r.validators[id]
	if !ok {
		r.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", errs.ErrValidatorNotFound, id)
	}
	slashed, err := v.Slash(ratio)
	snapshot := *v
	r.mu.Unlock()
	if err == nil {
		r.notify(snapshot)
	}
	return slashed, err
}

// ValidatorReward always returns zero for every height, matching the
// reference implementation's GetValidatorReward stub; no reward schedule is
// implemented.
func ValidatorReward(_ int32) int64 {
	return 0
}
