package consensus

import (
	"errors"
	"testing"

	"github.com/bt2c-network/pos-consensus/internal/consensus/errs"
)

func TestScriptVerifier_Verify_OpTruePasses(t *testing.T) {
	t.Parallel()

	verifier := NewScriptVerifier()
	tx := RawTransaction{
		Version: 1,
		TxIn:    []TxIn{{PreviousOutPoint: OutPoint{Index: 0}}},
		TxOut:   []TxOut{{Value: 1, ScriptPubKey: []byte{0x51}}},
	}

	if err := verifier.Verify(tx, []byte{0x51}, 1); err != nil {
		t.Fatalf("expected an OP_TRUE script to verify, got %v", err)
	}
}

func TestScriptVerifier_Verify_RejectsEmptyCoinstake(t *testing.T) {
	t.Parallel()

	verifier := NewScriptVerifier()
	if err := verifier.Verify(RawTransaction{}, []byte{0x51}, 1); !errors.Is(err, errs.ErrScriptVerifyFailed) {
		t.Fatalf("expected ErrScriptVerifyFailed for a coinstake with no inputs, got %v", err)
	}
}

func TestScriptVerifier_Verify_RejectsUnsatisfiedScript(t *testing.T) {
	t.Parallel()

	verifier := NewScriptVerifier()
	tx := RawTransaction{
		Version: 1,
		TxIn:    []TxIn{{PreviousOutPoint: OutPoint{Index: 0}}},
		TxOut:   []TxOut{{Value: 1, ScriptPubKey: []byte{0x51}}},
	}

	// OP_FALSE leaves an empty stack item, failing script evaluation.
	if err := verifier.Verify(tx, []byte{0x00}, 1); !errors.Is(err, errs.ErrScriptVerifyFailed) {
		t.Fatalf("expected ErrScriptVerifyFailed for an unsatisfied script, got %v", err)
	}
}
