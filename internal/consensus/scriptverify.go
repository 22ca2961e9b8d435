package consensus

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/bt2c-network/pos-consensus/internal/consensus/errs"
)

// ScriptVerifier checks that a coinstake's signature script satisfies the
// previous output's scriptPubKey. It is the one place this package reaches
// into txscript directly, kept small so the kernel/coinstake logic above
// stays free of wire.MsgTx plumbing.
type ScriptVerifier struct{}

// NewScriptVerifier returns a ScriptVerifier using the standard script flags.
func NewScriptVerifier() ScriptVerifier { return ScriptVerifier{} }

// Verify runs the script interpreter against input 0 of the coinstake.
func (ScriptVerifier) Verify(tx RawTransaction, prevOutScript []byte, prevOutValue int64) error {
	if len(tx.TxIn) == 0 {
		return fmt.Errorf("%w: coinstake has no inputs", errs.ErrScriptVerifyFailed)
	}

	msgTx := wire.NewMsgTx(tx.Version)
	for _, in := range tx.TxIn {
		msgTx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Hash: in.PreviousOutPoint.Hash, Index: in.PreviousOutPoint.Index},
			SignatureScript:  in.SignatureScript,
			Sequence:         in.Sequence,
		})
	}
	for _, out := range tx.TxOut {
		msgTx.AddTxOut(&wire.TxOut{Value: out.Value, PkScript: out.ScriptPubKey})
	}
	msgTx.LockTime = tx.LockTime

	flags := txscript.StandardVerifyFlags
	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(prevOutScript, prevOutValue)
	hashCache := txscript.NewTxSigHashes(msgTx, prevOutFetcher)

	engine, err := txscript.NewEngine(prevOutScript, msgTx, 0, flags, nil, hashCache, prevOutValue, prevOutFetcher)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrScriptVerifyFailed, err)
	}
	if err := engine.Execute(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrScriptVerifyFailed, err)
	}
	return nil
}
