package consensus

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bt2c-network/pos-consensus/internal/model"
)

// The collaborator interfaces below are the seams between this module and
// the rest of a node: P2P, block storage, the wallet, script interpretation,
// and block assembly are explicitly out of scope here and are reached only
// through these interfaces.

// TransactionIndex resolves a previous output by outpoint, the way a node's
// transaction index or UTXO set would.
type TransactionIndex interface {
	PrevOutput(ctx context.Context, txid chainhash.Hash, vout uint32) (*PrevOutput, error)
}

// PrevOutput is the subset of a previous transaction's output that the
// kernel predicate needs.
type PrevOutput struct {
	Value          int64
	ScriptPubKey   []byte
	BlockHash      chainhash.Hash
	BlockTime      uint32
	OffsetInBlock  uint32
	TxTime         uint32
}

// BlockIndexStore resolves ancestors and active-chain membership beyond
// what is resident in a ChainIndexArena. It models the node's full block
// index, of which the arena used by one validation call is a working
// subset.
type BlockIndexStore interface {
	ByHash(ctx context.Context, hash chainhash.Hash) (*model.BlockIndex, error)
	// Next returns the active-chain successor of entry, if entry is on the
	// active chain.
	Next(ctx context.Context, entry *model.BlockIndex) (*model.BlockIndex, bool, error)
	// Contains reports whether entry is on the current active chain.
	Contains(ctx context.Context, entry *model.BlockIndex) (bool, error)
	// Tip returns the current active chain tip.
	Tip(ctx context.Context) (*model.BlockIndex, error)
}

// CoinsView answers questions about the live UTXO set, such as a script's
// currently unspent value.
type CoinsView interface {
	UnspentValueForScript(ctx context.Context, scriptPubKey []byte) (int64, error)
	UTXOCount(ctx context.Context) (int64, error)
}

// BlockAssembler builds an unsigned block template for the Minter to sign
// and broadcast; actual transaction selection/fee policy is out of scope.
type BlockAssembler interface {
	CreateNewBlock(ctx context.Context, scriptPubKey []byte, coinstakeSearchWindow time.Duration) (*BlockTemplate, bool, error)
}

// BlockTemplate is an unsigned candidate block plus the coinstake time it
// was assembled against.
type BlockTemplate struct {
	Header      BlockHeader
	CoinstakeTx RawTransaction
}

// BlockHeader is the minimal set of header fields the consensus core reads
// or writes; full block (de)serialization stays a collaborator concern.
type BlockHeader struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Time       uint32
	Bits       uint32
}

// RawTransaction is the minimal transaction shape the kernel and coinstake
// checks need; it is not a full chain transaction codec.
type RawTransaction struct {
	Version  int32
	Time     uint32
	TxIn     []TxIn
	TxOut    []TxOut
	LockTime uint32
}

// TxIn is one transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// TxOut is one transaction output.
type TxOut struct {
	Value        int64
	ScriptPubKey []byte
}

// OutPoint identifies a previous transaction's output by txid and index.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// Wallet signs the coinstake and block header and exposes the destination
// the Minter should pay. Key management and storage are out of scope.
type Wallet interface {
	IsLocked(ctx context.Context) (bool, error)
	MintDestination(ctx context.Context) ([]byte, error)
	SignBlock(ctx context.Context, header *BlockHeader, coinstake *RawTransaction) error
	AvailableUTXOCount(ctx context.Context) (int, error)
}

// NewBlockProcessor hands a freshly signed block to the rest of the node
// (validation, storage, relay) once the Minter has produced it.
type NewBlockProcessor interface {
	ProcessBlockFound(ctx context.Context, header *BlockHeader, coinstake *RawTransaction) error
}

// Clock provides the current time and a cancellable sleep primitive, so the
// Minter loop never blocks on anything but context cancellation and
// explicit waits.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
