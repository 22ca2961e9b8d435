package consensus

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var errEntropySourceTooShort = errors.New("consensus: block signature too short for entropy extraction")

// EntropyBitExtractor derives the single stake-entropy bit mixed into each
// modifier selection round. The source of that bit changed at the V0.4
// switch, so callers must supply the block's era-gated timestamp.
type EntropyBitExtractor struct {
	eras ProtocolEras
}

// NewEntropyBitExtractor binds extraction to a network's era thresholds.
func NewEntropyBitExtractor(eras ProtocolEras) EntropyBitExtractor {
	return EntropyBitExtractor{eras: eras}
}

// Extract returns 0 or 1. blockTime gates which source is used: V0.4+ reads
// the low bit of the block hash; earlier blocks read bit 7 of byte 19 of
// Hash160(blockSignature).
func (e EntropyBitExtractor) Extract(blockTime uint32, blockHash chainhash.Hash, blockSignature []byte) (uint32, error) {
	if e.eras.IsProtocolV04(blockTime) {
		return uint32(blockHash[0] & 1), nil
	}

	digest := btcutil.Hash160(blockSignature)
	if len(digest) < 20 {
		return 0, errEntropySourceTooShort
	}
	return uint32((digest[19] >> 7) & 1), nil
}
