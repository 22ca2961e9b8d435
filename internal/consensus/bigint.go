package consensus

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// hashToBig treats a chainhash.Hash's internal (little-endian) byte order as
// an unsigned 256-bit integer, the same convention arith_uint256 uses in the
// reference implementation and HashToBig uses in the btcd-family ports this
// module is grounded on. Kernel/selection-hash comparisons operate on the
// returned value rather than comparing raw bytes, so shifts and ordering
// match the numeric semantics the protocol actually specifies.
func hashToBig(hash chainhash.Hash) *big.Int {
	reversed := make([]byte, chainhash.HashSize)
	for i := 0; i < chainhash.HashSize; i++ {
		reversed[i] = hash[chainhash.HashSize-1-i]
	}
	return new(big.Int).SetBytes(reversed)
}

// compactToBig expands a Bitcoin/Peercoin-style 4-byte "compact" difficulty
// target (nBits) into its unsigned big.Int form.
func compactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	exponent := uint(compact >> 24)

	var result *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		result = big.NewInt(int64(mantissa))
	} else {
		result = big.NewInt(int64(mantissa))
		result.Lsh(result, 8*(exponent-3))
	}

	if compact&0x00800000 != 0 {
		result.Neg(result)
	}
	return result
}
