package consensus

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func TestEntropyBitExtractor_PostV04ReadsHashLowBit(t *testing.T) {
	t.Parallel()

	params := MainnetParams()
	extractor := NewEntropyBitExtractor(NewProtocolEras(params))

	var hashEven, hashOdd chainhash.Hash
	hashEven[0] = 0x02
	hashOdd[0] = 0x03

	bit, err := extractor.Extract(params.V04.Mainnet, hashEven, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if bit != 0 {
		t.Fatalf("expected bit 0 for an even low byte, got %d", bit)
	}

	bit, err = extractor.Extract(params.V04.Mainnet, hashOdd, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if bit != 1 {
		t.Fatalf("expected bit 1 for an odd low byte, got %d", bit)
	}
}

func TestEntropyBitExtractor_PreV04ReadsSignatureHash160(t *testing.T) {
	t.Parallel()

	params := MainnetParams()
	extractor := NewEntropyBitExtractor(NewProtocolEras(params))

	blockTime := params.V04.Mainnet - 100
	signature := []byte("a block signature with enough bytes to hash")

	bit, err := extractor.Extract(blockTime, chainhash.Hash{}, signature)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if bit != 0 && bit != 1 {
		t.Fatalf("expected a single bit, got %d", bit)
	}
}

func TestEntropyBitExtractor_PreV04AcceptsEmptySignature(t *testing.T) {
	t.Parallel()

	params := MainnetParams()
	extractor := NewEntropyBitExtractor(NewProtocolEras(params))

	// Hash160 of an empty input is still 20 bytes, so this only fails if
	// the digest itself were somehow short; exercised here to document
	// the length guard rather than to trigger it.
	if _, err := extractor.Extract(params.V04.Mainnet-100, chainhash.Hash{}, []byte{}); err != nil {
		t.Fatalf("Extract with empty signature: %v", err)
	}
}
