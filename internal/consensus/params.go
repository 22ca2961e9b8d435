package consensus

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// ModifierIntervalRatio is the length of the last selection-interval section
// relative to the first (RATIO from spec.md's SectionLen formula).
const ModifierIntervalRatio = 3

// Coin is the smallest-unit scaling factor for amounts (1 coin = 1e8 units),
// matching btcutil.SatoshiPerBitcoin.
const Coin = 100_000_000

// ValidatorMinimumStake is the minimum stake (in Coin units) required to
// register as a validator.
const ValidatorMinimumStake = 32 * Coin

// EraThresholds holds the mainnet/testnet switch timestamps for one protocol
// era, copied bit-exactly from the reference implementation.
type EraThresholds struct {
	Mainnet uint32
	Testnet uint32
}

// HeightThresholds holds the mainnet/testnet block-height thresholds some
// eras additionally require past their switch time, copied bit-exactly from
// the reference implementation's super-majority hardfork checks.
type HeightThresholds struct {
	Mainnet int32
	Testnet int32
}

// ChainParams carries every network-specific constant the consensus core
// needs. It plays the role chaincfg.Params plays for btcsuite/btcd, extended
// with the PoS-specific fields the stock struct does not have.
type ChainParams struct {
	Name string
	// IsTestnet selects the Testnet threshold of each EraThresholds pair.
	IsTestnet bool
	// IsRegtest unconditionally enables every era, bypassing both switch
	// time and height-threshold gates, matching the reference
	// implementation's REGTEST network check.
	IsRegtest bool

	StakeMinAge      uint32 // seconds
	StakeMaxAge      uint32 // seconds
	ModifierInterval uint32 // seconds; T_mod in spec.md

	TargetSpacing   uint32 // seconds between blocks, used to size candidate buffers
	MaxClockDrift   uint32 // seconds
	TargetPerCoinDay uint32 // difficulty-1 style target used in the kernel predicate

	V03 EraThresholds
	V04 EraThresholds
	V05 EraThresholds
	V06 EraThresholds
	V07 EraThresholds

	// V06HeightThreshold is the additional super-majority height gate V0.6
	// requires past its switch time (prev.height must exceed this).
	V06HeightThreshold HeightThresholds

	// StakeModifierCheckpoints maps block height to the expected high 32
	// bits of the stake-modifier checksum at that height.
	StakeModifierCheckpoints map[int32]uint32
}

// MainnetParams mirrors the Peercoin-derived defaults used by kernel.cpp,
// restricted to the eras this module implements (V0.2 through V0.7+).
func MainnetParams() ChainParams {
	return ChainParams{
		Name:             "mainnet",
		IsTestnet:        false,
		StakeMinAge:      60 * 60,       // 1 hour
		StakeMaxAge:      90 * 24 * 3600, // 90 days
		ModifierInterval: 6 * 60 * 60,   // 6 hours (T_mod = 21600)
		TargetSpacing:    10 * 60,
		MaxClockDrift:    2 * 60 * 60,
		TargetPerCoinDay: 0x1d00ffff,
		V03: EraThresholds{Mainnet: 1363800000, Testnet: 1359781000},
		V04: EraThresholds{Mainnet: 1399300000, Testnet: 1395700000},
		V05: EraThresholds{Mainnet: 1461700000, Testnet: 1447700000},
		V06: EraThresholds{Mainnet: 1513050000, Testnet: 1508198400},
		V07: EraThresholds{Mainnet: 1552392000, Testnet: 1541505600},
		V06HeightThreshold: HeightThresholds{Mainnet: 339678, Testnet: 301251},
		StakeModifierCheckpoints: map[int32]uint32{
			0:      0x0e00670b,
			19080:  0xad4e4d29,
			30583:  0xdc7bf136,
			99999:  0xf555cfd2,
			219999: 0x91b7444d,
			336000: 0x6c3c8048,
			371850: 0x9b850bdf,
			407813: 0x46fe50b5,
			443561: 0x114a6e38,
			455470: 0x9b7af181,
			479189: 0xe04fb8e0,
			504051: 0x459f5a16,
			589659: 0xbd02492a,
			714688: 0xd70a5b68,
			770396: 0x565fb851,
			801334: 0x90485c37,
		},
	}
}

// TestnetParams is MainnetParams with the testnet switch times and a
// separate checkpoint table.
func TestnetParams() ChainParams {
	p := MainnetParams()
	p.Name = "testnet"
	p.IsTestnet = true
	p.StakeModifierCheckpoints = map[int32]uint32{
		0:      0x0e00670b,
		19080:  0x3711dc3a,
		30583:  0xb480fade,
		99999:  0x9a62eaec,
		219999: 0xeafe96c3,
		336000: 0x8330dc09,
		372751: 0xafb94e2f,
		382019: 0x7f5cf5eb,
		408500: 0x68cadee2,
		412691: 0x93138e67,
		441299: 0x03e195cb,
		442735: 0xe42d94fe,
		516308: 0x04a0897a,
		573702: 0xe69df1ac,
		612778: 0x6be16d62,
	}
	return p
}

// RegtestParams is MainnetParams with IsRegtest set, bypassing every era's
// switch-time and height-threshold gates, matching the reference
// implementation's REGTEST network behavior.
func RegtestParams() ChainParams {
	p := MainnetParams()
	p.Name = "regtest"
	p.IsRegtest = true
	return p
}

// switchTime picks the mainnet or testnet threshold depending on IsTestnet.
func (p ChainParams) switchTime(t EraThresholds) uint32 {
	if p.IsTestnet {
		return t.Testnet
	}
	return t.Mainnet
}

// heightThreshold picks the mainnet or testnet height gate depending on
// IsTestnet, mirroring switchTime.
func (p ChainParams) heightThreshold(t HeightThresholds) int32 {
	if p.IsTestnet {
		return t.Testnet
	}
	return t.Mainnet
}

// zeroHash is reused by callers that need to compare against an empty hash.
var zeroHash chainhash.Hash
