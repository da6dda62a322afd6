package attest

import "math/big"

// Attestation is the live record stored per (business, period). The root is an
// opaque merkle root supplied by the caller; the ledger compares it but never
// recomputes it. FeePaid records the fee charged on first submission and
// survives migrations unchanged.
type Attestation struct {
	Root      [32]byte
	Timestamp uint64
	Version   uint32
	FeePaid   *big.Int
}

// Metadata is the optional extended record stored alongside an attestation.
// Legacy records carry no metadata, which reads report as a distinct
// "not found" rather than an error.
type Metadata struct {
	Currency string
	Net      bool
}

// BatchItem is one submission inside a batch call.
type BatchItem struct {
	Business  [20]byte
	Period    string
	Root      [32]byte
	Timestamp uint64
	Version   uint32
}
