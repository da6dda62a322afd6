package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"veritasor/core/types"
)

const (
	// TypeAttestationSubmitted marks a newly stored revenue attestation.
	TypeAttestationSubmitted = "attest.submitted"
	// TypeAttestationRevoked marks an attestation flagged as revoked by an admin.
	TypeAttestationRevoked = "attest.revoked"
	// TypeAttestationMigrated marks an attestation whose root/version was replaced.
	TypeAttestationMigrated = "attest.migrated"
)

// AttestationSubmitted records an accepted submission together with the fee
// charged for it.
type AttestationSubmitted struct {
	Business  [20]byte
	Period    string
	Root      [32]byte
	Timestamp uint64
	Version   uint32
	Fee       *big.Int
}

// EventType satisfies the events.Event interface.
func (AttestationSubmitted) EventType() string { return TypeAttestationSubmitted }

// Event converts the structured payload into a broadcastable event.
func (e AttestationSubmitted) Event() *types.Event {
	attrs := map[string]string{
		"business":  hex.EncodeToString(e.Business[:]),
		"period":    e.Period,
		"root":      hex.EncodeToString(e.Root[:]),
		"timestamp": strconv.FormatUint(e.Timestamp, 10),
		"version":   strconv.FormatUint(uint64(e.Version), 10),
	}
	if e.Fee != nil {
		attrs["fee"] = e.Fee.String()
	}
	return &types.Event{Type: TypeAttestationSubmitted, Attributes: attrs}
}

// AttestationRevoked records an admin revocation and the supplied reason.
type AttestationRevoked struct {
	Business [20]byte
	Period   string
	Caller   [20]byte
	Reason   string
}

// EventType satisfies the events.Event interface.
func (AttestationRevoked) EventType() string { return TypeAttestationRevoked }

// Event converts the structured payload into a broadcastable event.
func (e AttestationRevoked) Event() *types.Event {
	attrs := map[string]string{
		"business": hex.EncodeToString(e.Business[:]),
		"period":   e.Period,
	}
	if !zeroBytes(e.Caller[:]) {
		attrs["caller"] = hex.EncodeToString(e.Caller[:])
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		attrs["reason"] = reason
	}
	return &types.Event{Type: TypeAttestationRevoked, Attributes: attrs}
}

// AttestationMigrated records a version migration carrying both the replaced
// and the replacement root/version pair.
type AttestationMigrated struct {
	Business   [20]byte
	Period     string
	OldRoot    [32]byte
	NewRoot    [32]byte
	OldVersion uint32
	NewVersion uint32
	Caller     [20]byte
}

// EventType satisfies the events.Event interface.
func (AttestationMigrated) EventType() string { return TypeAttestationMigrated }

// Event converts the structured payload into a broadcastable event.
func (e AttestationMigrated) Event() *types.Event {
	attrs := map[string]string{
		"business":   hex.EncodeToString(e.Business[:]),
		"period":     e.Period,
		"oldRoot":    hex.EncodeToString(e.OldRoot[:]),
		"newRoot":    hex.EncodeToString(e.NewRoot[:]),
		"oldVersion": strconv.FormatUint(uint64(e.OldVersion), 10),
		"newVersion": strconv.FormatUint(uint64(e.NewVersion), 10),
	}
	if !zeroBytes(e.Caller[:]) {
		attrs["caller"] = hex.EncodeToString(e.Caller[:])
	}
	return &types.Event{Type: TypeAttestationMigrated, Attributes: attrs}
}
