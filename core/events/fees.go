package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"veritasor/core/types"
)

const (
	// TypeFeeConfigChanged marks a replacement of the singleton fee configuration.
	TypeFeeConfigChanged = "fees.config_changed"
	// TypeFeeCollected marks a fee charged against a business for a submission.
	TypeFeeCollected = "fees.collected"
)

// FeeConfigChanged records the new fee configuration and who installed it.
type FeeConfigChanged struct {
	Token     [20]byte
	Collector [20]byte
	BaseFee   *big.Int
	Enabled   bool
	Caller    [20]byte
}

// EventType satisfies the events.Event interface.
func (FeeConfigChanged) EventType() string { return TypeFeeConfigChanged }

// Event converts the structured payload into a broadcastable event.
func (e FeeConfigChanged) Event() *types.Event {
	attrs := map[string]string{
		"token":     hex.EncodeToString(e.Token[:]),
		"collector": hex.EncodeToString(e.Collector[:]),
		"enabled":   strconv.FormatBool(e.Enabled),
	}
	if e.BaseFee != nil {
		attrs["baseFee"] = e.BaseFee.String()
	}
	if !zeroBytes(e.Caller[:]) {
		attrs["caller"] = hex.EncodeToString(e.Caller[:])
	}
	return &types.Event{Type: TypeFeeConfigChanged, Attributes: attrs}
}

// FeeCollected records the amount routed from a business to the collector.
type FeeCollected struct {
	Business  [20]byte
	Token     [20]byte
	Collector [20]byte
	Amount    *big.Int
}

// EventType satisfies the events.Event interface.
func (FeeCollected) EventType() string { return TypeFeeCollected }

// Event converts the structured payload into a broadcastable event.
func (e FeeCollected) Event() *types.Event {
	attrs := map[string]string{
		"business":  hex.EncodeToString(e.Business[:]),
		"token":     hex.EncodeToString(e.Token[:]),
		"collector": hex.EncodeToString(e.Collector[:]),
	}
	if e.Amount != nil {
		attrs["amount"] = e.Amount.String()
	}
	return &types.Event{Type: TypeFeeCollected, Attributes: attrs}
}
