package events

import (
	"encoding/hex"
	"strconv"

	"veritasor/core/types"
)

const (
	// TypeProposalCreated marks a new governance proposal accepted for voting.
	TypeProposalCreated = "multisig.proposed"
	// TypeProposalApproved marks an owner approval recorded on a proposal.
	TypeProposalApproved = "multisig.approved"
	// TypeProposalRejected marks a proposal moved to the rejected terminal state.
	TypeProposalRejected = "multisig.rejected"
	// TypeProposalExecuted marks a proposal whose action was applied to state.
	TypeProposalExecuted = "multisig.executed"
)

// ProposalCreated records the admission of a new proposal.
type ProposalCreated struct {
	ID       uint64
	Proposer [20]byte
	Action   string
	Expiry   uint64
}

// EventType satisfies the events.Event interface.
func (ProposalCreated) EventType() string { return TypeProposalCreated }

// Event converts the structured payload into a broadcastable event.
func (e ProposalCreated) Event() *types.Event {
	attrs := map[string]string{
		"id":     strconv.FormatUint(e.ID, 10),
		"action": e.Action,
	}
	if !zeroBytes(e.Proposer[:]) {
		attrs["proposer"] = hex.EncodeToString(e.Proposer[:])
	}
	if e.Expiry > 0 {
		attrs["expiry"] = strconv.FormatUint(e.Expiry, 10)
	}
	return &types.Event{Type: TypeProposalCreated, Attributes: attrs}
}

// ProposalApproved records a distinct owner approval and the running count.
type ProposalApproved struct {
	ID        uint64
	Approver  [20]byte
	Approvals uint32
}

// EventType satisfies the events.Event interface.
func (ProposalApproved) EventType() string { return TypeProposalApproved }

// Event converts the structured payload into a broadcastable event.
func (e ProposalApproved) Event() *types.Event {
	attrs := map[string]string{
		"id":        strconv.FormatUint(e.ID, 10),
		"approvals": strconv.FormatUint(uint64(e.Approvals), 10),
	}
	if !zeroBytes(e.Approver[:]) {
		attrs["approver"] = hex.EncodeToString(e.Approver[:])
	}
	return &types.Event{Type: TypeProposalApproved, Attributes: attrs}
}

// ProposalRejected records a proposal reaching the rejected terminal state.
type ProposalRejected struct {
	ID     uint64
	Caller [20]byte
}

// EventType satisfies the events.Event interface.
func (ProposalRejected) EventType() string { return TypeProposalRejected }

// Event converts the structured payload into a broadcastable event.
func (e ProposalRejected) Event() *types.Event {
	attrs := map[string]string{"id": strconv.FormatUint(e.ID, 10)}
	if !zeroBytes(e.Caller[:]) {
		attrs["caller"] = hex.EncodeToString(e.Caller[:])
	}
	return &types.Event{Type: TypeProposalRejected, Attributes: attrs}
}

// ProposalExecuted records a proposal whose action was dispatched.
type ProposalExecuted struct {
	ID       uint64
	Executor [20]byte
	Action   string
}

// EventType satisfies the events.Event interface.
func (ProposalExecuted) EventType() string { return TypeProposalExecuted }

// Event converts the structured payload into a broadcastable event.
func (e ProposalExecuted) Event() *types.Event {
	attrs := map[string]string{
		"id":     strconv.FormatUint(e.ID, 10),
		"action": e.Action,
	}
	if !zeroBytes(e.Executor[:]) {
		attrs["executor"] = hex.EncodeToString(e.Executor[:])
	}
	return &types.Event{Type: TypeProposalExecuted, Attributes: attrs}
}
