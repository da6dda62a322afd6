package multisig

import (
	"veritasor/native/access"
	"veritasor/native/fees"
)

// ActionKind enumerates the closed set of governable operations. Execution
// dispatches exhaustively on it; adding an action means one new arm.
type ActionKind uint8

const (
	ActionPause ActionKind = iota + 1
	ActionUnpause
	ActionAddOwner
	ActionRemoveOwner
	ActionChangeThreshold
	ActionGrantRole
	ActionRevokeRole
	ActionUpdateFeeConfig
)

var actionNames = map[ActionKind]string{
	ActionPause:           "pause",
	ActionUnpause:         "unpause",
	ActionAddOwner:        "add_owner",
	ActionRemoveOwner:     "remove_owner",
	ActionChangeThreshold: "change_threshold",
	ActionGrantRole:       "grant_role",
	ActionRevokeRole:      "revoke_role",
	ActionUpdateFeeConfig: "update_fee_config",
}

// Valid reports whether the kind is a member of the closed action set.
func (k ActionKind) Valid() bool {
	_, ok := actionNames[k]
	return ok
}

// String returns the canonical action name.
func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unknown"
}

// Action is the tagged payload of a proposal. Only the fields relevant to the
// kind are read at execution time; the rest stay zero.
type Action struct {
	Kind      ActionKind
	Account   [20]byte    // AddOwner, RemoveOwner, GrantRole, RevokeRole
	Role      access.Role // GrantRole, RevokeRole
	Threshold uint32      // ChangeThreshold
	FeeConfig fees.Config // UpdateFeeConfig
}

// Config is the owner set and approval threshold fixed at initialization and
// mutated only through executed proposals.
type Config struct {
	Owners    [][20]byte
	Threshold uint32
}

// Status is the derived lifecycle position of a proposal. Only the terminal
// executed/rejected markers are stored; Approved and Expired are computed at
// read time from the approval set and the stored expiry timestamp.
type Status uint8

const (
	StatusPending Status = iota
	StatusApproved
	StatusExecuted
	StatusRejected
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusExecuted:
		return "executed"
	case StatusRejected:
		return "rejected"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected || s == StatusExpired
}

// Proposal is the stored record of one governance request. Approvals hold
// distinct owner principals in approval order.
type Proposal struct {
	ID        uint64
	Proposer  [20]byte
	Action    Action
	Approvals [][20]byte
	Executed  bool
	Rejected  bool
	CreatedAt uint64
	ExpiresAt uint64
}

// HasApproval reports whether the owner already approved the proposal.
func (p *Proposal) HasApproval(owner [20]byte) bool {
	for _, approver := range p.Approvals {
		if approver == owner {
			return true
		}
	}
	return false
}
