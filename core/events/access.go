package events

import (
	"encoding/hex"

	"veritasor/core/types"
)

const (
	// TypeRoleGranted marks a role bit newly set on a principal.
	TypeRoleGranted = "access.role_granted"
	// TypeRoleRevoked marks a role bit cleared from a principal.
	TypeRoleRevoked = "access.role_revoked"
	// TypePaused marks the global pause flag being raised.
	TypePaused = "access.paused"
	// TypeUnpaused marks the global pause flag being cleared.
	TypeUnpaused = "access.unpaused"
)

// RoleGranted records a role grant accepted by the access controller.
type RoleGranted struct {
	Account [20]byte
	Role    string
	Caller  [20]byte
}

// EventType satisfies the events.Event interface.
func (RoleGranted) EventType() string { return TypeRoleGranted }

// Event converts the structured payload into a broadcastable event.
func (e RoleGranted) Event() *types.Event {
	return &types.Event{Type: TypeRoleGranted, Attributes: roleAttrs(e.Account, e.Role, e.Caller)}
}

// RoleRevoked records a role revocation accepted by the access controller.
type RoleRevoked struct {
	Account [20]byte
	Role    string
	Caller  [20]byte
}

// EventType satisfies the events.Event interface.
func (RoleRevoked) EventType() string { return TypeRoleRevoked }

// Event converts the structured payload into a broadcastable event.
func (e RoleRevoked) Event() *types.Event {
	return &types.Event{Type: TypeRoleRevoked, Attributes: roleAttrs(e.Account, e.Role, e.Caller)}
}

func roleAttrs(account [20]byte, role string, caller [20]byte) map[string]string {
	attrs := map[string]string{
		"account": hex.EncodeToString(account[:]),
		"role":    role,
	}
	if !zeroBytes(caller[:]) {
		attrs["caller"] = hex.EncodeToString(caller[:])
	}
	return attrs
}

// Paused records the pause flag transitioning to true.
type Paused struct {
	Caller [20]byte
}

// EventType satisfies the events.Event interface.
func (Paused) EventType() string { return TypePaused }

// Event converts the structured payload into a broadcastable event.
func (e Paused) Event() *types.Event {
	return &types.Event{Type: TypePaused, Attributes: callerAttrs(e.Caller)}
}

// Unpaused records the pause flag transitioning to false.
type Unpaused struct {
	Caller [20]byte
}

// EventType satisfies the events.Event interface.
func (Unpaused) EventType() string { return TypeUnpaused }

// Event converts the structured payload into a broadcastable event.
func (e Unpaused) Event() *types.Event {
	return &types.Event{Type: TypeUnpaused, Attributes: callerAttrs(e.Caller)}
}

func callerAttrs(caller [20]byte) map[string]string {
	attrs := map[string]string{}
	if !zeroBytes(caller[:]) {
		attrs["caller"] = hex.EncodeToString(caller[:])
	}
	return attrs
}
