package access

// Role is a bit flag within a principal's role bitmap. Multiple roles combine
// with OR on the same principal.
type Role uint32

const (
	// RoleAdmin may grant and revoke roles, revoke and migrate attestations,
	// maintain the fee schedule and unpause the ledger.
	RoleAdmin Role = 1 << iota
	// RoleAttestor is reserved for delegated submission flows.
	RoleAttestor
	// RoleBusiness marks principals registered as attesting businesses.
	RoleBusiness
	// RoleOperator may pause (but not unpause) the ledger.
	RoleOperator
)

var roleNames = map[Role]string{
	RoleAdmin:    "ADMIN",
	RoleAttestor: "ATTESTOR",
	RoleBusiness: "BUSINESS",
	RoleOperator: "OPERATOR",
}

// Valid reports whether r is exactly one known role bit.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// String returns the canonical name for a single role bit.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}
