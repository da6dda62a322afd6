package common

import "errors"

// ErrUnauthenticated is returned when the host environment refuses to vouch
// for the invoker acting as the named principal.
var ErrUnauthenticated = errors.New("authentication rejected")

// Authenticator is the host-supplied capability answering whether the current
// invoker holds a valid credential for a principal. The ledger never verifies
// credentials itself; it only consumes the yes/no decision.
type Authenticator interface {
	Authenticate(principal [20]byte) bool
}

// RequireAuth consults the authenticator for the given principal. A nil
// authenticator denies everything, which keeps misconfigured deployments
// fail-closed.
func RequireAuth(a Authenticator, principal [20]byte) error {
	if a == nil || !a.Authenticate(principal) {
		return ErrUnauthenticated
	}
	return nil
}
