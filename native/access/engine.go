package access

import (
	"errors"

	"veritasor/core/events"
	"veritasor/core/state"
	"veritasor/native/common"
)

var errNilState = errors.New("access engine: state not configured")

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Engine owns the role bitmaps and the global pause flag. Every mutating entry
// point in the ledger consults it before touching any other state.
type Engine struct {
	state   engineState
	auth    common.Authenticator
	emitter events.Emitter
}

// NewEngine creates an access engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) { e.state = st }

// SetAuthenticator wires the host authentication capability.
func (e *Engine) SetAuthenticator(a common.Authenticator) { e.auth = a }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

// Initialize records the init marker and grants ADMIN to the supplied
// principal. It may only succeed once per store.
func (e *Engine) Initialize(admin [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	var marker bool
	exists, err := e.state.KVGet(state.AccessInitKey(), &marker)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInitialized
	}
	if err := e.state.KVPut(state.AccessInitKey(), true); err != nil {
		return err
	}
	return e.applyGrant(admin, RoleAdmin, admin)
}

func (e *Engine) requireInitialized() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	var marker bool
	exists, err := e.state.KVGet(state.AccessInitKey(), &marker)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotInitialized
	}
	return nil
}

func (e *Engine) roles(account [20]byte) (Role, error) {
	var bitmap uint32
	if _, err := e.state.KVGet(state.RoleBitmapKey(account), &bitmap); err != nil {
		return 0, err
	}
	return Role(bitmap), nil
}

// Roles returns the full role bitmap stored for the principal.
func (e *Engine) Roles(account [20]byte) (Role, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.roles(account)
}

// HasRole reports whether the principal holds the role bit. Read errors result
// in a false return, matching the best-effort semantics required by callers.
func (e *Engine) HasRole(account [20]byte, role Role) bool {
	if e == nil || e.state == nil {
		return false
	}
	bitmap, err := e.roles(account)
	if err != nil {
		return false
	}
	return bitmap&role != 0
}

// RequireAdmin authenticates the caller and checks the ADMIN bit. It is the
// guard every admin-only entry point in the ledger must pass first.
func (e *Engine) RequireAdmin(caller [20]byte) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := common.RequireAuth(e.auth, caller); err != nil {
		return err
	}
	if !e.HasRole(caller, RoleAdmin) {
		return ErrUnauthorized
	}
	return nil
}

// GrantRole sets the role bit on the account. Granting a role the account
// already holds is a no-op and emits nothing.
func (e *Engine) GrantRole(caller, account [20]byte, role Role) error {
	if err := e.RequireAdmin(caller); err != nil {
		return err
	}
	return e.ApplyGrantRole(account, role, caller)
}

// RevokeRole clears the role bit on the account. Revoking an absent role is a
// no-op and emits nothing.
func (e *Engine) RevokeRole(caller, account [20]byte, role Role) error {
	if err := e.RequireAdmin(caller); err != nil {
		return err
	}
	return e.ApplyRevokeRole(account, role, caller)
}

// ApplyGrantRole performs the grant mutation and emission without caller
// authorization. It exists for the multisig executor, which carries its own
// collective authorization.
func (e *Engine) ApplyGrantRole(account [20]byte, role Role, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.applyGrant(account, role, caller)
}

func (e *Engine) applyGrant(account [20]byte, role Role, caller [20]byte) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	bitmap, err := e.roles(account)
	if err != nil {
		return err
	}
	if bitmap&role != 0 {
		return nil
	}
	if err := e.state.KVPut(state.RoleBitmapKey(account), uint32(bitmap|role)); err != nil {
		return err
	}
	e.emit(events.RoleGranted{Account: account, Role: role.String(), Caller: caller})
	return nil
}

// ApplyRevokeRole performs the revoke mutation and emission without caller
// authorization; see ApplyGrantRole.
func (e *Engine) ApplyRevokeRole(account [20]byte, role Role, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	bitmap, err := e.roles(account)
	if err != nil {
		return err
	}
	if bitmap&role == 0 {
		return nil
	}
	if err := e.state.KVPut(state.RoleBitmapKey(account), uint32(bitmap&^role)); err != nil {
		return err
	}
	e.emit(events.RoleRevoked{Account: account, Role: role.String(), Caller: caller})
	return nil
}

// Initialized reports whether the set-once init marker is present. Read
// errors report false.
func (e *Engine) Initialized() bool {
	if e == nil || e.state == nil {
		return false
	}
	var marker bool
	exists, err := e.state.KVGet(state.AccessInitKey(), &marker)
	if err != nil {
		return false
	}
	return exists
}

// IsPaused reports the global pause flag. Read errors report false so that
// reads stay available when the store is degraded.
func (e *Engine) IsPaused() bool {
	if e == nil || e.state == nil {
		return false
	}
	var paused bool
	if _, err := e.state.KVGet(state.PauseKey(), &paused); err != nil {
		return false
	}
	return paused
}

// RequireNotPaused is the guard every mutating attestation entry point must
// pass before touching state.
func (e *Engine) RequireNotPaused() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.IsPaused() {
		return ErrPaused
	}
	return nil
}

// Pause raises the pause flag. The caller must authenticate as itself and hold
// ADMIN or OPERATOR.
func (e *Engine) Pause(caller [20]byte) error {
	if err := e.requireInitialized(); err != nil {
		return err
	}
	if err := common.RequireAuth(e.auth, caller); err != nil {
		return err
	}
	if !e.HasRole(caller, RoleAdmin) && !e.HasRole(caller, RoleOperator) {
		return ErrUnauthorized
	}
	return e.ApplyPause(caller)
}

// Unpause clears the pause flag. ADMIN only.
func (e *Engine) Unpause(caller [20]byte) error {
	if err := e.RequireAdmin(caller); err != nil {
		return err
	}
	return e.ApplyUnpause(caller)
}

// ApplyPause raises the flag without caller authorization, for the multisig
// executor. Raising an already-raised flag is a no-op and emits nothing.
func (e *Engine) ApplyPause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.IsPaused() {
		return nil
	}
	if err := e.state.KVPut(state.PauseKey(), true); err != nil {
		return err
	}
	e.emit(events.Paused{Caller: caller})
	return nil
}

// ApplyUnpause clears the flag without caller authorization; see ApplyPause.
func (e *Engine) ApplyUnpause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.IsPaused() {
		return nil
	}
	if err := e.state.KVPut(state.PauseKey(), false); err != nil {
		return err
	}
	e.emit(events.Unpaused{Caller: caller})
	return nil
}
