package multisig

import (
	"errors"
	"fmt"
	"time"

	"veritasor/core/events"
	"veritasor/core/state"
	"veritasor/native/access"
	"veritasor/native/common"
	"veritasor/native/fees"
)

var errNilState = errors.New("multisig engine: state not configured")

// DefaultProposalTTL bounds how long a proposal stays executable. Expiry is
// stored as a timestamp and compared lazily at call time; nothing sweeps
// expired proposals.
const DefaultProposalTTL = 7 * 24 * time.Hour

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type accessExecutor interface {
	ApplyPause(caller [20]byte) error
	ApplyUnpause(caller [20]byte) error
	ApplyGrantRole(account [20]byte, role access.Role, caller [20]byte) error
	ApplyRevokeRole(account [20]byte, role access.Role, caller [20]byte) error
}

type feeExecutor interface {
	ApplyConfig(cfg fees.Config, caller [20]byte) error
}

// Engine orchestrates the proposal lifecycle: owners create, approve, reject
// and execute; execution reaches the same mutation surface as the direct
// admin calls through the Apply* operations of the downstream engines.
type Engine struct {
	state   engineState
	auth    common.Authenticator
	emitter events.Emitter
	access  accessExecutor
	fees    feeExecutor
	nowFn   func() int64
	ttl     uint64
}

// NewEngine constructs a multisig engine with a no-op emitter, the default
// proposal TTL and the system clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		ttl:     uint64(DefaultProposalTTL / time.Second),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) { e.state = st }

// SetAuthenticator wires the host authentication capability.
func (e *Engine) SetAuthenticator(a common.Authenticator) { e.auth = a }

// SetAccess wires the access controller targeted by governance actions.
func (e *Engine) SetAccess(ac accessExecutor) { e.access = ac }

// SetFees wires the fee engine targeted by governance actions.
func (e *Engine) SetFees(f feeExecutor) { e.fees = f }

// SetProposalTTL overrides the proposal lifetime in seconds. Zero restores the
// default.
func (e *Engine) SetProposalTTL(seconds uint64) {
	if seconds == 0 {
		e.ttl = uint64(DefaultProposalTTL / time.Second)
		return
	}
	e.ttl = seconds
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

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

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Initialize fixes the owner set and threshold. It may only succeed once; the
// set changes afterwards only through executed proposals.
func (e *Engine) Initialize(owners [][20]byte, threshold uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	exists, err := e.state.KVGet(state.MultisigConfigKey(), nil)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInitialized
	}
	if len(owners) == 0 {
		return fmt.Errorf("%w: at least one owner required", ErrInvalidOwnerSet)
	}
	deduped := make([][20]byte, 0, len(owners))
	seen := make(map[[20]byte]struct{}, len(owners))
	for _, owner := range owners {
		if _, ok := seen[owner]; ok {
			return fmt.Errorf("%w: duplicate owner", ErrInvalidOwnerSet)
		}
		seen[owner] = struct{}{}
		deduped = append(deduped, owner)
	}
	if threshold == 0 || int(threshold) > len(deduped) {
		return ErrInvalidThreshold
	}
	return e.state.KVPut(state.MultisigConfigKey(), &Config{Owners: deduped, Threshold: threshold})
}

func (e *Engine) config() (*Config, error) {
	var cfg Config
	exists, err := e.state.KVGet(state.MultisigConfigKey(), &cfg)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotInitialized
	}
	return &cfg, nil
}

func (cfg *Config) isOwner(addr [20]byte) bool {
	for _, owner := range cfg.Owners {
		if owner == addr {
			return true
		}
	}
	return false
}

// Owners returns the current owner set.
func (e *Engine) Owners() ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	return append([][20]byte(nil), cfg.Owners...), nil
}

// Threshold returns the current approval threshold.
func (e *Engine) Threshold() (uint32, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	cfg, err := e.config()
	if err != nil {
		return 0, err
	}
	return cfg.Threshold, nil
}

func (e *Engine) requireOwner(cfg *Config, caller [20]byte) error {
	if err := common.RequireAuth(e.auth, caller); err != nil {
		return err
	}
	if !cfg.isOwner(caller) {
		return ErrNotOwner
	}
	return nil
}

func validateAction(action Action) error {
	switch action.Kind {
	case ActionPause, ActionUnpause, ActionAddOwner, ActionRemoveOwner:
		return nil
	case ActionChangeThreshold:
		if action.Threshold == 0 {
			return ErrInvalidThreshold
		}
		return nil
	case ActionGrantRole, ActionRevokeRole:
		if !action.Role.Valid() {
			return access.ErrInvalidRole
		}
		return nil
	case ActionUpdateFeeConfig:
		if action.FeeConfig.BaseFee == nil || action.FeeConfig.BaseFee.Sign() < 0 {
			return fees.ErrInvalidConfig
		}
		return nil
	default:
		return ErrUnsupportedAction
	}
}

func (e *Engine) nextProposalID() (uint64, error) {
	var counter uint64
	if _, err := e.state.KVGet(state.ProposalCounterKey(), &counter); err != nil {
		return 0, err
	}
	counter++
	if err := e.state.KVPut(state.ProposalCounterKey(), counter); err != nil {
		return 0, err
	}
	return counter, nil
}

// CreateProposal admits a new proposal from an owner and returns its id.
func (e *Engine) CreateProposal(proposer [20]byte, action Action) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	cfg, err := e.config()
	if err != nil {
		return 0, err
	}
	if err := e.requireOwner(cfg, proposer); err != nil {
		return 0, err
	}
	if err := validateAction(action); err != nil {
		return 0, err
	}
	id, err := e.nextProposalID()
	if err != nil {
		return 0, err
	}
	now := uint64(e.now())
	proposal := &Proposal{
		ID:        id,
		Proposer:  proposer,
		Action:    action,
		Approvals: make([][20]byte, 0, 1),
		CreatedAt: now,
		ExpiresAt: now + e.ttl,
	}
	if err := e.state.KVPut(state.ProposalKey(id), proposal); err != nil {
		return 0, err
	}
	e.emit(events.ProposalCreated{ID: id, Proposer: proposer, Action: action.Kind.String(), Expiry: proposal.ExpiresAt})
	return id, nil
}

func (e *Engine) loadProposal(id uint64) (*Proposal, error) {
	var proposal Proposal
	exists, err := e.state.KVGet(state.ProposalKey(id), &proposal)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrProposalNotFound
	}
	return &proposal, nil
}

// GetProposal returns the stored proposal record, reporting absence
// explicitly.
func (e *Engine) GetProposal(id uint64) (*Proposal, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var proposal Proposal
	exists, err := e.state.KVGet(state.ProposalKey(id), &proposal)
	if err != nil || !exists {
		return nil, false, err
	}
	return &proposal, true, nil
}

// ApprovalCount returns how many distinct owners approved the proposal.
func (e *Engine) ApprovalCount(id uint64) (uint32, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return 0, err
	}
	return uint32(len(proposal.Approvals)), nil
}

func (e *Engine) status(cfg *Config, p *Proposal, now uint64) Status {
	switch {
	case p.Executed:
		return StatusExecuted
	case p.Rejected:
		return StatusRejected
	case now >= p.ExpiresAt:
		return StatusExpired
	case uint32(len(p.Approvals)) >= cfg.Threshold:
		return StatusApproved
	default:
		return StatusPending
	}
}

// Status derives the proposal's lifecycle position at the current time.
func (e *Engine) Status(id uint64) (Status, error) {
	if e == nil || e.state == nil {
		return StatusPending, errNilState
	}
	cfg, err := e.config()
	if err != nil {
		return StatusPending, err
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return StatusPending, err
	}
	return e.status(cfg, proposal, uint64(e.now())), nil
}

// ApproveProposal adds the approver to the approval set. A second approval
// from the same owner is rejected rather than ignored: silently accepting it
// would hide a caller bug.
func (e *Engine) ApproveProposal(approver [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if err := e.requireOwner(cfg, approver); err != nil {
		return err
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return err
	}
	switch status := e.status(cfg, proposal, uint64(e.now())); {
	case status == StatusExpired:
		return ErrProposalExpired
	case status.Terminal():
		return ErrProposalTerminal
	}
	if proposal.HasApproval(approver) {
		return ErrDuplicateApproval
	}
	proposal.Approvals = append(proposal.Approvals, approver)
	if err := e.state.KVPut(state.ProposalKey(id), proposal); err != nil {
		return err
	}
	e.emit(events.ProposalApproved{ID: id, Approver: approver, Approvals: uint32(len(proposal.Approvals))})
	return nil
}

// RejectProposal moves a non-terminal proposal to the rejected terminal state.
// The original proposer may reject even after losing ownership; otherwise the
// caller must be an owner.
func (e *Engine) RejectProposal(rejecter [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if err := common.RequireAuth(e.auth, rejecter); err != nil {
		return err
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return err
	}
	if rejecter != proposal.Proposer && !cfg.isOwner(rejecter) {
		return ErrNotOwner
	}
	if e.status(cfg, proposal, uint64(e.now())).Terminal() {
		return ErrProposalTerminal
	}
	proposal.Rejected = true
	if err := e.state.KVPut(state.ProposalKey(id), proposal); err != nil {
		return err
	}
	e.emit(events.ProposalRejected{ID: id, Caller: rejecter})
	return nil
}

// ExecuteProposal dispatches an approved, unexpired proposal's action and
// marks it executed. Executing a terminal proposal fails, which makes the call
// idempotent in the failing direction.
func (e *Engine) ExecuteProposal(executor [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if err := e.requireOwner(cfg, executor); err != nil {
		return err
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return err
	}
	switch status := e.status(cfg, proposal, uint64(e.now())); status {
	case StatusExecuted, StatusRejected:
		return ErrProposalTerminal
	case StatusExpired:
		return ErrProposalExpired
	case StatusApproved:
	default:
		return ErrProposalNotApproved
	}

	if err := e.dispatch(cfg, proposal.Action, executor); err != nil {
		return err
	}

	proposal.Executed = true
	if err := e.state.KVPut(state.ProposalKey(id), proposal); err != nil {
		return err
	}
	e.emit(events.ProposalExecuted{ID: id, Executor: executor, Action: proposal.Action.Kind.String()})
	return nil
}

// dispatch matches the closed action set exhaustively. Owner-set arms mutate
// the multisig config; the rest reach the same Apply* operations the direct
// admin-gated calls use, event emissions included.
func (e *Engine) dispatch(cfg *Config, action Action, executor [20]byte) error {
	switch action.Kind {
	case ActionPause:
		if e.access == nil {
			return fmt.Errorf("multisig: access executor not configured")
		}
		return e.access.ApplyPause(executor)
	case ActionUnpause:
		if e.access == nil {
			return fmt.Errorf("multisig: access executor not configured")
		}
		return e.access.ApplyUnpause(executor)
	case ActionAddOwner:
		if cfg.isOwner(action.Account) {
			return fmt.Errorf("%w: already an owner", ErrInvalidOwnerSet)
		}
		cfg.Owners = append(cfg.Owners, action.Account)
		return e.state.KVPut(state.MultisigConfigKey(), cfg)
	case ActionRemoveOwner:
		if !cfg.isOwner(action.Account) {
			return fmt.Errorf("%w: not an owner", ErrInvalidOwnerSet)
		}
		if len(cfg.Owners) == 1 {
			return fmt.Errorf("%w: cannot remove the last owner", ErrInvalidOwnerSet)
		}
		if int(cfg.Threshold) > len(cfg.Owners)-1 {
			return ErrInvalidThreshold
		}
		remaining := make([][20]byte, 0, len(cfg.Owners)-1)
		for _, owner := range cfg.Owners {
			if owner != action.Account {
				remaining = append(remaining, owner)
			}
		}
		cfg.Owners = remaining
		return e.state.KVPut(state.MultisigConfigKey(), cfg)
	case ActionChangeThreshold:
		if action.Threshold == 0 || int(action.Threshold) > len(cfg.Owners) {
			return ErrInvalidThreshold
		}
		cfg.Threshold = action.Threshold
		return e.state.KVPut(state.MultisigConfigKey(), cfg)
	case ActionGrantRole:
		if e.access == nil {
			return fmt.Errorf("multisig: access executor not configured")
		}
		return e.access.ApplyGrantRole(action.Account, action.Role, executor)
	case ActionRevokeRole:
		if e.access == nil {
			return fmt.Errorf("multisig: access executor not configured")
		}
		return e.access.ApplyRevokeRole(action.Account, action.Role, executor)
	case ActionUpdateFeeConfig:
		if e.fees == nil {
			return fmt.Errorf("multisig: fee executor not configured")
		}
		return e.fees.ApplyConfig(action.FeeConfig, executor)
	default:
		return ErrUnsupportedAction
	}
}
