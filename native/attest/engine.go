package attest

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"veritasor/core/events"
	"veritasor/core/state"
	"veritasor/native/common"
)

var errNilState = errors.New("attest engine: state not configured")

const maxCurrencyLen = 3

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type accessControl interface {
	RequireNotPaused() error
	RequireAdmin(caller [20]byte) error
}

type feeCharger interface {
	Collect(business [20]byte) (*big.Int, error)
	CalculateFeeAt(business [20]byte, count uint64) (*big.Int, error)
	Charge(business [20]byte, fee *big.Int) error
	BusinessCount(business [20]byte) (uint64, bool, error)
	IncrementBusinessCount(business [20]byte) error
}

// Engine owns the per-(business, period) attestation records, their revocation
// flags and the versioned migration path. Submissions price and count through
// the fee engine; every mutating entry point passes the access guards first.
type Engine struct {
	state   engineState
	access  accessControl
	fees    feeCharger
	auth    common.Authenticator
	emitter events.Emitter
}

// NewEngine creates an attestation engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) { e.state = st }

// SetAccess wires the access controller providing the pause and admin guards.
func (e *Engine) SetAccess(ac accessControl) { e.access = ac }

// SetFees wires the fee engine charged and advanced per accepted submission.
func (e *Engine) SetFees(f feeCharger) { e.fees = f }

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

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.access == nil {
		return fmt.Errorf("attest engine: access control not configured")
	}
	if e.fees == nil {
		return fmt.Errorf("attest engine: fee engine not configured")
	}
	return nil
}

func (e *Engine) exists(business [20]byte, period string) (bool, error) {
	return e.state.KVGet(state.AttestationKey(business, period), nil)
}

// NormalizeCurrency validates and canonicalises a metadata currency code:
// alphabetic, at most three characters, upper-cased for storage.
func NormalizeCurrency(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" || len(trimmed) > maxCurrencyLen {
		return "", fmt.Errorf("%w: currency code must be 1-%d characters", ErrInvalidMetadata, maxCurrencyLen)
	}
	for _, r := range trimmed {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return "", fmt.Errorf("%w: currency code must be alphabetic", ErrInvalidMetadata)
		}
	}
	return strings.ToUpper(trimmed), nil
}

// Submit stores the first attestation for (business, period), charging and
// counting it through the fee engine. Re-submission of the same key fails
// regardless of payload differences.
func (e *Engine) Submit(business [20]byte, period string, root [32]byte, timestamp uint64, version uint32) error {
	return e.submit(business, period, root, timestamp, version, nil)
}

// SubmitWithMetadata behaves like Submit and additionally validates and stores
// the extended metadata record under the same key.
func (e *Engine) SubmitWithMetadata(business [20]byte, period string, root [32]byte, timestamp uint64, version uint32, currency string, net bool) error {
	normalized, err := NormalizeCurrency(currency)
	if err != nil {
		return err
	}
	return e.submit(business, period, root, timestamp, version, &Metadata{Currency: normalized, Net: net})
}

func (e *Engine) submit(business [20]byte, period string, root [32]byte, timestamp uint64, version uint32, meta *Metadata) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.access.RequireNotPaused(); err != nil {
		return err
	}
	if err := common.RequireAuth(e.auth, business); err != nil {
		return err
	}
	if version == 0 {
		return ErrInvalidVersion
	}
	exists, err := e.exists(business, period)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}
	return e.commit(business, period, root, timestamp, version, meta)
}

// commit charges the fee, advances the counter and stores the record. All
// validation must have happened before it runs.
func (e *Engine) commit(business [20]byte, period string, root [32]byte, timestamp uint64, version uint32, meta *Metadata) error {
	fee, err := e.fees.Collect(business)
	if err != nil {
		return err
	}
	return e.store(business, period, root, timestamp, version, meta, fee)
}

// store advances the counter, writes the record and emits. The fee must
// already be charged.
func (e *Engine) store(business [20]byte, period string, root [32]byte, timestamp uint64, version uint32, meta *Metadata, fee *big.Int) error {
	if err := e.fees.IncrementBusinessCount(business); err != nil {
		return err
	}
	record := &Attestation{Root: root, Timestamp: timestamp, Version: version, FeePaid: fee}
	if err := e.state.KVPut(state.AttestationKey(business, period), record); err != nil {
		return err
	}
	if meta != nil {
		if err := e.state.KVPut(state.AttestationMetaKey(business, period), meta); err != nil {
			return err
		}
	}
	e.emit(events.AttestationSubmitted{
		Business:  business,
		Period:    period,
		Root:      root,
		Timestamp: timestamp,
		Version:   version,
		Fee:       new(big.Int).Set(fee),
	})
	return nil
}

// Revoke flags the attestation without touching the stored record. Admin only.
func (e *Engine) Revoke(caller, business [20]byte, period, reason string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.access.RequireAdmin(caller); err != nil {
		return err
	}
	exists, err := e.exists(business, period)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if err := e.state.KVPut(state.RevocationKey(business, period), true); err != nil {
		return err
	}
	e.emit(events.AttestationRevoked{Business: business, Period: period, Caller: caller, Reason: reason})
	return nil
}

// Migrate replaces the root and version of an existing record, preserving its
// timestamp and fee. The new version must strictly increase. Revoked records
// remain migratable; the revocation flag is orthogonal.
func (e *Engine) Migrate(caller, business [20]byte, period string, newRoot [32]byte, newVersion uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.access.RequireAdmin(caller); err != nil {
		return err
	}
	var record Attestation
	exists, err := e.state.KVGet(state.AttestationKey(business, period), &record)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if newVersion <= record.Version {
		return fmt.Errorf("%w: stored %d, proposed %d", ErrVersionNotIncreasing, record.Version, newVersion)
	}
	oldRoot := record.Root
	oldVersion := record.Version
	record.Root = newRoot
	record.Version = newVersion
	if err := e.state.KVPut(state.AttestationKey(business, period), &record); err != nil {
		return err
	}
	e.emit(events.AttestationMigrated{
		Business:   business,
		Period:     period,
		OldRoot:    oldRoot,
		NewRoot:    newRoot,
		OldVersion: oldVersion,
		NewVersion: newVersion,
		Caller:     caller,
	})
	return nil
}

// Get returns the stored record for (business, period), reporting absence
// explicitly so callers can distinguish "no data" from a zero value.
func (e *Engine) Get(business [20]byte, period string) (*Attestation, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var record Attestation
	exists, err := e.state.KVGet(state.AttestationKey(business, period), &record)
	if err != nil || !exists {
		return nil, false, err
	}
	return &record, true, nil
}

// GetMetadata returns the extended metadata when present. Legacy records
// report a distinct "not found", never an error.
func (e *Engine) GetMetadata(business [20]byte, period string) (*Metadata, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var meta Metadata
	exists, err := e.state.KVGet(state.AttestationMetaKey(business, period), &meta)
	if err != nil || !exists {
		return nil, false, err
	}
	return &meta, true, nil
}

// IsRevoked reports the revocation flag, defaulting to false when unknown.
func (e *Engine) IsRevoked(business [20]byte, period string) bool {
	if e == nil || e.state == nil {
		return false
	}
	var revoked bool
	if _, err := e.state.KVGet(state.RevocationKey(business, period), &revoked); err != nil {
		return false
	}
	return revoked
}

// Verify reports whether a live, unrevoked attestation matches the supplied
// root. Revoked and absent records both verify false.
func (e *Engine) Verify(business [20]byte, period string, root [32]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	if e.IsRevoked(business, period) {
		return false, nil
	}
	record, exists, err := e.Get(business, period)
	if err != nil || !exists {
		return false, err
	}
	return record.Root == root, nil
}
