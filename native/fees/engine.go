package fees

import (
	"errors"
	"fmt"
	"math/big"

	"veritasor/core/events"
	"veritasor/core/state"
)

var errNilState = errors.New("fees engine: state not configured")

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type accessControl interface {
	RequireAdmin(caller [20]byte) error
}

// TokenTransfer is the injected asset-movement capability. The engine signals
// the triple; balance bookkeeping and its failure modes live outside.
type TokenTransfer interface {
	Transfer(token, from, to [20]byte, amount *big.Int) error
}

// Engine computes and collects the discount-aware fee owed for each accepted
// submission and maintains the per-business cumulative counters the volume
// schedule depends on.
type Engine struct {
	state    engineState
	access   accessControl
	emitter  events.Emitter
	transfer TokenTransfer
}

// NewEngine creates a fee engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) { e.state = st }

// SetAccess wires the access controller consulted for admin gating.
func (e *Engine) SetAccess(ac accessControl) { e.access = ac }

// SetTransfer wires the external token transfer capability.
func (e *Engine) SetTransfer(t TokenTransfer) { e.transfer = t }

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

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e.access == nil {
		return fmt.Errorf("fees engine: access control not configured")
	}
	return e.access.RequireAdmin(caller)
}

func validateConfig(cfg Config) error {
	if cfg.BaseFee == nil {
		return fmt.Errorf("%w: base fee required", ErrInvalidConfig)
	}
	if cfg.BaseFee.Sign() < 0 {
		return fmt.Errorf("%w: base fee must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Configure replaces the singleton fee configuration. Admin only.
func (e *Engine) Configure(caller [20]byte, cfg Config) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.ApplyConfig(cfg, caller)
}

// ApplyConfig performs the configuration replacement and emission without
// caller authorization. It exists for the multisig executor.
func (e *Engine) ApplyConfig(cfg Config, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}
	stored := cfg.Clone()
	if err := e.state.KVPut(state.FeeConfigKey(), &stored); err != nil {
		return err
	}
	e.emit(events.FeeConfigChanged{
		Token:     cfg.Token,
		Collector: cfg.Collector,
		BaseFee:   new(big.Int).Set(cfg.BaseFee),
		Enabled:   cfg.Enabled,
		Caller:    caller,
	})
	return nil
}

// Config returns the stored fee configuration, reporting absence explicitly.
func (e *Engine) Config() (Config, bool, error) {
	if e == nil || e.state == nil {
		return Config{}, false, errNilState
	}
	var cfg Config
	exists, err := e.state.KVGet(state.FeeConfigKey(), &cfg)
	if err != nil || !exists {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// SetTierDiscount upserts the discount for a tier number. Admin only.
func (e *Engine) SetTierDiscount(caller [20]byte, tier uint32, bps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if bps > MaxDiscountBps {
		return fmt.Errorf("%w: tier discount %d exceeds %d bps", ErrInvalidConfig, bps, MaxDiscountBps)
	}
	return e.state.KVPut(state.FeeTierDiscountKey(tier), bps)
}

// SetBusinessTier assigns a business to a tier. Admin only. Tier 0 is the
// implicit default for unassigned businesses.
func (e *Engine) SetBusinessTier(caller, business [20]byte, tier uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.KVPut(state.FeeBusinessTierKey(business), tier)
}

// SetVolumeBrackets replaces the volume discount table wholesale. Admin only.
// Thresholds must be strictly ascending and pair one-to-one with discounts.
func (e *Engine) SetVolumeBrackets(caller [20]byte, thresholds []uint64, discounts []uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if len(thresholds) != len(discounts) {
		return fmt.Errorf("%w: threshold/discount length mismatch", ErrInvalidConfig)
	}
	for i, bps := range discounts {
		if bps > MaxDiscountBps {
			return fmt.Errorf("%w: bracket discount %d exceeds %d bps", ErrInvalidConfig, bps, MaxDiscountBps)
		}
		if i > 0 && thresholds[i] <= thresholds[i-1] {
			return fmt.Errorf("%w: thresholds must be strictly ascending", ErrInvalidConfig)
		}
	}
	brackets := VolumeBrackets{
		Thresholds: append([]uint64(nil), thresholds...),
		Discounts:  append([]uint32(nil), discounts...),
	}
	return e.state.KVPut(state.FeeVolumeBracketsKey(), &brackets)
}

func (e *Engine) tierDiscount(business [20]byte) (uint32, error) {
	var tier uint32
	if _, err := e.state.KVGet(state.FeeBusinessTierKey(business), &tier); err != nil {
		return 0, err
	}
	var bps uint32
	if _, err := e.state.KVGet(state.FeeTierDiscountKey(tier), &bps); err != nil {
		return 0, err
	}
	return bps, nil
}

func (e *Engine) volumeDiscount(count uint64) (uint32, error) {
	var brackets VolumeBrackets
	exists, err := e.state.KVGet(state.FeeVolumeBracketsKey(), &brackets)
	if err != nil || !exists {
		return 0, err
	}
	var bps uint32
	for i, threshold := range brackets.Thresholds {
		if count < threshold {
			break
		}
		bps = brackets.Discounts[i]
	}
	return bps, nil
}

// CalculateFee computes the fee owed for the business's next submission
// against its current cumulative count. The tier and volume discounts do not
// stack: the larger of the two applies, so the combined discount can never
// exceed the full schedule width.
func (e *Engine) CalculateFee(business [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	count, _, err := e.BusinessCount(business)
	if err != nil {
		return nil, err
	}
	return e.CalculateFeeAt(business, count)
}

// CalculateFeeAt computes the fee the business would owe if its cumulative
// count were the supplied value. Batch submission prices later items with it
// against the counts its earlier items will produce once committed.
func (e *Engine) CalculateFeeAt(business [20]byte, count uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, exists, err := e.Config()
	if err != nil {
		return nil, err
	}
	if !exists || !cfg.Enabled || cfg.BaseFee == nil || cfg.BaseFee.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	tierBps, err := e.tierDiscount(business)
	if err != nil {
		return nil, err
	}
	volumeBps, err := e.volumeDiscount(count)
	if err != nil {
		return nil, err
	}
	effective := tierBps
	if volumeBps > effective {
		effective = volumeBps
	}
	fee := new(big.Int).Mul(cfg.BaseFee, big.NewInt(int64(MaxDiscountBps-effective)))
	return fee.Div(fee, big.NewInt(MaxDiscountBps)), nil
}

// Charge transfers an already-computed fee from the business to the
// configured collector and emits the collection event. Zero fees move nothing
// and emit nothing.
func (e *Engine) Charge(business [20]byte, fee *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if fee == nil || fee.Sign() <= 0 {
		return nil
	}
	cfg, _, err := e.Config()
	if err != nil {
		return err
	}
	if e.transfer == nil {
		return ErrTransferNotConfigured
	}
	if err := e.transfer.Transfer(cfg.Token, business, cfg.Collector, fee); err != nil {
		return err
	}
	e.emit(events.FeeCollected{
		Business:  business,
		Token:     cfg.Token,
		Collector: cfg.Collector,
		Amount:    new(big.Int).Set(fee),
	})
	return nil
}

// Collect computes the fee and, when positive, signals the transfer from the
// business to the configured collector. It returns the amount charged.
func (e *Engine) Collect(business [20]byte) (*big.Int, error) {
	fee, err := e.CalculateFee(business)
	if err != nil {
		return nil, err
	}
	if err := e.Charge(business, fee); err != nil {
		return nil, err
	}
	return fee, nil
}

// IncrementBusinessCount advances the cumulative counter by exactly one. It
// must be invoked once per accepted submission, in submission order, so that
// a batch of N submissions from the same business observes N strictly
// increasing count values.
func (e *Engine) IncrementBusinessCount(business [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	var count uint64
	if _, err := e.state.KVGet(state.FeeBusinessCountKey(business), &count); err != nil {
		return err
	}
	return e.state.KVPut(state.FeeBusinessCountKey(business), count+1)
}

// BusinessCount returns the cumulative successful-submission counter and
// whether the business has ever submitted.
func (e *Engine) BusinessCount(business [20]byte) (uint64, bool, error) {
	if e == nil || e.state == nil {
		return 0, false, errNilState
	}
	var count uint64
	exists, err := e.state.KVGet(state.FeeBusinessCountKey(business), &count)
	if err != nil {
		return 0, false, err
	}
	return count, exists, nil
}
