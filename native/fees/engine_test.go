package fees

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"veritasor/core/events"
	"veritasor/core/state"
	"veritasor/storage"
)

type stubAccess struct {
	admin [20]byte
}

func (s *stubAccess) RequireAdmin(caller [20]byte) error {
	if caller != s.admin {
		return fmt.Errorf("not admin")
	}
	return nil
}

type transferRecord struct {
	token, from, to [20]byte
	amount          *big.Int
}

type fakeTransfer struct {
	transfers []transferRecord
	fail      error
}

func (f *fakeTransfer) Transfer(token, from, to [20]byte, amount *big.Int) error {
	if f.fail != nil {
		return f.fail
	}
	f.transfers = append(f.transfers, transferRecord{token: token, from: from, to: to, amount: new(big.Int).Set(amount)})
	return nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestEngine(t *testing.T) (*Engine, *fakeTransfer, *captureEmitter, [20]byte) {
	t.Helper()
	admin := addr(1)
	transfer := &fakeTransfer{}
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state.NewManager(storage.NewMemDB()))
	engine.SetAccess(&stubAccess{admin: admin})
	engine.SetTransfer(transfer)
	engine.SetEmitter(emitter)
	return engine, transfer, emitter, admin
}

func baseConfig(baseFee int64) Config {
	return Config{Token: addr(10), Collector: addr(11), BaseFee: big.NewInt(baseFee), Enabled: true}
}

func TestCalculateFeeWithoutConfig(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	fee, err := engine.CalculateFee(addr(2))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if fee.Sign() != 0 {
		t.Fatalf("expected zero fee, got %s", fee)
	}
}

func TestCalculateFeeDisabledConfig(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)
	cfg := baseConfig(1000)
	cfg.Enabled = false
	if err := engine.Configure(admin, cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	fee, err := engine.CalculateFee(addr(2))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if fee.Sign() != 0 {
		t.Fatalf("expected zero fee for disabled config, got %s", fee)
	}
}

func TestConfigureRejectsNegativeBaseFee(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)
	cfg := baseConfig(0)
	cfg.BaseFee = big.NewInt(-1)
	if err := engine.Configure(admin, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestConfigureEmitsEvent(t *testing.T) {
	engine, _, emitter, admin := newTestEngine(t)
	if err := engine.Configure(admin, baseConfig(1000)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeFeeConfigChanged {
		t.Fatalf("expected fee config event, got %v", emitter.events)
	}
}

func TestConfigureRequiresAdmin(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	if err := engine.Configure(addr(9), baseConfig(1000)); err == nil {
		t.Fatalf("expected admin rejection")
	}
}

func TestTierDiscountApplied(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)
	business := addr(2)
	if err := engine.Configure(admin, baseConfig(1000)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := engine.SetTierDiscount(admin, 1, 2000); err != nil {
		t.Fatalf("set tier discount: %v", err)
	}
	if err := engine.SetBusinessTier(admin, business, 1); err != nil {
		t.Fatalf("set business tier: %v", err)
	}

	fee, err := engine.CalculateFee(business)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if fee.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("expected 800, got %s", fee)
	}
}

func TestDefaultTierIsZeroDiscount(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)
	if err := engine.Configure(admin, baseConfig(1000)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	fee, err := engine.CalculateFee(addr(4))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if fee.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected full base fee, got %s", fee)
	}
}

func TestTierDiscountRejectsOutOfRange(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)
	if err := engine.SetTierDiscount(admin, 1, 10_001); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestVolumeBracketsValidation(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)

	if err := engine.SetVolumeBrackets(admin, []uint64{10}, []uint32{100, 200}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected length mismatch rejection, got %v", err)
	}
	if err := engine.SetVolumeBrackets(admin, []uint64{10, 10}, []uint32{100, 200}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected unsorted rejection, got %v", err)
	}
	if err := engine.SetVolumeBrackets(admin, []uint64{10, 20}, []uint32{100, 10_001}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected bps rejection, got %v", err)
	}
	if err := engine.SetVolumeBrackets(admin, []uint64{10, 20}, []uint32{100, 200}); err != nil {
		t.Fatalf("valid brackets rejected: %v", err)
	}
}

func TestVolumeBracketSelection(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)
	business := addr(2)
	if err := engine.Configure(admin, baseConfig(1000)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := engine.SetVolumeBrackets(admin, []uint64{5, 10}, []uint32{1000, 3000}); err != nil {
		t.Fatalf("set brackets: %v", err)
	}

	// Below the first threshold no bracket qualifies.
	fee, err := engine.CalculateFee(business)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if fee.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected 1000 at count 0, got %s", fee)
	}

	for i := 0; i < 5; i++ {
		if err := engine.IncrementBusinessCount(business); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	fee, err = engine.CalculateFee(business)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if fee.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("expected 900 at count 5, got %s", fee)
	}

	for i := 0; i < 5; i++ {
		if err := engine.IncrementBusinessCount(business); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	fee, err = engine.CalculateFee(business)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if fee.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("expected 700 at count 10, got %s", fee)
	}
}

func TestDiscountsDoNotStack(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)
	business := addr(2)
	if err := engine.Configure(admin, baseConfig(1000)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := engine.SetTierDiscount(admin, 1, 1000); err != nil {
		t.Fatalf("set tier discount: %v", err)
	}
	if err := engine.SetBusinessTier(admin, business, 1); err != nil {
		t.Fatalf("set business tier: %v", err)
	}
	if err := engine.SetVolumeBrackets(admin, []uint64{0}, []uint32{2000}); err != nil {
		t.Fatalf("set brackets: %v", err)
	}

	// 1000 bps tier vs 2000 bps volume: the larger applies, never the sum.
	fee, err := engine.CalculateFee(business)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if fee.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("expected 800 (2000 bps), got %s", fee)
	}
}

func TestFeeTruncatesTowardZero(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)
	business := addr(2)
	if err := engine.Configure(admin, baseConfig(999)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := engine.SetTierDiscount(admin, 1, 3333); err != nil {
		t.Fatalf("set tier discount: %v", err)
	}
	if err := engine.SetBusinessTier(admin, business, 1); err != nil {
		t.Fatalf("set business tier: %v", err)
	}

	// 999 * 6667 / 10000 = 666.03... truncates to 666.
	fee, err := engine.CalculateFee(business)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if fee.Cmp(big.NewInt(666)) != 0 {
		t.Fatalf("expected 666, got %s", fee)
	}
}

func TestCalculateFeeAtUsesSuppliedCount(t *testing.T) {
	engine, _, _, admin := newTestEngine(t)
	business := addr(2)
	if err := engine.Configure(admin, baseConfig(1000)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := engine.SetVolumeBrackets(admin, []uint64{5}, []uint32{2000}); err != nil {
		t.Fatalf("set brackets: %v", err)
	}

	// The stored counter stays at zero; only the supplied count matters.
	fee, err := engine.CalculateFeeAt(business, 0)
	if err != nil {
		t.Fatalf("calculate at 0: %v", err)
	}
	if fee.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected 1000 at count 0, got %s", fee)
	}
	fee, err = engine.CalculateFeeAt(business, 5)
	if err != nil {
		t.Fatalf("calculate at 5: %v", err)
	}
	if fee.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("expected 800 at count 5, got %s", fee)
	}
}

func TestChargeMovesPrecomputedFee(t *testing.T) {
	engine, transfer, emitter, admin := newTestEngine(t)
	business := addr(2)
	if err := engine.Configure(admin, baseConfig(1000)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	emitter.events = nil

	if err := engine.Charge(business, big.NewInt(750)); err != nil {
		t.Fatalf("charge: %v", err)
	}
	if len(transfer.transfers) != 1 || transfer.transfers[0].amount.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("expected one transfer of 750, got %+v", transfer.transfers)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeFeeCollected {
		t.Fatalf("expected fee collected event")
	}

	// Zero and nil fees move nothing and emit nothing.
	if err := engine.Charge(business, big.NewInt(0)); err != nil {
		t.Fatalf("charge zero: %v", err)
	}
	if err := engine.Charge(business, nil); err != nil {
		t.Fatalf("charge nil: %v", err)
	}
	if len(transfer.transfers) != 1 || len(emitter.events) != 1 {
		t.Fatalf("zero/nil charge must be a no-op")
	}
}

func TestCollectRoutesTransfer(t *testing.T) {
	engine, transfer, emitter, admin := newTestEngine(t)
	business := addr(2)
	if err := engine.Configure(admin, baseConfig(1000)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	emitter.events = nil

	fee, err := engine.Collect(business)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if fee.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected 1000, got %s", fee)
	}
	if len(transfer.transfers) != 1 {
		t.Fatalf("expected one transfer, got %d", len(transfer.transfers))
	}
	moved := transfer.transfers[0]
	if moved.from != business || moved.to != addr(11) || moved.token != addr(10) {
		t.Fatalf("unexpected transfer routing: %+v", moved)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeFeeCollected {
		t.Fatalf("expected fee collected event")
	}
}

func TestCollectZeroFeeSkipsTransfer(t *testing.T) {
	engine, transfer, _, _ := newTestEngine(t)
	fee, err := engine.Collect(addr(2))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if fee.Sign() != 0 {
		t.Fatalf("expected zero fee, got %s", fee)
	}
	if len(transfer.transfers) != 0 {
		t.Fatalf("expected no transfer for zero fee")
	}
}

func TestCollectPropagatesTransferFailure(t *testing.T) {
	engine, transfer, _, admin := newTestEngine(t)
	if err := engine.Configure(admin, baseConfig(1000)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	transfer.fail = errors.New("insufficient balance")
	if _, err := engine.Collect(addr(2)); err == nil {
		t.Fatalf("expected transfer failure to propagate")
	}
}

func TestBusinessCountLifecycle(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	business := addr(2)

	count, exists, err := engine.BusinessCount(business)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if exists || count != 0 {
		t.Fatalf("expected no counter before first submission")
	}

	if err := engine.IncrementBusinessCount(business); err != nil {
		t.Fatalf("increment: %v", err)
	}
	count, exists, err = engine.BusinessCount(business)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if !exists || count != 1 {
		t.Fatalf("expected count 1, got %d (exists=%v)", count, exists)
	}
}
