package fees

import "math/big"

// MaxDiscountBps is the full schedule width: 10000 bps = 100%.
const MaxDiscountBps = 10_000

// Config is the singleton fee configuration. An absent or disabled config
// makes every fee computation return zero.
type Config struct {
	Token     [20]byte
	Collector [20]byte
	BaseFee   *big.Int
	Enabled   bool
}

// Clone returns a copy with a duplicated BaseFee to avoid aliasing between
// callers and stored state.
func (c Config) Clone() Config {
	clone := c
	if c.BaseFee != nil {
		clone.BaseFee = new(big.Int).Set(c.BaseFee)
	}
	return clone
}

// VolumeBrackets is the wholesale-replaced step function mapping cumulative
// submission counts to discounts. Thresholds are strictly ascending and each
// discount pairs with the threshold at the same index.
type VolumeBrackets struct {
	Thresholds []uint64
	Discounts  []uint32
}
