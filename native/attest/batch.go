package attest

import (
	"math/big"

	"veritasor/native/common"
)

// SubmitBatch runs the whole list through a phased pipeline so that the call
// is all-or-nothing: authorization, validation over every item, pricing and
// fee charging, and only then the stores. Items are priced in input order, so
// each item for a business quotes off the count its earlier items in the same
// batch will produce — the batch is equivalent to N sequential Submit calls.
func (e *Engine) SubmitBatch(items []BatchItem) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.access.RequireNotPaused(); err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrEmptyBatch
	}

	// Phase 1: authenticate each distinct business exactly once, however many
	// items it contributes.
	authenticated := make(map[[20]byte]struct{}, len(items))
	for _, item := range items {
		if _, ok := authenticated[item.Business]; ok {
			continue
		}
		if err := common.RequireAuth(e.auth, item.Business); err != nil {
			return err
		}
		authenticated[item.Business] = struct{}{}
	}

	// Phase 2: the full list must validate before any write happens.
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Version == 0 {
			return ErrInvalidVersion
		}
		key := string(item.Business[:]) + "/" + item.Period
		if _, ok := seen[key]; ok {
			return ErrDuplicateInBatch
		}
		seen[key] = struct{}{}
		exists, err := e.exists(item.Business, item.Period)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyExists
		}
	}

	// Phase 3: price every item against the count it will observe, then charge
	// every fee. The transfers run before the first record lands, so a failed
	// transfer aborts with no record stored, no counter advanced and no
	// submission event emitted.
	counts := make(map[[20]byte]uint64, len(authenticated))
	for business := range authenticated {
		count, _, err := e.fees.BusinessCount(business)
		if err != nil {
			return err
		}
		counts[business] = count
	}
	quotes := make([]*big.Int, len(items))
	for i, item := range items {
		fee, err := e.fees.CalculateFeeAt(item.Business, counts[item.Business])
		if err != nil {
			return err
		}
		quotes[i] = fee
		counts[item.Business]++
	}
	for i, item := range items {
		if err := e.fees.Charge(item.Business, quotes[i]); err != nil {
			return err
		}
	}

	// Phase 4: store and emit in input order, one event per item.
	for i, item := range items {
		if err := e.store(item.Business, item.Period, item.Root, item.Timestamp, item.Version, nil, quotes[i]); err != nil {
			return err
		}
	}
	return nil
}
