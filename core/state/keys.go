package state

import (
	"encoding/binary"
)

// Key namespaces. Every persisted entity lives under exactly one of these
// prefixes so that no two components can collide in the shared store.
var (
	attestRecordPrefix   = []byte("attest/record/")
	attestMetaPrefix     = []byte("attest/meta/")
	attestRevokedPrefix  = []byte("attest/revoked/")
	feeConfigKeyBytes    = []byte("fees/config")
	feeTierPrefix        = []byte("fees/tier/")
	feeBusinessPrefix    = []byte("fees/business-tier/")
	feeBracketsKeyBytes  = []byte("fees/volume-brackets")
	feeCountPrefix       = []byte("fees/count/")
	accessRolePrefix     = []byte("access/roles/")
	accessPauseKeyBytes  = []byte("access/paused")
	accessInitKeyBytes   = []byte("access/initialized")
	multisigConfigBytes  = []byte("multisig/config")
	multisigCounterBytes = []byte("multisig/proposal-counter")
	multisigPrefix       = []byte("multisig/proposal/")
)

func compositeKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part...)
	}
	return buf
}

// AttestationKey addresses the attestation record for (business, period).
func AttestationKey(business [20]byte, period string) []byte {
	return compositeKey(attestRecordPrefix, business[:], []byte(period))
}

// AttestationMetaKey addresses the extended metadata for (business, period).
func AttestationMetaKey(business [20]byte, period string) []byte {
	return compositeKey(attestMetaPrefix, business[:], []byte(period))
}

// RevocationKey addresses the revocation flag for (business, period).
func RevocationKey(business [20]byte, period string) []byte {
	return compositeKey(attestRevokedPrefix, business[:], []byte(period))
}

// FeeConfigKey addresses the singleton fee configuration.
func FeeConfigKey() []byte { return feeConfigKeyBytes }

// FeeTierDiscountKey addresses the discount assigned to a tier number.
func FeeTierDiscountKey(tier uint32) []byte {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], tier)
	return compositeKey(feeTierPrefix, raw[:])
}

// FeeBusinessTierKey addresses a business's tier assignment.
func FeeBusinessTierKey(business [20]byte) []byte {
	return compositeKey(feeBusinessPrefix, business[:])
}

// FeeVolumeBracketsKey addresses the volume discount bracket table.
func FeeVolumeBracketsKey() []byte { return feeBracketsKeyBytes }

// FeeBusinessCountKey addresses a business's cumulative submission counter.
func FeeBusinessCountKey(business [20]byte) []byte {
	return compositeKey(feeCountPrefix, business[:])
}

// RoleBitmapKey addresses the role bitmap stored for a principal.
func RoleBitmapKey(account [20]byte) []byte {
	return compositeKey(accessRolePrefix, account[:])
}

// PauseKey addresses the global pause flag.
func PauseKey() []byte { return accessPauseKeyBytes }

// AccessInitKey addresses the one-shot initialization marker.
func AccessInitKey() []byte { return accessInitKeyBytes }

// MultisigConfigKey addresses the owner set and approval threshold.
func MultisigConfigKey() []byte { return multisigConfigBytes }

// ProposalCounterKey addresses the monotonic proposal id allocator.
func ProposalCounterKey() []byte { return multisigCounterBytes }

// ProposalKey addresses a stored proposal by id.
func ProposalKey(id uint64) []byte {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], id)
	return compositeKey(multisigPrefix, raw[:])
}
