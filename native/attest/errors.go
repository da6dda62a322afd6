package attest

import "errors"

var (
	ErrAlreadyExists        = errors.New("attest: attestation already exists")
	ErrNotFound             = errors.New("attest: attestation not found")
	ErrDuplicateInBatch     = errors.New("attest: duplicate business/period in batch")
	ErrEmptyBatch           = errors.New("attest: empty batch")
	ErrVersionNotIncreasing = errors.New("attest: version must strictly increase")
	ErrInvalidVersion       = errors.New("attest: version must be at least 1")
	ErrInvalidMetadata      = errors.New("attest: invalid metadata")
)
