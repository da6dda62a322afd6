package multisig

import "errors"

var (
	ErrNotInitialized      = errors.New("multisig: not initialized")
	ErrAlreadyInitialized  = errors.New("multisig: already initialized")
	ErrNotOwner            = errors.New("multisig: caller is not an owner")
	ErrProposalNotFound    = errors.New("multisig: proposal not found")
	ErrDuplicateApproval   = errors.New("multisig: duplicate approval")
	ErrProposalNotApproved = errors.New("multisig: approval threshold not met")
	ErrProposalExpired     = errors.New("multisig: proposal expired")
	ErrProposalTerminal    = errors.New("multisig: proposal already terminal")
	ErrInvalidThreshold    = errors.New("multisig: threshold out of range")
	ErrInvalidOwnerSet     = errors.New("multisig: invalid owner set")
	ErrUnsupportedAction   = errors.New("multisig: unsupported action")
)
