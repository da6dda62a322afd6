package access

import "errors"

var (
	ErrNotInitialized     = errors.New("access: not initialized")
	ErrAlreadyInitialized = errors.New("access: already initialized")
	ErrUnauthorized       = errors.New("access: unauthorized")
	ErrPaused             = errors.New("access: ledger paused")
	ErrInvalidRole        = errors.New("access: invalid role")
)
