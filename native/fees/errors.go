package fees

import "errors"

var (
	ErrInvalidConfig         = errors.New("fees: invalid config")
	ErrTransferNotConfigured = errors.New("fees: token transfer not configured")
)
