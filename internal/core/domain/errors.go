package domain

import "errors"

var (
	// ErrValidation marks a missing or malformed request field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown user_id.
	ErrNotFound = errors.New("not found")
	// ErrDependency marks a classifier or store failure. Callers must not
	// substitute a default verdict for it.
	ErrDependency = errors.New("dependency failure")
	// ErrInsufficientFunds marks a debit larger than the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
