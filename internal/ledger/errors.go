package ledger

import "errors"

// Ledger operation errors. Every error rejects exactly one call; the
// ledger state is left untouched and remains usable.
var (
	ErrZeroAmount            = errors.New("amount must be positive")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrOverflow              = errors.New("arithmetic overflow")
	ErrUnderflow             = errors.New("arithmetic underflow")
	ErrInvalidAccount        = errors.New("invalid account")
)
