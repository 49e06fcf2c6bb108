package portfolio

import "errors"

// Validation errors: reported before any mutation, the caller re-prompts.
var (
	ErrInvalidTicker   = errors.New("ticker symbol is required")
	ErrInvalidAmount   = errors.New("quantity and total_value must be valid non-negative numbers")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrInvalidAction   = errors.New("action must be either \"buy\" or \"sell\"")
	ErrInvalidCost     = errors.New("cost cannot be negative")
)

// Business-rule errors: no mutation occurs.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrPositionNotFound    = errors.New("position not found")
	ErrHoldingsNotFound    = errors.New("holdings not found")
)

// ErrCorruptPosition flags a data-integrity violation (for example a reduce
// that would drive cost basis negative). It is a programming or data error,
// not a user error; the transaction is rejected rather than patched up.
var ErrCorruptPosition = errors.New("position integrity violation")
