package settlement

import "errors"

var (
	// ErrInsufficientFunds is returned when the source cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	ErrInvalidSource     = errors.New("invalid funding source")
	ErrInvalidTaxPercent = errors.New("tax percent must be between 0 and 100")

	// ErrUserNotFound is returned when user doesn't exist
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateEntry is returned when a purchase already has a ledger
	// entry of the same kind for the user.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")

	ErrInternal = errors.New("internal error")
)
