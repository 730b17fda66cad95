package domain

import "errors"

// Business errors are wrapped with detail via fmt.Errorf("%w: ...") and
// matched with errors.Is at the transport.
var (
	ErrValidation            = errors.New("validation failed")
	ErrProductNotFound       = errors.New("product not found")
	ErrProductInUse          = errors.New("product is referenced by orders")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrOrderNotFound         = errors.New("order not found")
	ErrUnauthorized          = errors.New("not authorized for this order")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrEmailTaken            = errors.New("email already registered")
	ErrBadCreds              = errors.New("invalid email or password")
	ErrTransaction           = errors.New("transaction failed")
)
