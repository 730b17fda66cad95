package services

import (
	"errors"
	"fmt"

	"agriconnect/internal/domain"
)

var businessErrors = []error{
	domain.ErrValidation,
	domain.ErrProductNotFound,
	domain.ErrProductInUse,
	domain.ErrInsufficientInventory,
	domain.ErrOrderNotFound,
	domain.ErrUnauthorized,
	domain.ErrInvalidStatus,
	domain.ErrInvalidTransition,
	domain.ErrEmailTaken,
	domain.ErrBadCreds,
}

// storeErr passes business errors through and marks everything else as an
// infrastructure failure.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	for _, b := range businessErrors {
		if errors.Is(err, b) {
			return err
		}
	}
	if errors.Is(err, domain.ErrTransaction) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransaction, err)
}
