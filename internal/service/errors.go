package service

import (
	"errors"
	"fmt"
)

var (
	ErrGiftCardNotFound    = errors.New("gift card not found")
	ErrGiftCardNotActive   = errors.New("gift card is not active")
	ErrInsufficientBalance = errors.New("insufficient gift card balance")
	ErrCodeSpaceExhausted  = errors.New("unable to generate a unique code")
	ErrAlreadyApplied      = errors.New("gift card already applied to this order")

	ErrOrderNotFound    = errors.New("nursing home order not found")
	ErrEditWindowClosed = errors.New("order edit window has closed")
	ErrOrderLocked      = errors.New("order is locked")
	ErrDeadlinePassed   = errors.New("order deadline has passed")
	ErrAlreadySubmitted = errors.New("order already submitted")
	ErrOrderConflict    = errors.New("order was modified concurrently")
	ErrValidationFailed = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}
