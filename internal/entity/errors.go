package domain

import "errors"

// Every domain failure wraps one of these; callers classify with errors.Is.
var (
	ErrValidation            = errors.New("validation error")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrPrecondition          = errors.New("precondition failed")
	ErrAlreadyGenerated      = errors.New("invoice already generated")
	ErrOrderCancelled        = errors.New("order cancelled")
	ErrSignatureMismatch     = errors.New("payment signature mismatch")
	ErrDuplicateConfirmation = errors.New("duplicate payment confirmation")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("concurrent modification")
)
