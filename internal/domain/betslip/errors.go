package betslip

import "errors"

var (
	ErrAuthRequired        = errors.New("auth_required")
	ErrBelowMinimum        = errors.New("below_minimum")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrNoSelections        = errors.New("no_selections")
	ErrSubmitting          = errors.New("slip is submitting")
	ErrInvalidSelection    = errors.New("invalid selection")
)
