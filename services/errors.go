package services

import (
	"errors"

	"github.com/anjiri1684/tutor_ledger/store"
)

var (
	ErrNotFound              = store.ErrNotFound
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInsufficientFunds     = errors.New("insufficient wallet balance")
	ErrPaymentFailed         = errors.New("payment failed")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrTeacherNotApproved    = errors.New("teacher is not approved")
	ErrBelowMinimum          = errors.New("amount is below the minimum for this payout method")
	ErrInsufficientBalance   = errors.New("amount exceeds available earnings")
	ErrInvalidPaymentDetails = errors.New("invalid payment details")
	ErrInvalidPayoutMethod   = errors.New("unsupported payout method")
	ErrAlreadyRated          = errors.New("lesson has already been rated")
	ErrForbidden             = errors.New("not allowed")
	ErrEmailExists           = errors.New("user with this email already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountDisabled       = errors.New("account is disabled")
)
