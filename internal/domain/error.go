package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrValidation          = errors.New("invalid user input")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrDuplicateOrder      = errors.New("a live order or subscription already exists for this plan")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrSignatureInvalid    = errors.New("webhook signature mismatch")
	ErrOrderNotFound       = errors.New("webhook references an unknown order")
	ErrUnmappedPlanTerm    = errors.New("plan term cannot be mapped to a duration")
	ErrAmountMismatch      = errors.New("paid amount is below the order amount")
	ErrOperationFailed     = errors.New("storage operation failed")
)
