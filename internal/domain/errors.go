package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrEmailTaken        = errors.New("email already in use")
	ErrSlotConsumed      = errors.New("free prediction already consumed")
	ErrSlotReserved      = errors.New("free prediction reservation held")
	ErrProviderFailure   = errors.New("provider failure")
	ErrProviderRateLimit = errors.New("provider rate limited")
	ErrPremiumRequired   = errors.New("premium required")
)
