package domain

import "time"

// User represents a registered account.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	IsPremium        bool
	StripeCustomerID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
