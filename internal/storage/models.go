package storage

import "time"

// Pin purposes.
const (
	PurposeActivation = "activation"
	PurposeReset      = "reset"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	PasswordHash string
	Enabled      bool
	CreatedAt    time.Time
}

type Pincode struct {
	ID        int64
	UserID    int64
	Purpose   string
	Pin       string
	ExpiresAt time.Time
}

// Expired reports whether the pin is no longer usable at now.
func (p Pincode) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
}

type ExchangeRate struct {
	InsertDate string
	Code       string
	Rate       string
}
