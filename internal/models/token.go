package models

import "time"

// ActiveToken is the durable record of an issued access token. One row per
// issued token, keyed by the signed token string, deleted on logout or by
// the expiry sweeper.
type ActiveToken struct {
	Token     string    `db:"token" json:"token"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}
