package models

import (
	"database/sql"
	"time"
)

// User is an account able to authenticate against the gateway.
type User struct {
	ID           int64        `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	PasswordHash string       `db:"password_hash" json:"-"`
	FullName     string       `db:"full_name" json:"full_name"`
	Active       bool         `db:"active" json:"active"`
	LastLogin    sql.NullTime `db:"last_login" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}
