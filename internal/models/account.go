// account.go

package models

import "time"

// MaxCharactersPerAccount caps how many characters one account may own.
const MaxCharactersPerAccount = 5

// Account is a login identity. Password is never serialized to clients.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	LastLoginAt  time.Time `json:"lastLoginAt"`
}
