package models

import (
	"time"
)

type User struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	VerifyCode          string    `json:"-"`
	VerifyCodeExpiry    time.Time `json:"-"`
	IsVerified          bool      `json:"isVerified"`
	IsAcceptingMessages bool      `json:"isAcceptingMessages"`
	Messages            []Message `json:"-"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// CodeExpired reports whether the pending verification code is no longer usable at now.
// The expiry instant itself is already expired.
func (u *User) CodeExpired(now time.Time) bool {
	return !now.Before(u.VerifyCodeExpiry)
}

// PendingRegistration carries the fields rewritten when a still-unverified
// account signs up again.
type PendingRegistration struct {
	Username         string
	PasswordHash     string
	VerifyCode       string
	VerifyCodeExpiry time.Time
}
