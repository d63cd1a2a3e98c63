package models

import "errors"

// Store and lookup
var (
	ErrNotFound          = errors.New("not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrEmailTaken        = errors.New("user already exists with this email")
)

// Verification
var (
	ErrCodeExpired     = errors.New("verification code expired, sign up again to get a new code")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrAlreadyVerified = errors.New("account already verified")
)

// Sessions and sign-in
var (
	ErrNoSuchUser      = errors.New("no user found with this username or email")
	ErrNotVerified     = errors.New("please verify your account before signing in")
	ErrBadCredentials  = errors.New("incorrect password")
	ErrUnauthenticated = errors.New("not authenticated")
)

// Intake and dependencies
var (
	ErrNotAccepting = errors.New("user is not accepting messages")
	ErrMailDelivery = errors.New("failed to send verification email")
)
