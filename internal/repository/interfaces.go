package repository

import (
	"context"
	"time"

	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
)

// Users is the identity store. Every method is a single-document operation;
// implementations return models.ErrNotFound when the target user is absent.
type Users interface {
	// Create assigns ID and timestamps. Duplicate keys surface as
	// models.ErrUsernameTaken or models.ErrEmailTaken.
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	// GetByIdentifier matches either username or email.
	GetByIdentifier(ctx context.Context, identifier string) (models.User, error)

	// ReplacePending rewrites a still-unverified account. A verified account
	// is reported as models.ErrNotFound.
	ReplacePending(ctx context.Context, id string, p models.PendingRegistration) error
	// SetVerifyCode overwrites the code of an unverified account.
	SetVerifyCode(ctx context.Context, id, code string, expiry time.Time) error
	// MarkVerified flips isVerified and clears the code.
	MarkVerified(ctx context.Context, id string) error
	SetAcceptingMessages(ctx context.Context, id string, accepting bool) (models.User, error)

	// AppendMessage assigns msg.ID when empty and appends atomically.
	AppendMessage(ctx context.Context, userID string, msg *models.Message) error
	// DeleteMessage reports models.ErrNotFound when no message was removed.
	DeleteMessage(ctx context.Context, userID, messageID string) error
}
