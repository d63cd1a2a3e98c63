package middleware

import (
	"context"

	"github.com/Nexus-Agni/ShadowSpeak/internal/auth"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the session identity attached by Sessions.Load.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok && id.ID != ""
}
