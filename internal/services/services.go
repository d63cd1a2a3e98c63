package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/validate"
	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
	"github.com/Nexus-Agni/ShadowSpeak/internal/telemetry"
)

// Clock is swapped in tests.
type Clock func() time.Time

var expected = []error{
	models.ErrNotFound, models.ErrRecipientNotFound, models.ErrUsernameTaken, models.ErrEmailTaken,
	models.ErrCodeExpired, models.ErrInvalidCode, models.ErrAlreadyVerified,
	models.ErrNoSuchUser, models.ErrNotVerified, models.ErrBadCredentials, models.ErrNotAccepting,
}

// isExpected reports whether err is a normal business outcome rather than a fault.
func isExpected(err error) bool {
	if _, ok := validate.As(err); ok {
		return true
	}
	for _, e := range expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name)
}

// finish closes span and logs err at a level matching its kind.
func finish(log *slog.Logger, span trace.Span, op string, err error, attrs ...any) {
	defer span.End()
	if err == nil {
		return
	}
	if isExpected(err) {
		log.Debug(op+" rejected", append(attrs, "reason", err.Error())...)
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Error(op+" failed", append(attrs, "err", err)...)
}
