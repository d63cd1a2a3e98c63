package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/httpx"
	"github.com/Nexus-Agni/ShadowSpeak/internal/api/validate"
	"github.com/Nexus-Agni/ShadowSpeak/internal/middleware"
	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
)

type errMapping struct {
	err    error
	status int
	code   string
}

// Messages of the mapped sentinels are safe to show to clients.
var errTable = []errMapping{
	{models.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{models.ErrNoSuchUser, http.StatusUnauthorized, "no_such_user"},
	{models.ErrNotVerified, http.StatusUnauthorized, "not_verified"},
	{models.ErrBadCredentials, http.StatusUnauthorized, "bad_credentials"},
	{models.ErrNotAccepting, http.StatusForbidden, "not_accepting"},
	{models.ErrRecipientNotFound, http.StatusNotFound, "recipient_not_found"},
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrUsernameTaken, http.StatusConflict, "username_taken"},
	{models.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{models.ErrCodeExpired, http.StatusBadRequest, "code_expired"},
	{models.ErrInvalidCode, http.StatusBadRequest, "invalid_code"},
	{models.ErrAlreadyVerified, http.StatusBadRequest, "already_verified"},
	{models.ErrMailDelivery, http.StatusInternalServerError, "mail_delivery"},
}

// writeServiceError is the single place that turns service errors into responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	if errs, ok := validate.As(err); ok {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", errs)
		return
	}
	for _, m := range errTable {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				log.Error("request failed", "request_id", middleware.RequestIDFrom(r.Context()), "err", err)
			}
			httpx.WriteError(w, m.status, m.code, m.err.Error(), nil)
			return
		}
	}
	log.Error("request failed", "request_id", middleware.RequestIDFrom(r.Context()), "path", r.URL.Path, "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func writeBadBody(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
}
