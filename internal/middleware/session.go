package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/httpx"
	"github.com/Nexus-Agni/ShadowSpeak/internal/auth"
)

// Sessions reads and writes the session token. The token is accepted from an
// Authorization: Bearer header or from the session cookie.
type Sessions struct {
	Manager *auth.SessionManager
	Cookie  string
	Secure  bool
}

func NewSessions(m *auth.SessionManager, cookie string, secure bool) *Sessions {
	return &Sessions{Manager: m, Cookie: cookie, Secure: secure}
}

func (s *Sessions) token(r *http.Request) string {
	if ah := r.Header.Get("Authorization"); len(ah) > 7 && strings.EqualFold(ah[:7], "bearer ") {
		return strings.TrimSpace(ah[7:])
	}
	if c, err := r.Cookie(s.Cookie); err == nil {
		return c.Value
	}
	return ""
}

// Load attaches the identity of a valid session to the request context.
// Requests without one pass through untouched.
func (s *Sessions) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := s.token(r); tok != "" {
			if id, err := s.Manager.Parse(tok); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession answers 401 unless Load found a valid session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "not authenticated", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Issue signs a session for id and sets it as the session cookie.
func (s *Sessions) Issue(w http.ResponseWriter, id auth.Identity) (string, time.Time, error) {
	tok, exp, err := s.Manager.Issue(id)
	if err != nil {
		return "", time.Time{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.Cookie,
		Value:    tok,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(time.Until(exp).Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return tok, exp, nil
}

func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
