package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api/httpx"
)

// RateLimit caps requests per client IP per minute. perMinute <= 0 disables it.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
		}),
	)
}
