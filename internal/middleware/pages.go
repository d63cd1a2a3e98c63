package middleware

import (
	"net/http"
	"strings"
)

// PageGate redirects between the public and signed-in page areas. Signed-in
// visitors skip the auth pages; anonymous visitors are sent to sign in
// before reaching the dashboard. It relies on Sessions.Load running first.
func PageGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, signedIn := IdentityFrom(r.Context())
		p := r.URL.Path
		switch {
		case signedIn && isAuthPage(p):
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		case !signedIn && (p == "/dashboard" || strings.HasPrefix(p, "/dashboard/")):
			http.Redirect(w, r, "/sign-in", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAuthPage(p string) bool {
	switch p {
	case "/", "/sign-in", "/sign-up":
		return true
	}
	return p == "/verify" || strings.HasPrefix(p, "/verify/")
}
