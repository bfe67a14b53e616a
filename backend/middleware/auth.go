package middleware

import (
	"net/http"
	"strings"

	"github.com/PhilHem/logstore/backend/handlers"
)

// RequireLocalAuth requires local username/password authentication (for admin interface)
func RequireLocalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := handlers.Store.Get(r, "session")
		authMethod, _ := session.Values["auth_method"].(string)
		isAPI := strings.HasPrefix(r.URL.Path, "/admin/api/")

		// Password accepted, second factor still missing
		if _, pending := session.Values["user_id_pending_mfa"].(uint); pending {
			if isAPI {
				http.Error(w, "2FA verification required", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}

		user := handlers.GetCurrentUser(r)
		if user == nil || authMethod != "local" {
			// API clients get a status code, browsers a redirect
			if isAPI {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}
