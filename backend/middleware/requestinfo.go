package middleware

import (
	"net/http"

	"github.com/PhilHem/logstore/backend/handlers"
	"github.com/PhilHem/logstore/backend/logstore"
	"github.com/PhilHem/logstore/backend/webctx"
)

// RequestInfo attaches the caller's user ID, IP, page URL and referrer to
// the request context so log entries written while serving it carry them.
func RequestInfo(trustProxy bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := logstore.RequestInfo{
			UserID:      handlers.CurrentUserID(r),
			IPAddress:   webctx.ClientIP(r, trustProxy),
			PageURL:     webctx.PageURL(r, trustProxy),
			ReferrerURL: webctx.Referrer(r),
		}
		next.ServeHTTP(w, r.WithContext(logstore.WithRequestInfo(r.Context(), info)))
	})
}
