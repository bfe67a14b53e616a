// Package webctx reads client and page details off an incoming request.
// Every helper returns "" when the value is not available.
package webctx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's IP. Forwarding headers are only honoured
// when trustProxy is set, i.e. when running behind a reverse proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if r == nil {
		return ""
	}
	if trustProxy {
		// Check X-Forwarded-For first, the left-most hop is the client
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// PageURL returns the absolute URL the request was made to.
func PageURL(r *http.Request, trustProxy bool) string {
	if r == nil || r.URL == nil {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if trustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	if host == "" {
		return r.URL.RequestURI()
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// Referrer returns the Referer header.
func Referrer(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Referer()
}
