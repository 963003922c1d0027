package handlers

import (
	"net/http"
	"strings"
)

const authCookieName = "auth_token"

// tokenFromRequest reads the seat token from ?token=, then the Authorization
// bearer header, then the auth_token cookie.
func tokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(authCookieName); err == nil {
		return c.Value
	}
	return ""
}

// roomIDFromPath extracts the room code from /room/ws/{roomId}.
func roomIDFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/room/ws/"), "/")
	return strings.ToUpper(strings.TrimSpace(parts[0]))
}
