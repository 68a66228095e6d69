package cookie

import (
	"net/http"
	"time"

	"github.com/webfolio/authd/internal/envutil"
	"github.com/webfolio/authd/internal/log"
)

// Cookie names set by the OAuth callback. The session cookie carries the
// session identifier; the token cookie carries the separate verification
// secret. Both are HttpOnly since the front end receives the credentials
// through the callback's postMessage bridge, not by reading cookies.
const (
	SessionCookie = "folio_session"
	TokenCookie   = "folio_token"
)

// SetAuth sets the session and token cookies with the session's lifetime.
// SameSite=Strict: nothing cross-site ever needs to send these.
func SetAuth(w http.ResponseWriter, sessionID, token string, maxAge time.Duration) {
	secure := !envutil.IsDev()
	set := func(name, value string) {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   int(maxAge.Seconds()),
		})
	}
	set(SessionCookie, sessionID)
	set(TokenCookie, token)

	log.LogDebugWithFields("cookie", "Auth cookies set", map[string]any{
		"maxAge": maxAge.String(),
		"secure": secure,
	})
}

// ClearAuth removes the auth cookies by setting MaxAge to -1
func ClearAuth(w http.ResponseWriter) {
	for _, name := range []string{SessionCookie, TokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:   name,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
	}
	log.LogDebugWithFields("cookie", "Auth cookies cleared", nil)
}
