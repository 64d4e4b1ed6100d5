package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/utils"
)

// Visitor cookies replace per-browser local storage: the visitor key identifies
// likes and the session key scopes view de-duplication to one browser session.
const (
	VisitorCookieName = "bhs_visitor"
	BrowserCookieName = "bhs_session"

	visitorKeyContextKey ContextKey = "visitor_key"
	sessionKeyContextKey ContextKey = "session_key"

	visitorCookieMaxAge = 365 * 24 * time.Hour
)

// Visitor ensures both identity cookies exist and exposes them on the context.
func Visitor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secure := IsSecure(r)

			visitor := cookieValue(r, VisitorCookieName)
			if visitor == "" {
				visitor = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookieName,
					Value:    visitor,
					Path:     "/",
					MaxAge:   int(visitorCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			session := cookieValue(r, BrowserCookieName)
			if session == "" {
				token, err := utils.GenerateURLToken(16)
				if err != nil {
					log.WithError(err).Warn("failed to generate browser session key")
				} else {
					session = token
					http.SetCookie(w, &http.Cookie{
						Name:     BrowserCookieName,
						Value:    session,
						Path:     "/",
						HttpOnly: true,
						Secure:   secure,
						SameSite: http.SameSiteLaxMode,
					})
				}
			}

			ctx := context.WithValue(r.Context(), visitorKeyContextKey, visitor)
			ctx = context.WithValue(ctx, sessionKeyContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil || len(c.Value) > 128 {
		return ""
	}
	return c.Value
}

// VisitorKey returns the long-lived visitor identity.
func VisitorKey(ctx context.Context) string {
	v, _ := ctx.Value(visitorKeyContextKey).(string)
	return v
}

// SessionKey returns the browser-session identity.
func SessionKey(ctx context.Context) string {
	v, _ := ctx.Value(sessionKeyContextKey).(string)
	return v
}
