package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"betihari-backend/pkg/access"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/utils"
)

// ContextKey keys values stored on the request context.
type ContextKey string

const (
	ClaimsContextKey ContextKey = "claims"

	// SessionCookieName carries the session token for browser clients.
	SessionCookieName = "bhs_auth"
)

// SessionValidator verifies session tokens.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*models.TokenClaims, error)
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token := strings.TrimPrefix(h, "Bearer "); token != h {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func writeLoginRequired(w http.ResponseWriter, message string) {
	utils.WriteRedirectResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", message, access.LoginPath)
}

// AuthMiddleware rejects requests without a valid, unrevoked session.
func AuthMiddleware(v SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeLoginRequired(w, "Authentication required")
				return
			}
			claims, err := v.ValidateSession(r.Context(), token)
			if err != nil {
				msg := "Invalid or expired session"
				if errors.Is(err, models.ErrSessionRevoked) {
					msg = "Session has been signed out"
				}
				writeLoginRequired(w, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuthMiddleware attaches the session when one is present and valid.
func OptionalAuthMiddleware(v SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := TokenFromRequest(r); token != "" {
				if claims, err := v.ValidateSession(r.Context(), token); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

func GetClaimsFromContext(ctx context.Context) (*models.TokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*models.TokenClaims)
	return claims, ok && claims != nil
}

// RequireUser returns the authenticated claims or ErrUnauthorized.
func RequireUser(ctx context.Context) (*models.TokenClaims, error) {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return nil, models.ErrUnauthorized
	}
	return claims, nil
}

// RequireDashboardAccess applies the role gate for the dashboard page at path
// to an API route group. It must run after AuthMiddleware or OptionalAuthMiddleware.
func RequireDashboardAccess(path string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, authenticated := GetClaimsFromContext(r.Context())
			team := ""
			if authenticated {
				team = string(claims.Team)
			}
			decision := access.Decide(path, authenticated, team)
			switch {
			case decision.Allowed:
				next.ServeHTTP(w, r)
			case !authenticated:
				writeLoginRequired(w, "Authentication required")
			default:
				utils.WriteRedirectResponse(w, http.StatusForbidden, "FORBIDDEN",
					"Your team does not have access to this section", decision.Redirect)
			}
		})
	}
}
