package handlers

import (
	"net/http"
	"time"

	"betihari-backend/pkg/access"
	"betihari-backend/pkg/auth"
	"betihari-backend/pkg/config"
	"betihari-backend/pkg/middleware"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/utils"
)

// AuthHandler serves dashboard login, logout and session queries.
type AuthHandler struct {
	config *config.Config
	auth   *auth.Service
}

func NewAuthHandler(cfg *config.Config, svc *auth.Service) *AuthHandler {
	return &AuthHandler{config: cfg, auth: svc}
}

func (h *AuthHandler) sessionCookie(r *http.Request, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   middleware.IsSecure(r) || h.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

// Login handles POST /api/auth/login. Rejected credentials answer 401 with the
// user-facing message in the error envelope.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}

	res := h.auth.Login(r.Context(), req.Email, req.Team, req.Password)
	if !res.Success {
		status := http.StatusUnauthorized
		if res.Error == auth.MsgStoreUnavailable {
			status = http.StatusServiceUnavailable
		}
		utils.WriteErrorResponseWithCode(w, status, "LOGIN_FAILED", res.Error, "")
		return
	}

	http.SetCookie(w, h.sessionCookie(r, res.Token, time.Unix(res.ExpiresAt, 0)))
	utils.WriteSuccessResponse(w, models.LoginResponse{
		Session:   res.Session,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	})
}

// Logout handles POST /api/auth/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r); token != "" {
		if claims, err := h.auth.ValidateSession(r.Context(), token); err == nil {
			h.auth.Logout(claims)
		}
	}
	http.SetCookie(w, h.sessionCookie(r, "", time.Unix(0, 0)))
	utils.WriteSuccessResponse(w, map[string]interface{}{"session": models.Session{}})
}

// Session handles GET /api/auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetClaimsFromContext(r.Context())
	session := auth.SessionFromClaims(claims)
	data := map[string]interface{}{"session": session}
	if session.IsAuthenticated {
		data["allowedPaths"] = access.AllowedPaths(string(session.UserTeam))
	}
	utils.WriteSuccessResponse(w, data)
}

// Access handles GET /api/auth/access?path=/dashboard/...
func (h *AuthHandler) Access(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		utils.WriteBadRequestResponse(w, "path is required")
		return
	}
	claims, authenticated := middleware.GetClaimsFromContext(r.Context())
	team := ""
	if authenticated {
		team = string(claims.Team)
	}
	utils.WriteSuccessResponse(w, access.Decide(path, authenticated, team))
}
