package models

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Team is the coarse access-control group assigned to a dashboard user.
type Team string

const (
	TeamBoard          Team = "Board of Directors"
	TeamFinance        Team = "Finance"
	TeamAdministration Team = "Administration"
	TeamCommunications Team = "Communications"
)

// AllTeams lists the teams in display order.
var AllTeams = []Team{TeamBoard, TeamFinance, TeamAdministration, TeamCommunications}

// NormalizeTeam maps known case variants ("board of directors") to the
// canonical team name. Unknown values are returned trimmed but otherwise unchanged.
func NormalizeTeam(team string) Team {
	trimmed := strings.TrimSpace(team)
	for _, t := range AllTeams {
		if strings.EqualFold(trimmed, string(t)) {
			return t
		}
	}
	return Team(trimmed)
}

// Valid reports whether t is one of the known teams.
func (t Team) Valid() bool {
	for _, known := range AllTeams {
		if t == known {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User represents a dashboard user
type User struct {
	ID           string     `json:"id" db:"id"`
	FirstName    string     `json:"firstName" db:"first_name"`
	LastName     string     `json:"lastName" db:"last_name"`
	Email        string     `json:"email" db:"email"`
	Team         Team       `json:"team" db:"team"`
	Position     string     `json:"position,omitempty" db:"position"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never return the hash in JSON
	IsActive     bool       `json:"isActive" db:"is_active"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CreateUserRequest represents the payload for creating a dashboard user
type CreateUserRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Team      string `json:"team" validate:"required"`
	Position  string `json:"position"`
	Password  string `json:"password" validate:"required,min=8"`
	IsActive  *bool  `json:"isActive"`
}

// UpdateUserRequest is a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Team      *string `json:"team"`
	Position  *string `json:"position"`
	Password  *string `json:"password" validate:"omitempty,min=8"`
	IsActive  *bool   `json:"isActive"`
}

// LoginRequest represents the dashboard login payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Team     string `json:"team" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is the client-facing view of an authenticated session.
type Session struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	UserTeam        Team   `json:"userTeam,omitempty"`
	UserEmail       string `json:"userEmail,omitempty"`
	UserName        string `json:"userName,omitempty"`
}

// LoginResponse represents the response payload for a successful login
type LoginResponse struct {
	Session   Session `json:"session"`
	Token     string  `json:"token"`
	ExpiresAt int64   `json:"expiresAt"`
}

// TokenClaims represents the session token claims
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Team   Team   `json:"team"`
	Type   string `json:"type"` // "session"
	ID     string `json:"jti"`
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// GetExpirationTime implements jwt.Claims interface
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims interface
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims interface
func (c *TokenClaims) GetSubject() (string, error) {
	return c.UserID, nil
}

// GetAudience implements jwt.Claims interface
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}
