// Package auth verifies dashboard credentials and manages session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/database"
	"betihari-backend/pkg/metrics"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/utils"
)

const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgInactiveAccount    = "Account is inactive"
	MsgStoreUnavailable   = "Content store is not configured or unreachable. Please try again later."
	MsgSessionFailed      = "Unable to start a session. Please try again."
)

// AuthResult is the outcome of a credential check. It is a value, never an error.
type AuthResult struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	User    *models.User `json:"-"`
}

// LoginResult adds the issued session to a successful AuthResult.
type LoginResult struct {
	AuthResult
	Token     string              `json:"token,omitempty"`
	ExpiresAt int64               `json:"expiresAt,omitempty"`
	Session   models.Session      `json:"session"`
	Claims    *models.TokenClaims `json:"-"`
}

// DefaultAdmin describes the administrator created on first start.
type DefaultAdmin struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service authenticates dashboard users.
type Service struct {
	users   database.UserStore
	hasher  Hasher
	tokens  *utils.JWTService
	metrics *metrics.Metrics
	admin   DefaultAdmin

	// revoked maps token ids to struct{} until the token would have expired.
	revoked *cache.Cache
	now     func() time.Time

	bootstrapMu   sync.Mutex
	bootstrapDone bool
}

func NewService(users database.UserStore, hasher Hasher, tokens *utils.JWTService, m *metrics.Metrics, admin DefaultAdmin) *Service {
	return &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		metrics: m,
		admin:   admin,
		revoked: cache.New(cache.NoExpiration, 10*time.Minute),
		now:     time.Now,
	}
}

// Authenticate succeeds only when a user with the normalized email exists, belongs
// to team, is active and the password matches the stored hash.
func (s *Service) Authenticate(ctx context.Context, email, team, password string) AuthResult {
	user, err := s.users.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		return AuthResult{Error: MsgInvalidCredentials}
	}
	if err != nil {
		log.WithError(err).Error("credential lookup failed")
		return AuthResult{Error: MsgStoreUnavailable}
	}

	if user.Team != models.NormalizeTeam(team) || !s.hasher.Verify(user.PasswordHash, password) {
		return AuthResult{Error: MsgInvalidCredentials}
	}
	if !user.IsActive {
		return AuthResult{Error: MsgInactiveAccount}
	}
	return AuthResult{Success: true, User: user}
}

// Login authenticates and, on success, records the login and issues a session token.
func (s *Service) Login(ctx context.Context, email, team, password string) LoginResult {
	res := s.Authenticate(ctx, email, team, password)
	if !res.Success {
		s.metrics.LoginAttempt(false)
		log.WithField("email", models.NormalizeEmail(email)).Info("login rejected")
		return LoginResult{AuthResult: res}
	}

	if err := s.users.RecordLogin(ctx, res.User.ID, s.now()); err != nil {
		log.WithError(err).WithField("user", res.User.ID).Warn("failed to record login time")
	}

	token, claims, err := s.tokens.IssueSessionToken(res.User)
	if err != nil {
		log.WithError(err).Error("failed to issue session token")
		s.metrics.LoginAttempt(false)
		return LoginResult{AuthResult: AuthResult{Error: MsgSessionFailed}}
	}

	s.metrics.LoginAttempt(true)
	log.WithFields(log.Fields{"user": res.User.ID, "team": res.User.Team}).Info("user logged in")
	return LoginResult{
		AuthResult: res,
		Token:      token,
		ExpiresAt:  claims.Exp,
		Session:    SessionFromClaims(claims),
		Claims:     claims,
	}
}

// Logout revokes the token until its natural expiry.
func (s *Service) Logout(claims *models.TokenClaims) {
	if claims == nil || claims.ID == "" {
		return
	}
	ttl := time.Unix(claims.Exp, 0).Sub(s.now())
	if ttl <= 0 {
		return
	}
	s.revoked.Set(claims.ID, struct{}{}, ttl)
}

// IsRevoked reports whether the token id was logged out.
func (s *Service) IsRevoked(jti string) bool {
	_, found := s.revoked.Get(jti)
	return found
}

// ValidateSession verifies a raw token, rejects revoked ones and re-reads the
// user so deactivation and team changes apply to sessions already issued.
func (s *Service) ValidateSession(ctx context.Context, token string) (*models.TokenClaims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	if s.IsRevoked(claims.ID) {
		return nil, models.ErrSessionRevoked
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		log.WithError(err).WithField("user_id", claims.UserID).Warn("session user lookup failed")
		return nil, fmt.Errorf("session user lookup: %w", models.ErrUnavailable)
	}
	if !user.IsActive {
		return nil, models.ErrUnauthorized
	}
	current := *claims
	current.Team = user.Team
	current.Email = user.Email
	current.Name = user.FullName()
	return &current, nil
}

// SessionFromClaims derives the client session view; nil claims mean anonymous.
func SessionFromClaims(claims *models.TokenClaims) models.Session {
	if claims == nil {
		return models.Session{}
	}
	return models.Session{
		IsAuthenticated: true,
		UserTeam:        claims.Team,
		UserEmail:       claims.Email,
		UserName:        claims.Name,
	}
}

// EnsureDefaultAdmin creates the configured administrator when no user has its
// email. It runs its store check at most once per process after a success and
// reports whether it created the record.
func (s *Service) EnsureDefaultAdmin(ctx context.Context) (bool, error) {
	s.bootstrapMu.Lock()
	defer s.bootstrapMu.Unlock()

	if s.bootstrapDone {
		return false, nil
	}
	if s.admin.Email == "" || s.admin.Password == "" {
		log.Warn("default admin credentials not configured, skipping bootstrap")
		s.bootstrapDone = true
		return false, nil
	}

	email := models.NormalizeEmail(s.admin.Email)
	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		s.bootstrapDone = true
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, err
	}

	hash, err := s.hasher.Hash(s.admin.Password)
	if err != nil {
		return false, err
	}
	admin := &models.User{
		FirstName:    s.admin.FirstName,
		LastName:     s.admin.LastName,
		Email:        email,
		Team:         models.TeamAdministration,
		Position:     "Administrator",
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.bootstrapDone = true
			return false, nil
		}
		return false, err
	}

	s.bootstrapDone = true
	log.WithField("email", email).Info("default administrator created")
	return true, nil
}
