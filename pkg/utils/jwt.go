package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"betihari-backend/pkg/models"
)

const sessionTokenType = "session"

// JWTService signs and verifies dashboard session tokens.
type JWTService struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewJWTService(secretKey string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// IssueSessionToken signs a session token for user. Each token gets a fresh id
// so a single session can be revoked on logout.
func (j *JWTService) IssueSessionToken(user *models.User) (string, *models.TokenClaims, error) {
	now := j.now()
	claims := &models.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.FullName(),
		Team:   user.Team,
		Type:   sessionTokenType,
		ID:     uuid.New().String(),
		Exp:    now.Add(j.ttl).Unix(),
		Iat:    now.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, claims, nil
}

// ValidateToken verifies signature, expiry and token type.
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if claims.Type != sessionTokenType {
		return nil, fmt.Errorf("invalid token type %q", claims.Type)
	}
	return claims, nil
}
