package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/auth"
	"betihari-backend/pkg/database"
	"betihari-backend/pkg/events"
	"betihari-backend/pkg/models"
)

// UserService manages dashboard accounts.
type UserService struct {
	store   database.UserStore
	hasher  auth.Hasher
	bus     events.Broker
	timeout time.Duration
}

func NewUserService(store database.UserStore, hasher auth.Hasher, bus events.Broker, fetchTimeout time.Duration) *UserService {
	return &UserService{store: store, hasher: hasher, bus: bus, timeout: fetchTimeout}
}

func (s *UserService) publish(id string) {
	if s.bus != nil {
		s.bus.Publish(events.TopicUsersChanged, id)
	}
}

// GetAll lists users, degrading to an empty list on timeout or store failure.
func (s *UserService) GetAll(ctx context.Context) []models.User {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load users, serving empty list")
		return []models.User{}
	}
	return users
}

// GetByID returns nil, nil when the user does not exist.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// GetByEmail returns nil, nil when no user has the email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.store.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

func canonicalTeam(team string) (models.Team, error) {
	t := models.NormalizeTeam(team)
	if !t.Valid() {
		return "", fmt.Errorf("team %q: %w", team, models.ErrInvalidInput)
	}
	return t, nil
}

// emailTaken reports whether another user than selfID owns email.
func (s *UserService) emailTaken(ctx context.Context, email, selfID string) error {
	existing, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return fmt.Errorf("email %s is already registered: %w", email, models.ErrConflict)
	}
	return nil
}

// Create registers a user with a hashed password. Accounts are active unless
// the request says otherwise.
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	team, err := canonicalTeam(req.Team)
	if err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(req.Email)
	if err := s.emailTaken(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	u := &models.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		Team:         team,
		Position:     strings.TrimSpace(req.Position),
		PasswordHash: hash,
		IsActive:     active,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.publish(u.ID)
	return u, nil
}

// Update merges the present fields. Changing the email re-checks uniqueness
// and changing the password re-hashes it.
func (s *UserService) Update(ctx context.Context, id string, req models.UpdateUserRequest) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := models.NormalizeEmail(*req.Email)
		if email != u.Email {
			if err := s.emailTaken(ctx, email, u.ID); err != nil {
				return nil, err
			}
			u.Email = email
		}
	}
	if req.Team != nil {
		if u.Team, err = canonicalTeam(*req.Team); err != nil {
			return nil, err
		}
	}
	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Position != nil {
		u.Position = strings.TrimSpace(*req.Position)
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.Password != nil {
		if u.PasswordHash, err = s.hasher.Hash(*req.Password); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	s.publish(u.ID)
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.publish(id)
	return nil
}

// Subscribe streams users.changed notifications.
func (s *UserService) Subscribe(buffer int) (<-chan events.Event, func(), error) {
	return subscribe(s.bus, events.TopicUsersChanged, buffer)
}
