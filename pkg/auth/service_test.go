package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"betihari-backend/pkg/database"
	"betihari-backend/pkg/metrics"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/utils"
)

type failingUsers struct {
	database.UserStore
}

func (failingUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newTestService(t *testing.T) (*Service, database.UserStore) {
	t.Helper()
	store, err := database.NewLocalDatabase(t.TempDir())
	require.NoError(t, err)
	hasher := NewBcryptHasher(bcrypt.MinCost)
	svc := NewService(store, hasher, utils.NewJWTService("secret", time.Hour), metrics.New(), DefaultAdmin{
		Email: "Admin@BetiHariSociety.org", Password: "changeme123", FirstName: "Site", LastName: "Administrator",
	})
	return svc, store
}

func addUser(t *testing.T, svc *Service, store database.UserStore, email string, team models.Team, password string, active bool) {
	t.Helper()
	hash, err := svc.hasher.Hash(password)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(context.Background(), &models.User{
		FirstName: "Test", LastName: "User", Email: email, Team: team, PasswordHash: hash, IsActive: active,
	}))
}

func TestAuthenticate_TruthTable(t *testing.T) {
	svc, store := newTestService(t)
	addUser(t, svc, store, "finance@example.org", models.TeamFinance, "correct-horse", true)
	addUser(t, svc, store, "inactive@example.org", models.TeamBoard, "correct-horse", false)

	cases := []struct {
		name, email, team, password string
		success                     bool
		msg                         string
	}{
		{"all match", "finance@example.org", "Finance", "correct-horse", true, ""},
		{"email case and spaces", "  FINANCE@example.org ", "finance", "correct-horse", true, ""},
		{"wrong team", "finance@example.org", "Administration", "correct-horse", false, MsgInvalidCredentials},
		{"wrong password", "finance@example.org", "Finance", "Correct-horse", false, MsgInvalidCredentials},
		{"unknown email", "nobody@example.org", "Finance", "correct-horse", false, MsgInvalidCredentials},
		{"inactive", "inactive@example.org", "Board of Directors", "correct-horse", false, MsgInactiveAccount},
		{"inactive wrong password", "inactive@example.org", "Board of Directors", "nope", false, MsgInvalidCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := svc.Authenticate(context.Background(), tc.email, tc.team, tc.password)
			assert.Equal(t, tc.success, res.Success)
			assert.Equal(t, tc.msg, res.Error)
			if tc.success {
				require.NotNil(t, res.User)
			} else {
				assert.Nil(t, res.User)
			}
		})
	}
}

func TestAuthenticate_StoreUnavailable(t *testing.T) {
	svc := NewService(failingUsers{}, NewBcryptHasher(bcrypt.MinCost), utils.NewJWTService("s", time.Hour), nil, DefaultAdmin{})
	res := svc.Authenticate(context.Background(), "a@example.org", "Finance", "pw")
	assert.False(t, res.Success)
	assert.Equal(t, MsgStoreUnavailable, res.Error)
}

func TestLogin_InactiveUserGetsNoSession(t *testing.T) {
	svc, store := newTestService(t)
	addUser(t, svc, store, "inactive@example.org", models.TeamCommunications, "pw-123456", false)

	res := svc.Login(context.Background(), "inactive@example.org", "Communications", "pw-123456")
	assert.False(t, res.Success)
	assert.Equal(t, MsgInactiveAccount, res.Error)
	assert.Empty(t, res.Token)
	assert.False(t, res.Session.IsAuthenticated)
}

func TestLogin_IssuesSessionAndRecordsLogin(t *testing.T) {
	svc, store := newTestService(t)
	addUser(t, svc, store, "comms@example.org", models.TeamCommunications, "pw-123456", true)

	res := svc.Login(context.Background(), "comms@example.org", "communications", "pw-123456")
	require.True(t, res.Success)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, models.Session{
		IsAuthenticated: true,
		UserTeam:        models.TeamCommunications,
		UserEmail:       "comms@example.org",
		UserName:        "Test User",
	}, res.Session)

	u, err := store.GetUserByEmail(context.Background(), "comms@example.org")
	require.NoError(t, err)
	assert.NotNil(t, u.LastLoginAt)

	claims, err := svc.ValidateSession(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
}

func TestLogout_RevokesToken(t *testing.T) {
	svc, store := newTestService(t)
	addUser(t, svc, store, "a@example.org", models.TeamAdministration, "pw-123456", true)

	res := svc.Login(context.Background(), "a@example.org", "Administration", "pw-123456")
	require.True(t, res.Success)

	svc.Logout(res.Claims)
	assert.True(t, svc.IsRevoked(res.Claims.ID))
	_, err := svc.ValidateSession(context.Background(), res.Token)
	assert.ErrorIs(t, err, models.ErrSessionRevoked)

	assert.NotPanics(t, func() { svc.Logout(nil) })
}

func TestValidateSession_FollowsCurrentUserRecord(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	addUser(t, svc, store, "board@example.org", models.TeamBoard, "pw-123456", true)

	res := svc.Login(ctx, "board@example.org", "Board of Directors", "pw-123456")
	require.True(t, res.Success)

	u, err := store.GetUserByEmail(ctx, "board@example.org")
	require.NoError(t, err)
	u.Team = models.TeamCommunications
	require.NoError(t, store.UpdateUser(ctx, u))

	claims, err := svc.ValidateSession(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.TeamCommunications, claims.Team)
	assert.Equal(t, models.TeamBoard, res.Claims.Team, "issued claims are not mutated")

	u.IsActive = false
	require.NoError(t, store.UpdateUser(ctx, u))
	_, err = svc.ValidateSession(ctx, res.Token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	_, err = svc.ValidateSession(ctx, res.Token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestEnsureDefaultAdmin_Idempotent(t *testing.T) {
	svc, store := newTestService(t)

	created, err := svc.EnsureDefaultAdmin(context.Background())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureDefaultAdmin(context.Background())
	require.NoError(t, err)
	assert.False(t, created)

	// a fresh process sees the existing record and does not duplicate it
	again := NewService(store, svc.hasher, svc.tokens, nil, svc.admin)
	created, err = again.EnsureDefaultAdmin(context.Background())
	require.NoError(t, err)
	assert.False(t, created)

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin@betiharisociety.org", users[0].Email)
	assert.Equal(t, models.TeamAdministration, users[0].Team)

	res := svc.Authenticate(context.Background(), "admin@betiharisociety.org", "Administration", "changeme123")
	assert.True(t, res.Success)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash)
	assert.True(t, h.Verify(hash, "secret"))
	assert.False(t, h.Verify(hash, "Secret"))
	assert.False(t, h.Verify("", "secret"))
	assert.Equal(t, 10, NewBcryptHasher(0).Cost)
}
