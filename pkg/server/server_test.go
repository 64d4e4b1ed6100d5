package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"betihari-backend/pkg/auth"
	"betihari-backend/pkg/config"
	"betihari-backend/pkg/database"
	"betihari-backend/pkg/events"
	"betihari-backend/pkg/mailer"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/payments"
	"betihari-backend/pkg/utils"
)

const (
	adminEmail    = "admin@betiharisociety.org"
	adminPassword = "changeme123"
	siteURL       = "https://betiharisociety.org"
)

type fakeGateway struct {
	payments.Gateway

	mu        sync.Mutex
	sessions  []models.CheckoutSessionRequest
	failNext  bool
	customers []models.Customer
	created   []models.CommunityMemberRequest
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, req)
	if f.failNext {
		f.failNext = false
		return nil, models.ErrUnavailable
	}
	return &models.CheckoutSession{ID: "cs_test", ClientSecret: "cs_test_secret"}, nil
}

func (f *fakeGateway) ListCharges(context.Context, time.Time) ([]models.Charge, error) {
	return []models.Charge{
		{ID: "ch_1", Amount: 5000, Paid: true, Status: "succeeded", Created: time.Now(), Email: "donor@example.org"},
	}, nil
}

func (f *fakeGateway) ListCustomers(_ context.Context, q models.CustomerQuery) (*models.CustomerPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.CustomerPage{Customers: f.customers}, nil
}

func (f *fakeGateway) CreateCustomer(_ context.Context, req models.CommunityMemberRequest) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return &models.Customer{ID: "cus_new", Email: req.Email, Name: req.FirstName + " " + req.LastName}, nil
}

func (f *fakeGateway) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	if signature != "valid" {
		return nil, models.ErrUnauthorized
	}
	return &payments.WebhookEvent{
		ID:   "evt_1",
		Type: payments.EventCheckoutCompleted,
		Checkout: &payments.CompletedCheckout{
			SessionID:   "cs_test",
			AmountTotal: 5000,
			Currency:    "usd",
			Email:       "donor@example.org",
			Name:        "Asha",
		},
	}, nil
}

func (f *fakeGateway) sessionRequests() []models.CheckoutSessionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CheckoutSessionRequest(nil), f.sessions...)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *fakeMailer) Send(_ context.Context, msgs ...mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgs...)
	return nil
}

func (m *fakeMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:          "test",
		Port:                 "0",
		SiteURL:              siteURL,
		AllowedOrigins:       []string{"*"},
		JWTSecret:            "test-secret",
		SessionTTL:           time.Hour,
		UseLocalDB:           true,
		InteractionsBackend:  "primary",
		StripeSecretKey:      "sk_test",
		StripePublishableKey: "pk_test",
		ContactEmail:         "info@betiharisociety.org",
		DefaultAdminEmail:    adminEmail,
		DefaultAdminPassword: adminPassword,
		FetchTimeout:         time.Second,
	}
}

type testEnv struct {
	t       *testing.T
	app     *App
	gateway *fakeGateway
	mailer  *fakeMailer
	server  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewLocalDatabase(t.TempDir())
	require.NoError(t, err)

	gw := &fakeGateway{}
	m := &fakeMailer{}
	app, err := New(Deps{
		Config:  testConfig(),
		DB:      db,
		Gateway: gw,
		Mailer:  m,
		Hasher:  auth.NewBcryptHasher(bcrypt.MinCost),
	})
	require.NoError(t, err)
	require.NoError(t, app.Init(context.Background()))

	srv := httptest.NewServer(app.Handler)
	t.Cleanup(srv.Close)
	return &testEnv{t: t, app: app, gateway: gw, mailer: m, server: srv}
}

// client is one browser: it keeps cookies between requests.
type client struct {
	t      *testing.T
	base   string
	http   *http.Client
	bearer string
}

func (e *testEnv) newClient() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	return &client{t: e.t, base: e.server.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body interface{}) (int, utils.APIResponse) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	var resp utils.APIResponse
	require.NoError(c.t, json.NewDecoder(res.Body).Decode(&resp))
	return res.StatusCode, resp
}

// data re-decodes the envelope payload into v.
func data(t *testing.T, resp utils.APIResponse, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func (c *client) login(email, team, password string) string {
	c.t.Helper()
	status, resp := c.do(http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Team: team, Password: password})
	require.Equal(c.t, http.StatusOK, status, "login failed: %+v", resp.Error)
	var out models.LoginResponse
	data(c.t, resp, &out)
	return out.Token
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	c := env.newClient()

	status, resp := c.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, status)
	var health map[string]interface{}
	data(t, resp, &health)
	assert.Equal(t, "healthy", health["db_status"])
	assert.Equal(t, "embedded", health["checkout"])

	status, resp = c.do(http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
}

func TestRouter_LoginAndRoleGate(t *testing.T) {
	env := newTestEnv(t)
	anon := env.newClient()

	status, resp := anon.do(http.MethodGet, "/api/dashboard/users", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "/dashboard/login", resp.Error.Redirect)

	status, resp = anon.do(http.MethodPost, "/api/auth/login", models.LoginRequest{Email: adminEmail, Team: "Administration", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.MsgInvalidCredentials, resp.Error.Message)

	admin := env.newClient()
	admin.login(adminEmail, "Administration", adminPassword)

	status, _ = admin.do(http.MethodPost, "/api/dashboard/users", models.CreateUserRequest{
		FirstName: "Meera", LastName: "Shah", Email: "Meera@Example.org", Team: "finance", Password: "ledger-2024",
	})
	require.Equal(t, http.StatusCreated, status)

	status, resp = admin.do(http.MethodPost, "/api/dashboard/users", models.CreateUserRequest{
		FirstName: "Dup", LastName: "User", Email: "meera@example.org", Team: "Finance", Password: "ledger-2024",
	})
	assert.Equal(t, http.StatusConflict, status)

	finance := env.newClient()
	finance.login("meera@example.org", "Finance", "ledger-2024")

	status, resp = finance.do(http.MethodGet, "/api/dashboard/stories", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "/dashboard", resp.Error.Redirect)

	status, resp = finance.do(http.MethodGet, "/api/get-donations", nil)
	assert.Equal(t, http.StatusOK, status)
	var report models.DonationReport
	data(t, resp, &report)
	require.NotNil(t, report.Summary)
	assert.Equal(t, int64(5000), report.Summary.TotalAmount)

	status, resp = finance.do(http.MethodGet, "/api/auth/session", nil)
	assert.Equal(t, http.StatusOK, status)
	var session struct {
		Session      models.Session `json:"session"`
		AllowedPaths []string       `json:"allowedPaths"`
	}
	data(t, resp, &session)
	assert.True(t, session.Session.IsAuthenticated)
	assert.Equal(t, models.TeamFinance, session.Session.UserTeam)
	assert.Contains(t, session.AllowedPaths, "/dashboard/donations")
}

// createUser adds a dashboard user through the admin API and returns its id.
func (c *client) createUser(email, team string, active bool) string {
	c.t.Helper()
	status, resp := c.do(http.MethodPost, "/api/dashboard/users", models.CreateUserRequest{
		FirstName: "Test", LastName: "User", Email: email, Team: team, Password: "password-123", IsActive: &active,
	})
	require.Equal(c.t, http.StatusCreated, status, "%+v", resp.Error)
	var out struct {
		User models.User `json:"user"`
	}
	data(c.t, resp, &out)
	return out.User.ID
}

func TestRouter_InactiveUsersLoseAccess(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newClient()
	admin.login(adminEmail, "Administration", adminPassword)

	admin.createUser("dormant@example.org", "Board of Directors", false)
	status, resp := env.newClient().do(http.MethodPost, "/api/auth/login", models.LoginRequest{
		Email: "dormant@example.org", Team: "Board of Directors", Password: "password-123",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.MsgInactiveAccount, resp.Error.Message)

	id := admin.createUser("ledger@example.org", "Finance", true)
	finance := env.newClient()
	finance.login("ledger@example.org", "Finance", "password-123")
	status, _ = finance.do(http.MethodGet, "/api/get-donations", nil)
	require.Equal(t, http.StatusOK, status)

	team := "Communications"
	status, _ = admin.do(http.MethodPatch, "/api/dashboard/users/"+id, models.UpdateUserRequest{Team: &team})
	require.Equal(t, http.StatusOK, status)
	status, resp = finance.do(http.MethodGet, "/api/get-donations", nil)
	assert.Equal(t, http.StatusForbidden, status, "team change applies to the open session")
	assert.Equal(t, "/dashboard", resp.Error.Redirect)

	inactive := false
	status, _ = admin.do(http.MethodPatch, "/api/dashboard/users/"+id, models.UpdateUserRequest{IsActive: &inactive})
	require.Equal(t, http.StatusOK, status)
	status, resp = finance.do(http.MethodGet, "/api/dashboard/overview", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "/dashboard/login", resp.Error.Redirect)
}

func TestRouter_RoleGateByTeam(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newClient()
	admin.login(adminEmail, "Administration", adminPassword)

	clients := map[models.Team]*client{models.TeamAdministration: admin}
	for team, email := range map[models.Team]string{
		models.TeamBoard:          "board@example.org",
		models.TeamFinance:        "finance@example.org",
		models.TeamCommunications: "comms@example.org",
	} {
		admin.createUser(email, string(team), true)
		c := env.newClient()
		c.login(email, string(team), "password-123")
		clients[team] = c
	}

	const ok, denied = http.StatusOK, http.StatusForbidden
	cases := []struct {
		path  string
		board int
		fin   int
		comms int
		admin int
	}{
		{"/api/dashboard/overview", ok, ok, ok, ok},
		{"/api/dashboard/stories", denied, denied, ok, ok},
		{"/api/dashboard/projects", denied, denied, ok, ok},
		{"/api/get-donations", ok, ok, denied, ok},
		{"/api/dashboard/users", denied, denied, denied, ok},
	}
	for _, tc := range cases {
		for team, want := range map[models.Team]int{
			models.TeamBoard:          tc.board,
			models.TeamFinance:        tc.fin,
			models.TeamCommunications: tc.comms,
			models.TeamAdministration: tc.admin,
		} {
			status, resp := clients[team].do(http.MethodGet, tc.path, nil)
			assert.Equal(t, want, status, "%s as %s", tc.path, team)
			if want == denied && resp.Error != nil {
				assert.Equal(t, "/dashboard", resp.Error.Redirect, "%s as %s", tc.path, team)
			}
		}
	}

	var decision struct {
		Allowed  bool   `json:"allowed"`
		Redirect string `json:"redirect"`
	}
	_, resp := clients[models.TeamCommunications].do(http.MethodGet, "/api/auth/access?path=/dashboard/donations", nil)
	data(t, resp, &decision)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "/dashboard", decision.Redirect)

	status, _ := clients[models.TeamCommunications].do(http.MethodGet, "/api/events?topic="+events.TopicDonationCompleted, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = clients[models.TeamFinance].do(http.MethodGet, "/api/events?topic="+events.TopicAll, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRouter_LogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	c := env.newClient()
	token := c.login(adminEmail, "Administration", adminPassword)

	status, _ := c.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)

	replay := env.newClient()
	replay.bearer = token
	status, resp := replay.do(http.MethodGet, "/api/dashboard/overview", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "/dashboard/login", resp.Error.Redirect)
}

func saveStories(t *testing.T, c *client) {
	t.Helper()
	status, resp := c.do(http.MethodPut, "/api/dashboard/stories", map[string]interface{}{
		"stories": []models.Story{
			{ID: 1, Title: "Reading club", Category: models.CategoryStudents, Published: true, Featured: true, Tags: []string{}},
			{ID: 2, Title: "Draft", Category: models.CategoryTeachers, Tags: []string{}},
		},
	})
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	var out struct {
		Synced bool `json:"synced"`
	}
	data(t, resp, &out)
	assert.True(t, out.Synced)
}

func TestRouter_StoriesPublicView(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newClient()
	admin.login(adminEmail, "Administration", adminPassword)
	saveStories(t, admin)

	visitor := env.newClient()
	status, resp := visitor.do(http.MethodGet, "/api/stories", nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Stories []models.Story `json:"stories"`
	}
	data(t, resp, &list)
	require.Len(t, list.Stories, 1)
	assert.Equal(t, "Reading club", list.Stories[0].Title)

	status, _ = visitor.do(http.MethodGet, "/api/stories/2", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = admin.do(http.MethodGet, "/api/dashboard/stories/2", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = visitor.do(http.MethodGet, "/api/stories/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRouter_LikesAndViewsPerVisitor(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newClient()
	admin.login(adminEmail, "Administration", adminPassword)
	saveStories(t, admin)

	v := env.newClient()
	var summary models.InteractionSummary
	for i := 0; i < 2; i++ {
		status, resp := v.do(http.MethodPost, "/api/stories/1/like", nil)
		require.Equal(t, http.StatusOK, status)
		data(t, resp, &summary)
	}
	assert.Equal(t, 1, summary.Likes)
	assert.True(t, summary.Liked)

	other := env.newClient()
	_, resp := other.do(http.MethodPost, "/api/stories/1/like", nil)
	data(t, resp, &summary)
	assert.Equal(t, 2, summary.Likes)

	var view struct {
		Counted bool `json:"counted"`
	}
	_, resp = v.do(http.MethodPost, "/api/stories/1/view", nil)
	data(t, resp, &view)
	assert.True(t, view.Counted)
	_, resp = v.do(http.MethodPost, "/api/stories/1/view", nil)
	data(t, resp, &view)
	assert.False(t, view.Counted)

	status, _ := v.do(http.MethodPost, "/api/stories/2/like", nil)
	assert.Equal(t, http.StatusNotFound, status, "drafts take no interactions")

	_, resp = v.do(http.MethodGet, "/api/stories/1/interactions", nil)
	data(t, resp, &summary)
	assert.Equal(t, int64(1), summary.Views)

	// deleting the story removes its interaction record
	status, _ = admin.do(http.MethodDelete, "/api/dashboard/stories/1", nil)
	require.Equal(t, http.StatusOK, status)
	_, err := env.app.DB.GetInteraction(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRouter_ProjectReorder(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newClient()
	admin.login(adminEmail, "Administration", adminPassword)

	var ids []string
	for _, title := range []string{"Library", "Uniforms", "Bicycles"} {
		status, resp := admin.do(http.MethodPost, "/api/dashboard/projects", models.CreateProjectRequest{
			Title: title, Status: models.ProjectCurrent, TargetFunds: 1000,
		})
		require.Equal(t, http.StatusCreated, status, "%+v", resp.Error)
		var out struct {
			Project models.Project `json:"project"`
		}
		data(t, resp, &out)
		ids = append(ids, out.Project.ID)
	}

	status, _ := admin.do(http.MethodPost, "/api/dashboard/projects/"+ids[2]+"/move-up", nil)
	require.Equal(t, http.StatusOK, status)

	status, resp := env.newClient().do(http.MethodGet, "/api/projects?status=current", nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Projects []models.Project `json:"projects"`
	}
	data(t, resp, &list)
	require.Len(t, list.Projects, 3)
	assert.Equal(t, []string{"Library", "Bicycles", "Uniforms"},
		[]string{list.Projects[0].Title, list.Projects[1].Title, list.Projects[2].Title})
	assert.Equal(t, []string{ids[0], ids[2], ids[1]},
		[]string{list.Projects[0].ID, list.Projects[1].ID, list.Projects[2].ID})
	assert.True(t, list.Projects[0].Order < list.Projects[1].Order && list.Projects[1].Order < list.Projects[2].Order)

	status, resp = env.newClient().do(http.MethodGet, "/api/projects/bicycles", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.newClient().do(http.MethodGet, "/api/projects?status=someday", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRouter_DonationPresetCheckout(t *testing.T) {
	env := newTestEnv(t)
	donor := env.newClient()

	status, resp := donor.do(http.MethodPost, "/api/checkout/open", map[string]string{"kind": "donation"})
	require.Equal(t, http.StatusOK, status)
	var opened struct {
		State struct {
			Step string `json:"step"`
		} `json:"state"`
	}
	data(t, resp, &opened)
	assert.Equal(t, "amount", opened.State.Step)

	status, _ = donor.do(http.MethodPost, "/api/checkout/amount", map[string]interface{}{"preset": 50})
	require.Equal(t, http.StatusOK, status)

	status, resp = donor.do(http.MethodPost, "/api/checkout/continue", map[string]string{"kind": "donation"})
	require.Equal(t, http.StatusOK, status)
	var continued struct {
		State struct {
			Step         string `json:"step"`
			ClientSecret string `json:"clientSecret"`
		} `json:"state"`
	}
	data(t, resp, &continued)
	assert.Equal(t, "embed", continued.State.Step)
	assert.Equal(t, "cs_test_secret", continued.State.ClientSecret)

	require.Len(t, env.gateway.sessionRequests(), 1)
	assert.Equal(t, models.CheckoutSessionRequest{
		Embedded:  true,
		ReturnURL: siteURL + "/donate/complete?session_id={CHECKOUT_SESSION_ID}",
		Amount:    5000,
	}, env.gateway.sessionRequests()[0])
}

func TestRouter_CreateCheckoutSessionValidatesAmount(t *testing.T) {
	env := newTestEnv(t)
	c := env.newClient()

	status, resp := c.do(http.MethodPost, "/api/create-checkout-session", models.CheckoutSessionRequest{Embedded: true, Amount: 99})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Empty(t, env.gateway.sessionRequests())

	status, resp = c.do(http.MethodPost, "/api/create-checkout-session", models.CheckoutSessionRequest{
		Embedded: true, Subscription: true, ReturnURL: "https://evil.example/steal",
	})
	require.Equal(t, http.StatusOK, status)
	var out map[string]string
	data(t, resp, &out)
	assert.Equal(t, "cs_test_secret", out["clientSecret"])
	reqs := env.gateway.sessionRequests()
	require.Len(t, reqs, 1)
	assert.True(t, strings.HasPrefix(reqs[0].ReturnURL, siteURL))
}

func TestRouter_StripeWebhook(t *testing.T) {
	env := newTestEnv(t)
	ch, cancel := env.app.Bus.Subscribe(events.TopicDonationCompleted, 1)
	defer cancel()

	c := env.newClient()
	status, _ := c.doWebhook("invalid")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = c.doWebhook("valid")
	require.Equal(t, http.StatusOK, status)

	select {
	case ev := <-ch:
		assert.Equal(t, events.TopicDonationCompleted, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("donation event not published")
	}
	assert.Eventually(t, func() bool {
		for _, m := range env.mailer.messages() {
			if len(m.To) == 1 && m.To[0] == "donor@example.org" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func (c *client) doWebhook(signature string) (int, utils.APIResponse) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+"/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	var resp utils.APIResponse
	require.NoError(c.t, json.NewDecoder(res.Body).Decode(&resp))
	return res.StatusCode, resp
}

func TestRouter_ContactAndCommunityRegistration(t *testing.T) {
	env := newTestEnv(t)
	c := env.newClient()

	status, _ := c.do(http.MethodPost, "/api/contact", models.ContactRequest{
		Name: "Ravi", Email: "ravi@example.org", Message: "How can I volunteer?",
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = c.do(http.MethodPost, "/api/register-community-member", models.CommunityMemberRequest{
		FirstName: "Asha", LastName: "Patil", Email: "ASHA@example.org", Country: "IN",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, env.gateway.created, 1)
	assert.Equal(t, "asha@example.org", env.gateway.created[0].Email)

	assert.Eventually(t, func() bool { return len(env.mailer.messages()) == 2 }, time.Second, 10*time.Millisecond)
	msgs := env.mailer.messages()
	var inbox bool
	for _, m := range msgs {
		if m.To[0] == "info@betiharisociety.org" {
			inbox = true
			assert.Equal(t, "ravi@example.org", m.ReplyTo)
		}
	}
	assert.True(t, inbox)

	status, resp := c.do(http.MethodPost, "/api/contact", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestRouter_NewsletterDefaultsToCommunity(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.customers = []models.Customer{
		{ID: "cus_1", Email: "one@example.org"},
		{ID: "cus_2", Email: "ONE@example.org"},
		{ID: "cus_3", Email: "two@example.org"},
	}
	admin := env.newClient()
	admin.login(adminEmail, "Administration", adminPassword)

	status, resp := admin.do(http.MethodPost, "/api/send-newsletter", models.NewsletterRequest{Subject: "June update", Body: "Hello"})
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	var result models.EmailResult
	data(t, resp, &result)
	assert.Equal(t, 2, result.Sent)
}

func TestRouter_MediaUploadsNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newClient()
	admin.login(adminEmail, "Administration", adminPassword)

	status, resp := admin.do(http.MethodPost, "/api/dashboard/media/presign", map[string]string{
		"folder": "stories", "filename": "club.jpg", "contentType": "image/jpeg",
	})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.False(t, resp.Success)
}

func TestRouter_DashboardOverview(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newClient()
	admin.login(adminEmail, "Administration", adminPassword)
	saveStories(t, admin)

	status, resp := admin.do(http.MethodGet, "/api/dashboard/overview", nil)
	require.Equal(t, http.StatusOK, status)
	var overview struct {
		Content struct {
			Data map[string]int `json:"data"`
		} `json:"content"`
		Donations struct {
			Data  *models.DonationSummary `json:"data"`
			Error string                  `json:"error"`
		} `json:"donations"`
	}
	data(t, resp, &overview)
	assert.Equal(t, 2, overview.Content.Data["stories"])
	assert.Equal(t, 1, overview.Content.Data["publishedStories"])
	assert.Equal(t, 1, overview.Content.Data["users"])
	require.NotNil(t, overview.Donations.Data)
	assert.Empty(t, overview.Donations.Error)
}

func TestApp_ShutdownFlushesAndClosesBus(t *testing.T) {
	env := newTestEnv(t)
	ch, cancel := env.app.Bus.Subscribe(events.TopicAll, 1)
	defer cancel()

	require.NoError(t, env.app.Shutdown(context.Background()))
	_, open := <-ch
	assert.False(t, open)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Deps{Config: testConfig()})
	assert.Error(t, err)
}
