package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betihari-backend/pkg/checkout"
	"betihari-backend/pkg/config"
	"betihari-backend/pkg/events"
	"betihari-backend/pkg/mailer"
	"betihari-backend/pkg/metrics"
	"betihari-backend/pkg/middleware"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/payments"
	"betihari-backend/pkg/utils"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// sessionGateway fails the first n session requests.
type sessionGateway struct {
	payments.Gateway
	failures int
	calls    int
	event    *payments.WebhookEvent
}

func (g *sessionGateway) CreateCheckoutSession(context.Context, models.CheckoutSessionRequest) (*models.CheckoutSession, error) {
	g.calls++
	if g.calls <= g.failures {
		return nil, errors.New("gateway timeout")
	}
	return &models.CheckoutSession{ClientSecret: "secret"}, nil
}

func (g *sessionGateway) ParseWebhook([]byte, string) (*payments.WebhookEvent, error) {
	return g.event, nil
}

func embeddedCheckout() *checkout.Checkout {
	return checkout.New(checkout.Settings{PublishableKey: "pk", SecretKey: "sk", SiteURL: "https://betiharisociety.org"})
}

func checkoutRouter(h *CheckoutHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Visitor())
	r.Post("/open", h.Open)
	r.Post("/amount", h.Amount)
	r.Post("/continue", h.Continue)
	r.Post("/close", h.Close)
	return r
}

// browser replays the visitor cookies of the first response.
func browser(h http.Handler) func(req *http.Request) *httptest.ResponseRecorder {
	var cookies []*http.Cookie
	return func(req *http.Request) *httptest.ResponseRecorder {
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if cookies == nil {
			cookies = rec.Result().Cookies()
		}
		return rec
	}
}

type flowState struct {
	State checkout.State `json:"state"`
}

func stateOf(t *testing.T, rec *httptest.ResponseRecorder) checkout.State {
	t.Helper()
	var out flowState
	raw, err := json.Marshal(decode(t, rec).Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	return out.State
}

func TestCheckout_FailedSessionKeepsAmountStepForRetry(t *testing.T) {
	gw := &sessionGateway{failures: 1}
	h := NewCheckoutHandler(embeddedCheckout(), gw, metrics.New())
	send := browser(checkoutRouter(h))

	rec := send(jsonRequest(http.MethodPost, "/open", `{"kind":"donation"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, checkout.StepAmount, stateOf(t, rec).Step)

	rec = send(jsonRequest(http.MethodPost, "/continue", `{"kind":"donation"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no amount chosen yet")
	assert.Equal(t, 0, gw.calls)

	rec = send(jsonRequest(http.MethodPost, "/amount", `{"custom":"$75 "}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7500), stateOf(t, rec).AmountCents)

	rec = send(jsonRequest(http.MethodPost, "/continue", `{"kind":"donation"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	state := stateOf(t, rec)
	assert.Equal(t, checkout.StepAmount, state.Step)
	assert.NotEmpty(t, state.Error)
	assert.Empty(t, state.ClientSecret)

	rec = send(jsonRequest(http.MethodPost, "/continue", `{"kind":"donation"}`))
	state = stateOf(t, rec)
	assert.Equal(t, checkout.StepEmbed, state.Step)
	assert.Equal(t, "secret", state.ClientSecret)
	assert.Equal(t, 2, gw.calls)

	rec = send(jsonRequest(http.MethodPost, "/close", `{"kind":"donation"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = send(jsonRequest(http.MethodPost, "/amount", `{"preset":25}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_AmountRejectsUnofferedPreset(t *testing.T) {
	h := NewCheckoutHandler(embeddedCheckout(), &sessionGateway{}, nil)
	send := browser(checkoutRouter(h))

	require.Equal(t, http.StatusOK, send(jsonRequest(http.MethodPost, "/open", `{"kind":"donation"}`)).Code)

	rec := send(jsonRequest(http.MethodPost, "/amount", `{"preset":50000000}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error.Code)

	rec = send(jsonRequest(http.MethodPost, "/amount", `{"preset":250}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(25000), stateOf(t, rec).AmountCents)
}

// closingGateway closes the open donation flow before answering.
type closingGateway struct {
	payments.Gateway
	h   *CheckoutHandler
	key string
}

func (g *closingGateway) CreateCheckoutSession(context.Context, models.CheckoutSessionRequest) (*models.CheckoutSession, error) {
	if v, ok := g.h.flows.Get(g.key); ok {
		v.(*checkout.Flow).Close()
	}
	return &models.CheckoutSession{ClientSecret: "late"}, nil
}

func TestCheckout_ContinueAfterCloseIsNotCountedAsSession(t *testing.T) {
	m := metrics.New()
	gw := &closingGateway{}
	h := NewCheckoutHandler(embeddedCheckout(), gw, m)
	gw.h = h
	send := browser(checkoutRouter(h))

	rec := send(jsonRequest(http.MethodPost, "/open", `{"kind":"donation"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	keys := h.flows.Items()
	require.Len(t, keys, 1)
	for k := range keys {
		gw.key = k
	}
	require.Equal(t, http.StatusOK, send(jsonRequest(http.MethodPost, "/amount", `{"preset":50}`)).Code)

	rec = send(jsonRequest(http.MethodPost, "/continue", `{"kind":"donation"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	state := stateOf(t, rec)
	assert.Equal(t, checkout.StepClosed, state.Step)
	assert.Empty(t, state.ClientSecret)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		assert.NotEqual(t, "betihari_checkout_sessions_total", mf.GetName())
	}
}

func TestCheckout_OpenWithoutGatewayOffersMailto(t *testing.T) {
	c := checkout.New(checkout.Settings{ContactEmail: "info@betiharisociety.org"})
	h := NewCheckoutHandler(c, payments.Disabled{}, nil)

	rec := httptest.NewRecorder()
	checkoutRouter(h).ServeHTTP(rec, jsonRequest(http.MethodPost, "/open", `{"kind":"membership"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Opening checkout.Opening `json:"opening"`
		State   *checkout.State  `json:"state"`
	}
	raw, _ := json.Marshal(decode(t, rec).Data)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, checkout.ModeMailto, out.Opening.Mode)
	assert.True(t, strings.HasPrefix(out.Opening.URL, "mailto:info@betiharisociety.org"))
	assert.Nil(t, out.State)
}

func TestCheckout_OpenRejectsUnknownKind(t *testing.T) {
	h := NewCheckoutHandler(embeddedCheckout(), &sessionGateway{}, nil)
	rec := httptest.NewRecorder()
	checkoutRouter(h).ServeHTTP(rec, jsonRequest(http.MethodPost, "/open", `{"kind":"raffle"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error.Code)
}

func TestEmails_NotConfigured(t *testing.T) {
	h := NewEmailsHandler(&config.Config{ContactEmail: "info@betiharisociety.org"}, mailer.Disabled{}, payments.Disabled{}, nil)

	rec := httptest.NewRecorder()
	h.Send(rec, jsonRequest(http.MethodPost, "/api/send-email",
		`{"to":["a@example.org"],"subject":"Hi","body":"Hello"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, emailNotConfigured, decode(t, rec).Error.Message)

	rec = httptest.NewRecorder()
	h.Send(rec, jsonRequest(http.MethodPost, "/api/send-email", `{"to":[],"subject":"Hi","body":"Hello"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "validation runs before the configuration check")
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	gw := &sessionGateway{event: &payments.WebhookEvent{ID: "evt_9", Type: "customer.created"}}
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(events.TopicAll, 1)
	defer cancel()
	h := NewWebhookHandler(gw, payments.NewAnalytics(gw), mailer.Disabled{}, bus, nil)

	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, jsonRequest(http.MethodPost, "/api/webhooks/stripe", `{}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"status": "ignored"}, decode(t, rec).Data)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.Topic)
	default:
	}
}

func TestEvents_StreamsPublicTopic(t *testing.T) {
	bus := events.NewBus()
	h := NewEventsHandler(bus)
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	res, err := http.Get(srv.URL + "?topic=" + events.TopicStoriesChanged)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	reader := bufio.NewReader(res.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool {
		return bus.Publish(events.TopicStoriesChanged, map[string]int{"count": 2}) > 0
	}, time.Second, 10*time.Millisecond)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event:") {
			break
		}
	}
	assert.Equal(t, "event: "+events.TopicStoriesChanged+"\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"count":2`)
}

func TestEvents_PrivateTopicNeedsSession(t *testing.T) {
	h := NewEventsHandler(events.NewBus())
	rec := httptest.NewRecorder()
	h.Stream(rec, httptest.NewRequest(http.MethodGet, "/api/events?topic="+events.TopicUsersChanged, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEvents_PrivateTopicsFollowRoleGate(t *testing.T) {
	h := NewEventsHandler(events.NewBus())
	stream := func(team models.Team, topic string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/events?topic="+topic, nil)
		req = req.WithContext(middleware.WithClaims(req.Context(), &models.TokenClaims{UserID: "u1", Team: team}))
		rec := httptest.NewRecorder()
		h.Stream(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, stream(models.TeamCommunications, events.TopicDonationCompleted))
	assert.Equal(t, http.StatusForbidden, stream(models.TeamCommunications, events.TopicAll))
	assert.Equal(t, http.StatusForbidden, stream(models.TeamFinance, events.TopicUsersChanged))
	assert.Equal(t, http.StatusForbidden, stream(models.TeamBoard, events.TopicAll))
	assert.Equal(t, http.StatusBadRequest, stream(models.TeamAdministration, "payroll.changed"))
}

func TestEvents_AuthorizeTopic(t *testing.T) {
	allowed := func(team models.Team, topic string) bool {
		req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		req = req.WithContext(middleware.WithClaims(req.Context(), &models.TokenClaims{Team: team}))
		return authorizeTopic(httptest.NewRecorder(), req, topic)
	}

	assert.True(t, allowed(models.TeamFinance, events.TopicDonationCompleted))
	assert.True(t, allowed(models.TeamBoard, events.TopicDonationCompleted))
	assert.True(t, allowed(models.TeamAdministration, events.TopicUsersChanged))
	assert.True(t, allowed(models.TeamAdministration, events.TopicAll))
	assert.True(t, allowed(models.TeamCommunications, events.TopicStoriesChanged))
	assert.False(t, allowed(models.TeamCommunications, events.TopicDonationCompleted))
}

func TestHelpers_QueryAndIDParsing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500&bad=x", nil)
	assert.Equal(t, 100, intQuery(r, "limit", 10, 100))
	assert.Equal(t, 10, intQuery(r, "bad", 10, 100))
	assert.Equal(t, 10, intQuery(r, "missing", 10, 100))

	router := chi.NewRouter()
	var got int64
	router.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		if id, ok := storyIDParam(w, r); ok {
			got = id
			w.WriteHeader(http.StatusNoContent)
		}
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/42", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), got)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-3", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
