package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"betihari-backend/pkg/handlers"
	customMiddleware "betihari-backend/pkg/middleware"
	"betihari-backend/pkg/utils"
)

const (
	// requestTimeout leaves headroom under the serverless function limit.
	requestTimeout = 25 * time.Second
	maxBodyBytes   = 1 << 20
)

func (a *App) routes() http.Handler {
	router := chi.NewRouter()
	a.setupMiddleware(router)
	a.setupRoutes(router)
	return router
}

func (a *App) setupMiddleware(router *chi.Mux) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger())
	router.Use(customMiddleware.Metrics(a.Metrics))
	router.Use(customMiddleware.Recovery(a.Config))
	router.Use(customMiddleware.CORS(a.Config))
	router.Use(middleware.Compress(5))
	router.Use(middleware.Heartbeat("/ping"))
	router.Use(customMiddleware.Visitor())
}

func (a *App) setupRoutes(router *chi.Mux) {
	cfg := a.Config

	healthHandler := handlers.NewHealthHandler(cfg, a.DB, a.Checkout, a.mailer)
	authHandler := handlers.NewAuthHandler(cfg, a.Auth)
	storiesHandler := handlers.NewStoriesHandler(a.Stories, a.Interactions)
	interactionsHandler := handlers.NewInteractionsHandler(a.Stories, a.Interactions)
	projectsHandler := handlers.NewProjectsHandler(a.Projects)
	usersHandler := handlers.NewUsersHandler(a.Users)
	checkoutHandler := handlers.NewCheckoutHandler(a.Checkout, a.gateway, a.Metrics)
	donationsHandler := handlers.NewDonationsHandler(a.gateway, a.Analytics, a.mailer)
	emailsHandler := handlers.NewEmailsHandler(cfg, a.mailer, a.gateway, a.Metrics)
	webhookHandler := handlers.NewWebhookHandler(a.gateway, a.Analytics, a.mailer, a.Bus, a.Metrics)
	mediaHandler := handlers.NewMediaHandler(a.uploader)
	dashboardHandler := handlers.NewDashboardHandler(a.Stories, a.Projects, a.Users, a.Interactions, a.Analytics)
	eventsHandler := handlers.NewEventsHandler(a.Bus)

	router.Get("/", healthHandler.HealthCheck)
	router.Handle("/metrics", a.Metrics.Handler())
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", healthHandler.PoolStats)
	}

	limited := customMiddleware.RateLimitByIP(cfg.RateLimitPerMinute)
	requireAuth := customMiddleware.AuthMiddleware(a.Auth)
	optionalAuth := customMiddleware.OptionalAuthMiddleware(a.Auth)
	gate := customMiddleware.RequireDashboardAccess

	router.Route("/api", func(r chi.Router) {
		// Server-sent events outlive the request timeout.
		r.With(optionalAuth).Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Use(customMiddleware.MaxBodySize(maxBodyBytes))
			r.Use(customMiddleware.ContentTypeJSON)

			r.Route("/auth", func(r chi.Router) {
				r.With(limited).Post("/login", authHandler.Login)
				r.With(optionalAuth).Post("/logout", authHandler.Logout)
				r.With(optionalAuth).Get("/session", authHandler.Session)
				r.With(optionalAuth).Get("/access", authHandler.Access)
			})

			// Public site
			r.Route("/stories", func(r chi.Router) {
				r.Get("/", storiesHandler.ListPublished)
				r.Get("/featured", storiesHandler.Featured)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", storiesHandler.GetPublished)
					r.Get("/interactions", interactionsHandler.Get)
					r.Group(func(r chi.Router) {
						r.Use(limited)
						r.Post("/like", interactionsHandler.Like)
						r.Delete("/like", interactionsHandler.Unlike)
						r.Post("/comments", interactionsHandler.Comment)
						r.Post("/view", interactionsHandler.View)
						r.Post("/share", interactionsHandler.Share)
					})
				})
			})
			r.Get("/projects", projectsHandler.List)
			r.Get("/projects/{slug}", projectsHandler.GetBySlug)

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/config", checkoutHandler.Config)
				r.Post("/open", checkoutHandler.Open)
				r.Post("/amount", checkoutHandler.Amount)
				r.With(limited).Post("/continue", checkoutHandler.Continue)
				r.Post("/close", checkoutHandler.Close)
			})
			r.With(limited).Post("/create-checkout-session", checkoutHandler.CreateSession)
			r.With(limited).Post("/register-community-member", donationsHandler.RegisterCommunityMember)
			r.With(limited).Post("/contact", emailsHandler.Contact)

			// Gateway notifications are signature-checked by the handler.
			r.Post("/webhooks/stripe", webhookHandler.HandleStripeWebhook)

			// Finance
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, gate("/dashboard/donations"))
				r.Get("/get-donations", donationsHandler.Report)
				r.Get("/stripe-customers", donationsHandler.Customers)
				r.Post("/update-stripe-customer", donationsHandler.UpdateCustomer)
				r.Post("/request-payment", donationsHandler.RequestPayment)
			})

			// Email
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, gate("/dashboard/emails"))
				r.Post("/send-email", emailsHandler.Send)
				r.Post("/send-newsletter", emailsHandler.Newsletter)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Use(requireAuth)

				r.With(gate("/dashboard")).Get("/overview", dashboardHandler.Overview)
				r.With(gate("/dashboard")).Get("/activity", interactionsHandler.Activity)

				r.Route("/stories", func(r chi.Router) {
					r.Use(gate("/dashboard/stories"))
					r.Get("/", storiesHandler.ListAll)
					r.Put("/", storiesHandler.SaveAll)
					r.Post("/", storiesHandler.Create)
					r.Get("/{id}", storiesHandler.Get)
					r.Patch("/{id}", storiesHandler.Update)
					r.Delete("/{id}", storiesHandler.Delete)
				})

				r.Route("/projects", func(r chi.Router) {
					r.Use(gate("/dashboard/projects"))
					r.Get("/", projectsHandler.List)
					r.Post("/", projectsHandler.Create)
					r.Get("/{id}", projectsHandler.Get)
					r.Patch("/{id}", projectsHandler.Update)
					r.Delete("/{id}", projectsHandler.Delete)
					r.Post("/{id}/move-up", projectsHandler.MoveUp)
					r.Post("/{id}/move-down", projectsHandler.MoveDown)
					r.Put("/{id}/status", projectsHandler.SetStatus)
				})

				r.Route("/users", func(r chi.Router) {
					r.Use(gate("/dashboard/users"))
					r.Get("/", usersHandler.List)
					r.Post("/", usersHandler.Create)
					r.Get("/{id}", usersHandler.Get)
					r.Patch("/{id}", usersHandler.Update)
					r.Delete("/{id}", usersHandler.Delete)
				})

				r.With(gate("/dashboard/stories")).Post("/media/presign", mediaHandler.Presign)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
