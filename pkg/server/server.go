// Package server wires configuration, stores, integrations and handlers into
// one application.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/auth"
	"betihari-backend/pkg/checkout"
	"betihari-backend/pkg/config"
	"betihari-backend/pkg/database"
	"betihari-backend/pkg/events"
	"betihari-backend/pkg/jobs"
	"betihari-backend/pkg/mailer"
	"betihari-backend/pkg/media"
	"betihari-backend/pkg/metrics"
	"betihari-backend/pkg/payments"
	"betihari-backend/pkg/services"
	"betihari-backend/pkg/utils"
)

const (
	// InteractionsDynamo selects the DynamoDB interaction store.
	InteractionsDynamo = "dynamodb"

	jobTimeout = 30 * time.Second
)

// Deps are the collaborators an App is built from. Nil integrations fall back
// to their disabled implementations.
type Deps struct {
	Config *config.Config
	DB     database.DatabaseInterface
	// Interactions overrides the interaction store of DB.
	Interactions database.InteractionStore
	Gateway      payments.Gateway
	Mailer       mailer.Mailer
	Uploader     media.Uploader
	Metrics      *metrics.Metrics
	Bus          *events.Bus
	Hasher       auth.Hasher
}

// App is the assembled site backend.
type App struct {
	Config  *config.Config
	Handler http.Handler

	DB           database.DatabaseInterface
	Bus          *events.Bus
	Metrics      *metrics.Metrics
	Auth         *auth.Service
	Users        *services.UserService
	Stories      *services.StoryService
	Projects     *services.ProjectService
	Interactions *services.InteractionService
	Analytics    *payments.Analytics
	Checkout     *checkout.Checkout
	Scheduler    *jobs.Scheduler

	gateway  payments.Gateway
	mailer   mailer.Mailer
	uploader media.Uploader
}

// Resolve opens the stores and integrations cfg describes. Optional
// integrations that fail to initialise are logged and left disabled.
func Resolve(ctx context.Context, cfg *config.Config) (Deps, error) {
	db, err := database.GetDatabase(ctx, database.DatabaseConfig{
		UseLocalDB:   cfg.UseLocalDB,
		LocalDataDir: cfg.LocalDataDir,
		PostgresDSN:  cfg.PostgresDSN,
		Debug:        cfg.Debug,
	})
	if err != nil {
		return Deps{}, fmt.Errorf("failed to open content store: %w", err)
	}

	deps := Deps{Config: cfg, DB: db}

	if cfg.InteractionsBackend == InteractionsDynamo {
		store, err := database.NewDynamoInteractionStore(ctx, cfg.AWSRegion, cfg.DynamoInteractionsTable)
		if err != nil {
			log.WithError(err).Warn("DynamoDB interactions unavailable, using the primary store")
		} else {
			deps.Interactions = store
		}
	}

	if cfg.StripeSecretKey != "" {
		gw, err := payments.NewStripeGateway(payments.StripeConfig{
			SecretKey:         cfg.StripeSecretKey,
			WebhookSecret:     cfg.StripeWebhookSecret,
			MembershipPriceID: cfg.StripeMembershipPriceID,
		})
		if err != nil {
			log.WithError(err).Warn("payment gateway disabled")
		} else {
			deps.Gateway = gw
		}
	}

	if cfg.MailerConfigured() {
		m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			log.WithError(err).Warn("email delivery disabled")
		} else {
			deps.Mailer = m
		}
	}

	if cfg.MediaConfigured() {
		u, err := media.NewS3Uploader(ctx, media.Config{
			Region:        cfg.AWSRegion,
			Bucket:        cfg.MediaBucket,
			PublicBaseURL: cfg.MediaPublicBaseURL,
			Validity:      cfg.MediaUploadURLValidity,
		})
		if err != nil {
			log.WithError(err).Warn("media uploads disabled")
		} else {
			deps.Uploader = u
		}
	}

	return deps, nil
}

// New builds the services, jobs and router from deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("server: missing configuration")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("server: missing content store")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus()
	}
	if deps.Hasher == nil {
		deps.Hasher = auth.NewBcryptHasher(0)
	}
	if deps.Gateway == nil {
		deps.Gateway = payments.Disabled{}
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.Disabled{}
	}
	if deps.Uploader == nil {
		deps.Uploader = media.Disabled{}
	}
	var interactionStore database.InteractionStore = deps.DB
	if deps.Interactions != nil {
		interactionStore = deps.Interactions
	}

	app := &App{
		Config:   cfg,
		DB:       deps.DB,
		Bus:      deps.Bus,
		Metrics:  deps.Metrics,
		Checkout: checkout.New(checkout.SettingsFromConfig(cfg)),
		gateway:  deps.Gateway,
		mailer:   deps.Mailer,
		uploader: deps.Uploader,
	}

	app.Users = services.NewUserService(deps.DB, deps.Hasher, deps.Bus, cfg.FetchTimeout)
	app.Stories = services.NewStoryService(deps.DB, deps.Bus, cfg.FetchTimeout)
	app.Projects = services.NewProjectService(deps.DB, deps.Bus, cfg.FetchTimeout)
	app.Interactions = services.NewInteractionService(interactionStore, deps.Bus, deps.Metrics, cfg.FetchTimeout)
	app.Analytics = payments.NewAnalytics(deps.Gateway)
	app.Auth = auth.NewService(deps.DB, deps.Hasher, utils.NewJWTService(cfg.JWTSecret, cfg.SessionTTL), deps.Metrics, auth.DefaultAdmin{
		Email:     cfg.DefaultAdminEmail,
		Password:  cfg.DefaultAdminPassword,
		FirstName: cfg.DefaultAdminFirstName,
		LastName:  cfg.DefaultAdminLastName,
	})

	app.Scheduler = jobs.NewScheduler(jobTimeout)
	maintenance := jobs.Maintenance{Stories: app.Stories}
	if _, disabled := deps.Gateway.(payments.Disabled); !disabled {
		maintenance.Analytics = app.Analytics
	}
	if err := jobs.Register(app.Scheduler, maintenance); err != nil {
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	app.Handler = app.routes()
	return app, nil
}

// Build resolves deps from cfg and assembles the App.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	deps, err := Resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(deps)
}

// Init applies schema migrations and bootstraps the default administrator.
// A failed bootstrap is logged; the site still serves content.
func (a *App) Init(ctx context.Context) error {
	if err := database.Migrate(ctx, a.DB); err != nil {
		return err
	}
	created, err := a.Auth.EnsureDefaultAdmin(ctx)
	if err != nil {
		log.WithError(err).Warn("default administrator bootstrap failed")
	} else if created {
		log.WithField("email", a.Config.DefaultAdminEmail).Info("created default administrator")
	}
	return nil
}

// Shutdown stops background work, flushes pending story edits and releases
// the shared store.
func (a *App) Shutdown(ctx context.Context) error {
	a.Scheduler.Stop()
	err := a.Stories.Flush(ctx)
	if err != nil {
		log.WithError(err).Error("failed to flush pending story edits")
	}
	a.Bus.Close()
	database.ClosePool()
	return err
}
