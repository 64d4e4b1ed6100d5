package handler

import (
	"context"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/config"
	"betihari-backend/pkg/logging"
	"betihari-backend/pkg/server"
	"betihari-backend/pkg/utils"
)

var (
	appMu sync.Mutex
	app   *server.App
)

// coldStart builds the application once per function instance and retries on
// the next request after a failure. Background jobs are not started; a
// function instance only lives for its requests.
func coldStart(ctx context.Context) (*server.App, error) {
	appMu.Lock()
	defer appMu.Unlock()
	if app != nil {
		return app, nil
	}

	cfg, err := config.GetCached()
	if err != nil {
		return nil, err
	}
	logging.Configure(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := server.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	app = a
	return app, nil
}

// Handler is the Vercel function entry point. Every API route is served by
// one chi router.
func Handler(w http.ResponseWriter, r *http.Request) {
	a, err := coldStart(context.WithoutCancel(r.Context()))
	if err != nil {
		log.WithError(err).Error("failed to start application")
		utils.WriteServiceUnavailableResponse(w, "Service is starting up or misconfigured, please try again later")
		return
	}
	a.Handler.ServeHTTP(w, r)
}
