package handlers

import (
	"context"
	"net/http"
	"time"

	"betihari-backend/pkg/checkout"
	"betihari-backend/pkg/config"
	"betihari-backend/pkg/database"
	"betihari-backend/pkg/mailer"
	"betihari-backend/pkg/utils"
)

const serviceName = "betihari-backend"

// HealthHandler reports store and integration status.
type HealthHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	checkout *checkout.Checkout
	mailer   mailer.Mailer
}

func NewHealthHandler(cfg *config.Config, db database.DatabaseInterface, c *checkout.Checkout, m mailer.Mailer) *HealthHandler {
	return &HealthHandler{config: cfg, db: db, checkout: c, mailer: m}
}

func (h *HealthHandler) databaseType() string {
	switch {
	case h.config.UseLocalDB:
		return "local"
	case h.config.PostgresDSN != "":
		return "postgresql"
	}
	return "unknown"
}

// HealthCheck handles GET /. A failing store is reported, not fatal.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if h.db == nil {
		dbStatus = "unavailable"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service":      serviceName,
		"environment":  h.config.Environment,
		"database":     h.databaseType(),
		"db_status":    dbStatus,
		"interactions": h.config.InteractionsBackend,
		"checkout":     h.checkout.Capability(),
		"email":        mailer.Configured(h.mailer),
		"media":        h.config.MediaConfigured(),
		"timestamp":    time.Now().Unix(),
		"status":       "healthy",
	})
}

// PoolStats handles GET /debug/db-pool in development.
func (h *HealthHandler) PoolStats(w http.ResponseWriter, r *http.Request) {
	stats := database.GetConnectionStats()
	stats["serverless"] = database.IsServerlessEnvironment()
	utils.WriteSuccessResponse(w, stats)
}
