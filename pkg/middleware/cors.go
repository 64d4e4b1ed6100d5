package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"betihari-backend/pkg/config"
)

// CORS allows the configured site origins. A wildcard origin disables credentials.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
			"Cache-Control",
		},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	if len(opts.AllowedOrigins) == 0 || contains(opts.AllowedOrigins, "*") {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	// The site itself is always allowed.
	if cfg.SiteURL != "" && opts.AllowCredentials && !contains(opts.AllowedOrigins, cfg.SiteURL) {
		opts.AllowedOrigins = append(opts.AllowedOrigins, cfg.SiteURL)
	}

	return cors.Handler(opts)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
