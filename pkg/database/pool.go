package database

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const poolMaxAge = 30 * time.Minute

// DatabasePool keeps one store per warm process so serverless invocations reuse connections.
type DatabasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex

	// openDatabase is a seam for tests.
	openDatabase = NewDatabase
)

// GetDatabase returns the shared store, recreating it when the configuration
// changed, the handle aged out or its health check fails.
func GetDatabase(ctx context.Context, config DatabaseConfig) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreateConnection(ctx, globalPool, config) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		return globalPool.instance, nil
	}

	if globalPool != nil && globalPool.instance != nil {
		globalPool.instance.Close()
	}

	log.Debug("creating database connection pool")
	instance, err := openDatabase(config)
	if err != nil {
		globalPool = nil
		return nil, err
	}
	globalPool = &DatabasePool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

func shouldRecreateConnection(ctx context.Context, pool *DatabasePool, newConfig DatabaseConfig) bool {
	if pool.instance == nil {
		return true
	}
	if pool.config != newConfig {
		log.Info("database configuration changed, recreating connection")
		return true
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > poolMaxAge
	pool.mu.RUnlock()
	if expired {
		log.Info("database connection expired, recreating")
		return true
	}

	if err := pool.instance.HealthCheck(ctx); err != nil {
		log.WithError(err).Warn("database health check failed, recreating")
		return true
	}
	return false
}

// ClosePool closes the shared store. It reports whether a store was open.
func ClosePool() bool {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return false
	}
	log.Info("closing shared database connection")
	if globalPool.instance != nil {
		if err := globalPool.instance.Close(); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}
	globalPool = nil
	return true
}

// GetConnectionStats describes the shared store for the health endpoint.
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
		"config": map[string]interface{}{
			"use_local_db": globalPool.config.UseLocalDB,
			"has_postgres": globalPool.config.PostgresDSN != "",
		},
	}
}

// resetPool drops the shared store without closing it.
func resetPool() {
	poolMutex.Lock()
	globalPool = nil
	poolMutex.Unlock()
}
