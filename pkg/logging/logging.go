// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/config"
)

// Configure sets the logrus formatter and level for the given environment.
// Production logs are JSON lines; development logs are human readable.
func Configure(cfg *config.Config) {
	ConfigureOutput(cfg, os.Stdout)
}

// ConfigureOutput is Configure with an explicit writer.
func ConfigureOutput(cfg *config.Config, out io.Writer) {
	log.SetOutput(out)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}
