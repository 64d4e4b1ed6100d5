package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betihari-backend/pkg/config"
)

func TestConfigureOutput_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	ConfigureOutput(&config.Config{Environment: "production"}, &buf)
	t.Cleanup(func() { ConfigureOutput(&config.Config{Environment: "development"}, &bytes.Buffer{}) })

	log.WithField("story_id", 7).Info("story published")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "story published", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.EqualValues(t, 7, line["story_id"])
}

func TestConfigureOutput_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	ConfigureOutput(&config.Config{Environment: "development", Debug: true}, &buf)
	t.Cleanup(func() { ConfigureOutput(&config.Config{Environment: "development"}, &bytes.Buffer{}) })

	assert.Equal(t, log.DebugLevel, log.GetLevel())
	log.Debug("cache miss")
	assert.Contains(t, buf.String(), "cache miss")
}
