package config

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMapOverridesDefaults(t *testing.T) {
	cfg, err := FromMap(Default(), map[string]string{
		"timeout":          "10s",
		"reconnect_count":  "5",
		"log_raw_listings": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.ReconnectCount)
	assert.True(t, cfg.LogRawListings)
	// untouched fields keep their default
	assert.Equal(t, Default().ReconnectDelay, cfg.ReconnectDelay)
}

func TestFromMapRejectsBadValue(t *testing.T) {
	_, err := FromMap(Default(), map[string]string{"reconnect_count": "not-a-number"})
	assert.Error(t, err)
}

func TestLoggerWritesExpectedLineFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "engine.log")
	cfg := Default()
	cfg.LogPath = logPath
	cfg.LogSizeLimitBytes = 1 << 20

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.WithEngine("engine-1").Info("connected")
	require.NoError(t, logger.Close())

	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	line := scanner.Text()
	assert.Contains(t, line, "engine-1")
	assert.Contains(t, line, "connected")
}

func TestLoggerRotatesPastSizeLimit(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "engine.log")
	cfg := Default()
	cfg.LogPath = logPath
	cfg.LogSizeLimitBytes = 10 // tiny, forces rotation almost immediately

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		logger.WithEngine("e").Info("a moderately long log line to force rotation")
	}
	require.NoError(t, logger.Close())

	_, err = os.Stat(logPath + ".1")
	assert.NoError(t, err)
}
