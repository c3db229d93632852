package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WebSocketDefaults(t *testing.T) {
	t.Setenv("WS_READ_TIMEOUT", "")
	t.Setenv("WS_PING_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.WebSocket.ReadTimeout)
	assert.Equal(t, 54*time.Second, cfg.WebSocket.PingInterval)
	assert.Less(t, cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)
}

func TestLoad_PingIntervalDerivedFromReadTimeout(t *testing.T) {
	t.Setenv("WS_READ_TIMEOUT", "100s")
	t.Setenv("WS_PING_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100*time.Second, cfg.WebSocket.ReadTimeout)
	assert.Equal(t, 90*time.Second, cfg.WebSocket.PingInterval)
}

func TestLoad_PingIntervalNotShorterThanReadTimeout(t *testing.T) {
	t.Setenv("WS_READ_TIMEOUT", "30s")
	t.Setenv("WS_PING_INTERVAL", "30s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WS_PING_INTERVAL")
}
