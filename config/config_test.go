package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, c.HttpPort)
	assert.Equal(t, 1, c.MaxRooms)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	assert.Equal(t, 10, c.ConnectRateLimit)
	assert.Equal(t, time.Minute, c.RateWindow)
	assert.Equal(t, 60*time.Second, c.ResolverTimeout)
	assert.Equal(t, "yt-dlp", c.ResolverPrimary)
	assert.Equal(t, []string{"trycloudflare.com", "ngrok-free.app", "ngrok.io", "loca.lt"}, c.TunnelDomains)
	assert.False(t, c.AllowRemoteFiles)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("MAX_ROOMS", "4")
	t.Setenv("RESOLVER_TIMEOUT", "5s")
	t.Setenv("TUNNEL_DOMAINS", "example.dev")
	t.Setenv("ALLOW_REMOTE_FILES", "true")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, c.HttpPort)
	assert.Equal(t, 4, c.MaxRooms)
	assert.Equal(t, 5*time.Second, c.ResolverTimeout)
	assert.Equal(t, []string{"example.dev"}, c.TunnelDomains)
	assert.True(t, c.AllowRemoteFiles)
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)
}
