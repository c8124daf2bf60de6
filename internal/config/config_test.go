package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_URL", "wss://chat.example.com/ws")
	t.Setenv("CHAT_USERNAME", "alice")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://chat.example.com", cfg.APIURL)
	assert.Equal(t, 3001, cfg.BridgePort)
	assert.Equal(t, 2*time.Second, cfg.DedupWindow)
	assert.Equal(t, time.Duration(0), cfg.SendTimeout)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.AutoScroll)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_URL", "ws://localhost:3000/ws")
	t.Setenv("API_URL", "http://api.local")
	t.Setenv("ACCESS_TOKEN", "tok")
	t.Setenv("SEND_TIMEOUT", "30s")
	t.Setenv("AUTO_SCROLL", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://api.local", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.SendTimeout)
	assert.False(t, cfg.AutoScroll)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := Config{
		ServerURL:   "ws://localhost/ws",
		APIURL:      "http://localhost",
		Username:    "alice",
		BridgePort:  3001,
		DedupWindow: time.Second,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no server", func(c *Config) { c.ServerURL = "" }},
		{"http server", func(c *Config) { c.ServerURL = "http://localhost" }},
		{"no identity", func(c *Config) { c.Username = "" }},
		{"bad port", func(c *Config) { c.BridgePort = 70000 }},
		{"no dedup window", func(c *Config) { c.DedupWindow = 0 }},
		{"negative send timeout", func(c *Config) { c.SendTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
