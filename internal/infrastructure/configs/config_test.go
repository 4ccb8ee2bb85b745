package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, uint16(8080), cfg.HTTP.Port)
	require.Equal(t, 7*24*time.Hour, cfg.Chat.UnreadWindow)
	require.Equal(t, 25*time.Second, cfg.Chat.PingInterval)
	require.Equal(t, 30*time.Second, cfg.Chat.PollInterval)
	require.Equal(t, 64, cfg.Chat.StreamBuffer)
	require.Equal(t, 7, cfg.Chat.UnreadWindowDays())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9090
chat:
  unread_window: 48h
  ping_interval: 10s
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, uint16(9090), cfg.HTTP.Port)
	require.Equal(t, 48*time.Hour, cfg.Chat.UnreadWindow)
	require.Equal(t, 10*time.Second, cfg.Chat.PingInterval)
	require.Equal(t, 2, cfg.Chat.UnreadWindowDays())
	// untouched keys keep their defaults
	require.Equal(t, 30*time.Second, cfg.Chat.PollInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CHAT_UNREAD_WINDOW_DAYS", "3")
	t.Setenv("HTTP_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, uint16(7070), cfg.HTTP.Port)
	require.Equal(t, 3*24*time.Hour, cfg.Chat.UnreadWindow)
}
