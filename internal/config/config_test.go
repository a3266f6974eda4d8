package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	req.NoError(err)
	req.Equal(":8080", cfg.Addr)
	req.Equal("go-chat-app", cfg.JWTIssuer)
	req.Equal("user-status", cfg.RedisChannel)
	req.Equal(256, cfg.SendQueueSize)
	req.EqualValues(65536, cfg.MaxMessageSize)
	req.Equal(10*time.Second, cfg.ShutdownGrace)
	req.Empty(cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ADDR", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173,https://chat.example.com")
	t.Setenv("SEND_QUEUE_SIZE", "32")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	req.NoError(err)
	req.Equal(":9090", cfg.Addr)
	req.Equal([]string{"http://localhost:5173", "https://chat.example.com"}, cfg.AllowedOrigins)
	req.Equal(32, cfg.SendQueueSize)
}

func TestLoadEnvFile(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "from-env")
	// Registered so t.Setenv restores the unset state after the test.
	t.Setenv("DB_DSN", "")
	os.Unsetenv("DB_DSN")

	path := filepath.Join(t.TempDir(), "test.env")
	req.NoError(os.WriteFile(path, []byte("JWT_SECRET=from-file\nDB_DSN=postgres://chat@localhost/chat\n"), 0o600))

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal("from-env", cfg.JWTSecret)
	req.Equal("postgres://chat@localhost/chat", cfg.DatabaseDSN)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SEND_QUEUE_SIZE", "0")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorContains(t, err, "SEND_QUEUE_SIZE")
}
