package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is loaded from the environment, optionally seeded from .env files.
type Config struct {
	Addr string `envconfig:"ADDR" default:":8080"`

	// Empty DB_DSN selects the in-memory message store.
	DatabaseDSN string `envconfig:"DB_DSN"`

	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"go-chat-app"`

	// Empty REDIS_ADDR disables the presence mirror.
	RedisAddr    string `envconfig:"REDIS_ADDR"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"user-status"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	SendQueueSize  int           `envconfig:"SEND_QUEUE_SIZE" default:"256"`
	MaxMessageSize int64         `envconfig:"MAX_MESSAGE_SIZE" default:"65536"`
	ShutdownGrace  time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`

	// Empty list accepts every Origin (dev mode).
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

// Load reads envFiles (default ".env") if present, then the process environment.
// Variables already set in the environment win over file values.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values envconfig cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET is not set")
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("config: SEND_QUEUE_SIZE must be positive, got %d", c.SendQueueSize)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("config: MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize)
	}
	return nil
}
