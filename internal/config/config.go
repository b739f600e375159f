// /internal/config/config.go
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config carries everything the bot and the dashboard need at construction
// time. The rate-limit and authentication tunables are the only knobs the
// command pipeline itself requires.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	LogPath      string `env:"LOG_PATH"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	DashboardAddr string `env:"DASHBOARD_ADDR" envDefault:":8788"`

	// EncryptionKey seals credentials at rest, 64 hex chars (32 bytes).
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	// GCRA admission control: minimum spacing between admitted commands
	// per user, and how many may burst above that spacing.
	RateLeakInterval time.Duration `env:"RATE_LEAK_INTERVAL" envDefault:"10s"`
	RateBurst        int           `env:"RATE_BURST" envDefault:"3"`

	// AuthDeadline bounds how long a suspended command waits for the user
	// to submit credentials before it is reported as timed out.
	AuthDeadline time.Duration `env:"AUTH_DEADLINE" envDefault:"5m"`
}

// New parses configuration from the environment.
func New() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is not set")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not set")
	}
	if cfg.RateBurst < 1 {
		return nil, fmt.Errorf("RATE_BURST must be at least 1")
	}
	return &cfg, nil
}
