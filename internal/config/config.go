// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/impasta/internal/game"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration read from the environment. Binaries
// import github.com/joho/godotenv/autoload so a local .env file is honoured.
type Config struct {
	Port           string
	LogLevel       logrus.Level
	AllowedOrigins []string

	RedisAddr      string
	RedisDB        int
	HistorianQueue string

	// DatabaseURL is empty when PG_HOST is unset; result recording is then disabled.
	DatabaseURL string

	Timings           game.Timings
	KeepaliveInterval time.Duration
}

// DefaultQueueName is the Redis list the action log is pushed onto.
const DefaultQueueName = "impasta_actions"

// Load reads the configuration. Malformed values are reported rather than
// silently replaced.
func Load() (*Config, error) {
	level, err := logrus.ParseLevel(GetEnv("LOG_LEVEL", "debug"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:           GetEnv("PORT", "8080"),
		LogLevel:       level,
		AllowedOrigins: splitList(GetEnv("ALLOWED_ORIGINS", "*")),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		HistorianQueue: GetEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),
		DatabaseURL:    DatabaseURL(),
	}
	if cfg.RedisDB, err = GetEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	def := game.DefaultTimings()
	durations := []struct {
		key string
		dst *time.Duration
		def time.Duration
	}{
		{"PROPOSING_WINDOW", &cfg.Timings.Proposing, def.Proposing},
		{"VOTING_WINDOW", &cfg.Timings.Voting, def.Voting},
		{"REDEMPTION_WINDOW", &cfg.Timings.Redemption, def.Redemption},
		{"DISCONNECT_GRACE", &cfg.Timings.DisconnectGrace, def.DisconnectGrace},
		{"CLEANUP_DELAY", &cfg.Timings.CleanupDelay, def.CleanupDelay},
		{"CLEANUP_GRACE", &cfg.Timings.CleanupGrace, def.CleanupGrace},
		{"KEEPALIVE_INTERVAL", &cfg.KeepaliveInterval, 30 * time.Second},
	}
	for _, d := range durations {
		if *d.dst, err = GetEnvDuration(d.key, d.def); err != nil {
			return nil, err
		}
		if *d.dst <= 0 {
			return nil, fmt.Errorf("%s: must be positive, got %s", d.key, *d.dst)
		}
	}
	return cfg, nil
}

// DatabaseURL builds the Postgres connection string from POSTGRES_USER,
// POSTGRES_PASSWORD, PG_HOST, PG_PORT and PG_DATABASE.
func DatabaseURL() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		GetEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// GetEnv reads an environment variable or returns def.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses an integer environment variable, or returns def when unset.
func GetEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// GetEnvDuration parses a duration such as "90s", or returns def when unset.
func GetEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
