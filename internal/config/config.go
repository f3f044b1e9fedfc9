package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	DBPath      string
	DatabaseDSN string // when set, Postgres is used instead of sqlite
	SecretKey   string
	TokenTTL    time.Duration
	RateLimits  RateLimits
}

type RateLimits struct {
	RegisterPerMinute int
	LoginPerMinute    int
	WritePerMinute    int
}

// ErrMissingSecret: the token signing key has no safe default and must be
// injected through the environment.
var ErrMissingSecret = errors.New("INKWELL_SECRET is required")

func Load() (Config, error) {
	addr := envString("INKWELL_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}
	cfg := Config{
		Addr:        addr,
		DBPath:      envString("INKWELL_DB", "inkwell.db"),
		DatabaseDSN: envString("INKWELL_DATABASE_DSN", ""),
		SecretKey:   os.Getenv("INKWELL_SECRET"),
		TokenTTL:    envDuration("INKWELL_TOKEN_TTL", 60*time.Minute),
		RateLimits: RateLimits{
			RegisterPerMinute: envInt("INKWELL_RL_REGISTER_PER_MIN", 10),
			LoginPerMinute:    envInt("INKWELL_RL_LOGIN_PER_MIN", 30),
			WritePerMinute:    envInt("INKWELL_RL_WRITE_PER_MIN", 120),
		},
	}
	if cfg.SecretKey == "" {
		return Config{}, ErrMissingSecret
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
