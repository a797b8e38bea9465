// Package config loads client settings from the environment, with .env
// support so a room setup can be shared as a file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBaseURL   = "wss://watchparty.zainmagdon.workers.dev"
	defaultRoom      = "movie-night"
	defaultName      = "anon"
	defaultHeartbeat = 25 * time.Second
	defaultSeekStep  = 10.0
	defaultHistoryDB = "watchparty.db"
)

type Config struct {
	BaseURL   string
	Room      string
	Name      string
	Heartbeat time.Duration
	SeekStep  float64 // seconds for fwd/back
	HistoryDB string
}

// Load reads .env (if present) and the environment. Missing values fall back
// to defaults; flags may override the result afterwards.
func Load() Config {
	_ = godotenv.Load() // absent .env is fine

	cfg := Config{
		BaseURL:   strings.TrimRight(envOr("WS_BASE_URL", defaultBaseURL), "/"),
		Room:      envOr("DEFAULT_ROOM", defaultRoom),
		Name:      envOr("DEFAULT_NAME", defaultName),
		Heartbeat: defaultHeartbeat,
		SeekStep:  defaultSeekStep,
		HistoryDB: envOr("HISTORY_DB", defaultHistoryDB),
	}

	if v, err := strconv.Atoi(os.Getenv("HEARTBEAT_SECONDS")); err == nil && v > 0 {
		cfg.Heartbeat = time.Duration(v) * time.Second
	}
	if v, err := strconv.ParseFloat(os.Getenv("SEEK_STEP_SECONDS"), 64); err == nil && v > 0 {
		cfg.SeekStep = v
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
