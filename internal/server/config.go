package server

import (
	"fmt"
	"os"
	"time"

	"github.com/James-Trimble/PlayPalace11/internal/protocol"
)

// ServerVersion is the deployed orchestration version, surfaced in the
// status document.
const ServerVersion = "11.0.0"

var serverVersion = protocol.Version{Major: 11}

// Config is everything the server reads from its environment.
type Config struct {
	Addr             string
	MinClientVersion protocol.Version
	DownloadURL      string
	JWTSecret        []byte
	TokenTTL         time.Duration
	DatabaseURL      string
	RedisAddr        string
	MotdFile         string
}

// FromEnv builds a Config with defaults for anything unset. The only hard
// requirement is a JWT secret outside of dev.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:             envOr("PLAYPALACE_ADDR", ":8080"),
		MinClientVersion: protocol.Version{Major: 11},
		DownloadURL:      envOr("PLAYPALACE_DOWNLOAD_URL", "https://playpalace.example.com/download"),
		JWTSecret:        []byte(envOr("PLAYPALACE_JWT_SECRET", "dev-secret-change-me")),
		TokenTTL:         24 * time.Hour,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		MotdFile:         os.Getenv("PLAYPALACE_MOTD_FILE"),
	}

	if raw := os.Getenv("PLAYPALACE_MIN_CLIENT_VERSION"); raw != "" {
		v, err := protocol.ParseVersion(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: PLAYPALACE_MIN_CLIENT_VERSION: %w", err)
		}
		cfg.MinClientVersion = v
	}
	if raw := os.Getenv("PLAYPALACE_TOKEN_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: PLAYPALACE_TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
