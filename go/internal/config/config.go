package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of one client session.
type Config struct {
	APIURL    string `yaml:"api_url"`
	WSURL     string `yaml:"ws_url"`
	RoomID    string `yaml:"room_id"`
	UserID    string `yaml:"user_id"`
	AuthToken string `yaml:"auth_token"`

	LogLevel   string `yaml:"log_level"`
	StatusPort int    `yaml:"status_port"`

	NATSURL           string `yaml:"nats_url"`
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`

	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
}

// Default returns the settings used when neither a file nor the
// environment provides a value.
func Default() Config {
	return Config{
		APIURL:            "http://localhost:5000/api",
		WSURL:             "ws://localhost:5000/game",
		LogLevel:          "info",
		StatusPort:        0,
		NATSSubjectPrefix: "duel.client",
		FetchTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		PingInterval:      30 * time.Second,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// DUEL_CONFIG (if any), then DUEL_* environment variables. When no user id
// is configured it is taken from the auth token claims.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("DUEL_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()

	if cfg.UserID == "" && cfg.AuthToken != "" {
		userID, err := UserIDFromToken(cfg.AuthToken)
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve user id: %w", err)
		}
		cfg.UserID = userID
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIURL = getEnv("DUEL_API_URL", c.APIURL)
	c.WSURL = getEnv("DUEL_WS_URL", c.WSURL)
	c.RoomID = getEnv("DUEL_ROOM_ID", c.RoomID)
	c.UserID = getEnv("DUEL_USER_ID", c.UserID)
	c.AuthToken = getEnv("DUEL_AUTH_TOKEN", c.AuthToken)
	c.LogLevel = getEnv("DUEL_LOG_LEVEL", c.LogLevel)
	c.StatusPort = getEnvAsInt("DUEL_STATUS_PORT", c.StatusPort)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSSubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATSSubjectPrefix)
	c.FetchTimeout = getEnvAsDuration("DUEL_FETCH_TIMEOUT", c.FetchTimeout)
	c.HandshakeTimeout = getEnvAsDuration("DUEL_HANDSHAKE_TIMEOUT", c.HandshakeTimeout)
	c.PingInterval = getEnvAsDuration("DUEL_PING_INTERVAL", c.PingInterval)
}

// Validate reports the first missing required setting
func (c Config) Validate() error {
	switch {
	case c.RoomID == "":
		return errors.New("DUEL_ROOM_ID is required")
	case c.UserID == "":
		return errors.New("DUEL_USER_ID or DUEL_AUTH_TOKEN is required")
	case c.APIURL == "":
		return errors.New("DUEL_API_URL is required")
	case c.WSURL == "":
		return errors.New("DUEL_WS_URL is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
