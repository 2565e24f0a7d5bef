package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Telnyx   TelnyxConfig
	Speech   SpeechConfig
	Services ServicesConfig
	Session  SessionConfig
	Server   ServerConfig
}

// TelnyxConfig holds Telnyx Call Control credentials
type TelnyxConfig struct {
	APIKey       string
	ConnectionID string
	PhoneNumber  string
}

// SpeechConfig holds Azure Speech Services credentials
type SpeechConfig struct {
	Key    string
	Region string
}

// ServicesConfig holds external service API keys and configuration
type ServicesConfig struct {
	OpenAIAPIKey  string
	PublicBaseURL string
}

// SessionConfig bounds the lifetime of staged call sessions
type SessionConfig struct {
	MaxAge        time.Duration
	SweepInterval time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	var err error
	if cfg.Telnyx.APIKey, err = requireEnv("TELNYX_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.Telnyx.ConnectionID, err = requireEnv("TELNYX_CONNECTION_ID"); err != nil {
		return nil, err
	}
	if cfg.Telnyx.PhoneNumber, err = requireEnv("TELNYX_PHONE_NUMBER"); err != nil {
		return nil, err
	}

	if cfg.Speech.Key, err = requireEnv("AZURE_SPEECH_KEY"); err != nil {
		return nil, err
	}
	if cfg.Speech.Region, err = requireEnv("AZURE_SERVICE_REGION"); err != nil {
		return nil, err
	}

	if cfg.Services.OpenAIAPIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	// The telephony provider fetches staged audio over the network, so the
	// service must know the URL it is reachable at.
	if cfg.Services.PublicBaseURL, err = requireEnv("PUBLIC_BASE_URL"); err != nil {
		return nil, err
	}

	maxAge := getEnvWithDefault("SESSION_MAX_AGE", "15m")
	cfg.Session.MaxAge, err = time.ParseDuration(maxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SESSION_MAX_AGE: %w", err)
	}

	sweepInterval := getEnvWithDefault("SESSION_SWEEP_INTERVAL", "1m")
	cfg.Session.SweepInterval, err = time.ParseDuration(sweepInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SESSION_SWEEP_INTERVAL: %w", err)
	}

	port := getEnvWithDefault("SERVER_PORT", "8080")
	cfg.Server.Port, err = strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}

	return cfg, nil
}

// requireEnv returns the value of an environment variable or an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault returns the value of an environment variable or a default
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
