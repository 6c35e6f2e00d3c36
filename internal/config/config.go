package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Bot     BotConfig
	Elfa    ElfaConfig
	OpenAI  OpenAIConfig
	Twitter TwitterConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// BotConfig holds posting loop parameters.
type BotConfig struct {
	Keyword         string
	DataDir         string
	PostingInterval time.Duration
	ErrorBackoff    time.Duration
}

// ElfaConfig holds mentions API credentials.
type ElfaConfig struct {
	APIKey  string
	BaseURL string
}

// OpenAIConfig holds text generation parameters.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// TwitterConfig holds credentials for both publishing paths.
type TwitterConfig struct {
	Username          string
	APIKey            string
	APISecretKey      string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
	Password          string
	Email             string
	SessionBaseURL    string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultKeyword         = "hyperliquid"
	defaultDataDir         = "./data"
	defaultPostingInterval = 60 * time.Minute
	defaultErrorBackoff    = 5 * time.Minute

	defaultElfaBaseURL       = "https://api.elfa.ai/v1"
	defaultSessionBaseURL    = "http://localhost:8081"
	defaultOpenAIModel       = "gpt-4"
	defaultOpenAITemperature = 0.7
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Bot: BotConfig{
			Keyword:         getEnv("KEYWORD", defaultKeyword),
			DataDir:         getEnv("DATA_DIR", defaultDataDir),
			PostingInterval: defaultPostingInterval,
			ErrorBackoff:    defaultErrorBackoff,
		},
		Elfa: ElfaConfig{
			APIKey:  os.Getenv("ELFA_API_KEY"),
			BaseURL: getEnv("ELFA_BASE_URL", defaultElfaBaseURL),
		},
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", defaultOpenAIModel),
			Temperature: defaultOpenAITemperature,
		},
		Twitter: TwitterConfig{
			Username:          os.Getenv("TWITTER_USERNAME"),
			APIKey:            os.Getenv("TWITTER_API_KEY"),
			APISecretKey:      os.Getenv("TWITTER_API_SECRET_KEY"),
			AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
			AccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
			BearerToken:       os.Getenv("TWITTER_BEARER_TOKEN"),
			Password:          os.Getenv("TWITTER_PASSWORD"),
			Email:             os.Getenv("TWITTER_EMAIL"),
			SessionBaseURL:    getEnv("TWITTER_SESSION_BASE_URL", defaultSessionBaseURL),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("POSTING_INTERVAL_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid POSTING_INTERVAL_MINUTES: %w", err)
		}
		cfg.Bot.PostingInterval = d
	}

	if v := os.Getenv("ERROR_BACKOFF_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ERROR_BACKOFF_MINUTES: %w", err)
		}
		cfg.Bot.ErrorBackoff = d
	}

	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		temp, err := strconv.ParseFloat(v, 32)
		if err != nil || temp < 0 || temp > 2 {
			return Config{}, fmt.Errorf("invalid OPENAI_TEMPERATURE: must be a number between 0 and 2")
		}
		cfg.OpenAI.Temperature = float32(temp)
	}

	if err := cfg.validateCredentials(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validateCredentials checks that every external service has its credentials
// set. Missing credentials are a startup failure, not a runtime one.
func (c Config) validateCredentials() error {
	required := map[string]string{
		"ELFA_API_KEY":                c.Elfa.APIKey,
		"OPENAI_API_KEY":              c.OpenAI.APIKey,
		"TWITTER_USERNAME":            c.Twitter.Username,
		"TWITTER_API_KEY":             c.Twitter.APIKey,
		"TWITTER_API_SECRET_KEY":      c.Twitter.APISecretKey,
		"TWITTER_ACCESS_TOKEN":        c.Twitter.AccessToken,
		"TWITTER_ACCESS_TOKEN_SECRET": c.Twitter.AccessTokenSecret,
		"TWITTER_BEARER_TOKEN":        c.Twitter.BearerToken,
		"TWITTER_PASSWORD":            c.Twitter.Password,
		"TWITTER_EMAIL":               c.Twitter.Email,
	}

	for key, value := range required {
		if value == "" {
			return fmt.Errorf("missing required environment variable %s", key)
		}
	}
	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseMinutes(raw string) (time.Duration, error) {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return time.Duration(minutes) * time.Minute, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
