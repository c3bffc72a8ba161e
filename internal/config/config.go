package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything basket reads at startup.
type Config struct {
	APIBase           string        `validate:"required,url"`
	Token             string        `validate:"-"`
	TokenFile         string        `validate:"-"`
	LogLevel          string        `validate:"oneof=debug info warn error"`
	LogFile           string        `validate:"-"`
	RequestTimeout    time.Duration `validate:"gt=0"`
	PollInterval      time.Duration `validate:"gt=0"`
	NotificationLimit int           `validate:"min=1,max=100"`
	RequestsPerSecond float64       `validate:"gte=0"`
	MetricsAddr       string        `validate:"omitempty,hostname_port"`
	// Phone is sent with checkout; the server asks for one when missing.
	Phone string `validate:"-"`
}

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "BASKET_"

const (
	defaultConfigPath        = "~/.config/basket/config.toml"
	defaultAPIBase           = "http://127.0.0.1:5000"
	defaultTokenFile         = "~/.config/basket/token"
	defaultLogLevel          = "info"
	defaultLogFile           = "~/.local/share/basket/basket.log"
	defaultRequestTimeout    = "10s"
	defaultPollInterval      = "30s"
	defaultNotificationLimit = 50
	defaultRequestsPerSecond = 10
	dotenvFile               = ".env"
)

// raw mirrors the TOML file; env tags name the overrides (after EnvPrefix).
type raw struct {
	APIBase           string   `toml:"api_base" env:"API_BASE"`
	Token             string   `toml:"token" env:"TOKEN"`
	TokenFile         string   `toml:"token_file" env:"TOKEN_FILE"`
	LogLevel          string   `toml:"log_level" env:"LOG_LEVEL"`
	LogFile           string   `toml:"log_file" env:"LOG_FILE"`
	RequestTimeout    string   `toml:"request_timeout" env:"REQUEST_TIMEOUT"`
	PollInterval      string   `toml:"poll_interval" env:"POLL_INTERVAL"`
	NotificationLimit *int     `toml:"notification_limit" env:"NOTIFICATION_LIMIT"`
	RequestsPerSecond *float64 `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	MetricsAddr       string   `toml:"metrics_addr" env:"METRICS_ADDR"`
	Phone             string   `toml:"phone" env:"PHONE"`
}

var validate = validator.New()

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Load reads the config file at path (the default location when empty), then
// applies .env and BASKET_* environment overrides and validates the result. A
// missing file is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var r raw
	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &r); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenvFile, err)
	}
	if err := env.ParseWithOptions(&r, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg, err := r.resolve()
	if err != nil {
		return Config{}, err
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (r raw) resolve() (Config, error) {
	cfg := Config{
		APIBase:           orDefault(r.APIBase, defaultAPIBase),
		Token:             strings.TrimSpace(r.Token),
		TokenFile:         mustExpand(orDefault(r.TokenFile, defaultTokenFile)),
		LogLevel:          strings.ToLower(orDefault(r.LogLevel, defaultLogLevel)),
		LogFile:           mustExpand(orDefault(r.LogFile, defaultLogFile)),
		NotificationLimit: defaultNotificationLimit,
		RequestsPerSecond: defaultRequestsPerSecond,
		MetricsAddr:       strings.TrimSpace(r.MetricsAddr),
		Phone:             strings.TrimSpace(r.Phone),
	}
	if r.NotificationLimit != nil {
		cfg.NotificationLimit = *r.NotificationLimit
	}
	if r.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *r.RequestsPerSecond
	}

	var err error
	if cfg.RequestTimeout, err = parseDuration("request_timeout", r.RequestTimeout, defaultRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = parseDuration("poll_interval", r.PollInterval, defaultPollInterval); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDuration(key, value, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(orDefault(value, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", key, err)
	}
	return d, nil
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading tilde and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
