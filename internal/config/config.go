// Package config resolves runtime settings from defaults, an optional YAML file and the
// environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultCatalogPath     = "db.json"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultTTLSeconds      = 10
	defaultStepSeconds     = 2
	defaultUploadLogLimit  = 200
	defaultWatchDebounceMS = 500
)

var (
	ErrMissingToken = errors.New("BOT_TOKEN is required")
	ErrInvalid      = errors.New("invalid configuration")
)

type Config struct {
	BotToken       string
	AdminID        int64
	ChannelID      int64
	CatalogPath    string
	MongoURI       string
	Port           string
	LogLevel       string
	TTL            time.Duration
	CountdownStep  time.Duration
	UploadLogLimit int
	AutoRegister   bool
	WatchDebounce  time.Duration
}

type fileConfig struct {
	BotToken        string `yaml:"bot_token"`
	AdminID         *int64 `yaml:"admin_id"`
	ChannelID       *int64 `yaml:"channel_id"`
	CatalogPath     string `yaml:"catalog_path"`
	MongoURI        string `yaml:"mongodb_uri"`
	Port            string `yaml:"port"`
	LogLevel        string `yaml:"log_level"`
	TTLSeconds      *int   `yaml:"ttl_seconds"`
	StepSeconds     *int   `yaml:"countdown_step_seconds"`
	UploadLogLimit  *int   `yaml:"upload_log_limit"`
	AutoRegister    *bool  `yaml:"auto_register"`
	WatchDebounceMS *int   `yaml:"watch_debounce_ms"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		CatalogPath:    defaultCatalogPath,
		Port:           defaultPort,
		LogLevel:       defaultLogLevel,
		TTL:            defaultTTLSeconds * time.Second,
		CountdownStep:  defaultStepSeconds * time.Second,
		UploadLogLimit: defaultUploadLogLimit,
		AutoRegister:   true,
		WatchDebounce:  defaultWatchDebounceMS * time.Millisecond,
	}
}

// Load applies defaults, then the YAML file named by CATALOG_BOT_CONFIG (when set), then
// environment overrides. The bot token is not required here; see RequireToken.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CATALOG_BOT_CONFIG")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RequireToken reports ErrMissingToken when no bot token is configured.
func (c Config) RequireToken() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return ErrMissingToken
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config %s: %w", resolved, err)
	}

	if value := strings.TrimSpace(fc.BotToken); value != "" {
		c.BotToken = value
	}
	if fc.AdminID != nil {
		c.AdminID = *fc.AdminID
	}
	if fc.ChannelID != nil {
		c.ChannelID = *fc.ChannelID
	}
	if value := strings.TrimSpace(fc.CatalogPath); value != "" {
		c.CatalogPath = value
	}
	if value := strings.TrimSpace(fc.MongoURI); value != "" {
		c.MongoURI = value
	}
	if value := strings.TrimSpace(fc.Port); value != "" {
		c.Port = value
	}
	if value := strings.TrimSpace(fc.LogLevel); value != "" {
		c.LogLevel = value
	}
	if fc.TTLSeconds != nil {
		c.TTL = time.Duration(*fc.TTLSeconds) * time.Second
	}
	if fc.StepSeconds != nil {
		c.CountdownStep = time.Duration(*fc.StepSeconds) * time.Second
	}
	if fc.UploadLogLimit != nil {
		c.UploadLogLimit = *fc.UploadLogLimit
	}
	if fc.AutoRegister != nil {
		c.AutoRegister = *fc.AutoRegister
	}
	if fc.WatchDebounceMS != nil {
		c.WatchDebounce = time.Duration(*fc.WatchDebounceMS) * time.Millisecond
	}
	return nil
}

func (c *Config) applyEnv() error {
	if value := env("BOT_TOKEN"); value != "" {
		c.BotToken = value
	}
	if value := env("CATALOG_PATH"); value != "" {
		c.CatalogPath = value
	}
	if value := env("MONGODB_URI"); value != "" {
		c.MongoURI = value
	}
	if value := env("PORT"); value != "" {
		c.Port = strings.TrimPrefix(value, ":")
	}
	if value := env("LOG_LEVEL"); value != "" {
		c.LogLevel = strings.ToLower(value)
	}

	ints := []struct {
		key string
		set func(int64)
	}{
		{"ADMIN_ID", func(n int64) { c.AdminID = n }},
		{"CHANNEL_ID", func(n int64) { c.ChannelID = n }},
		{"TTL_SECONDS", func(n int64) { c.TTL = time.Duration(n) * time.Second }},
		{"COUNTDOWN_STEP_SECONDS", func(n int64) { c.CountdownStep = time.Duration(n) * time.Second }},
		{"UPLOAD_LOG_LIMIT", func(n int64) { c.UploadLogLimit = int(n) }},
		{"WATCH_DEBOUNCE_MS", func(n int64) { c.WatchDebounce = time.Duration(n) * time.Millisecond }},
	}
	for _, it := range ints {
		value := env(it.key)
		if value == "" {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, it.key, value)
		}
		it.set(n)
	}

	if value := env("AUTO_REGISTER"); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: AUTO_REGISTER=%q", ErrInvalid, value)
		}
		c.AutoRegister = b
	}
	return nil
}

func (c Config) validate() error {
	if c.TTL < time.Second {
		return fmt.Errorf("%w: ttl must be at least 1 second", ErrInvalid)
	}
	if c.CountdownStep < time.Second {
		return fmt.Errorf("%w: countdown step must be at least 1 second", ErrInvalid)
	}
	if c.UploadLogLimit < 0 {
		return fmt.Errorf("%w: upload log limit must not be negative", ErrInvalid)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("%w: watch debounce must not be negative", ErrInvalid)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Abs(path)
}
