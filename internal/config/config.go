// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.groundchat/config.yaml, or ./config.yaml)
//  3. Default values
//
// Security: the Gemini API key is read from the environment only and is
// masked in MarshalJSON/String. The config directory uses 0750 permissions.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidListenAddr indicates the listen address is empty.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidDataDir indicates the data directory path is empty.
	ErrInvalidDataDir = errors.New("invalid data directory")
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Server configuration
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // Per-IP token bucket burst (0 = default)

	// Model configuration
	ModelName string `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash"
	APIKey    string `mapstructure:"-" json:"api_key"`             // GEMINI_API_KEY, env only; SENSITIVE: masked in MarshalJSON

	// Storage configuration
	DataDir string `mapstructure:"data_dir" json:"data_dir"` // Holds chat.db and the instance lock

	// Geolocation (best-effort, enriches maps grounding requests)
	GeoEnabled  bool   `mapstructure:"geo_enabled" json:"geo_enabled"`
	GeoEndpoint string `mapstructure:"geo_endpoint" json:"geo_endpoint"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"` // "debug", "info", "warn", "error"
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".groundchat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg.APIKey = os.Getenv("GEMINI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("listen_addr", "127.0.0.1:8791")
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 0)

	v.SetDefault("model_name", "gemini-2.5-flash")

	v.SetDefault("data_dir", filepath.Join(configDir, "data"))

	v.SetDefault("geo_enabled", true)
	v.SetDefault("geo_endpoint", "http://ip-api.com/json")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly in Load, not via viper.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "GROUNDCHAT_LISTEN_ADDR")
	mustBind("cors_origins", "GROUNDCHAT_CORS_ORIGINS")
	mustBind("trust_proxy", "GROUNDCHAT_TRUST_PROXY")
	mustBind("rate_burst", "GROUNDCHAT_RATE_BURST")
	mustBind("model_name", "GROUNDCHAT_MODEL_NAME")
	mustBind("data_dir", "GROUNDCHAT_DATA_DIR")
	mustBind("geo_enabled", "GROUNDCHAT_GEO_ENABLED")
	mustBind("geo_endpoint", "GROUNDCHAT_GEO_ENDPOINT")
	mustBind("log_level", "GROUNDCHAT_LOG_LEVEL")
	mustBind("log_json", "GROUNDCHAT_LOG_JSON")
}

// Validate fails fast on unusable configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	if c.ModelName == "" {
		return ErrInvalidModelName
	}
	if c.ListenAddr == "" {
		return ErrInvalidListenAddr
	}
	if c.DataDir == "" {
		return ErrInvalidDataDir
	}
	return nil
}

// Level parses LogLevel into a slog.Level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 chars or less are
// fully masked; longer ones show the first and last two characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
