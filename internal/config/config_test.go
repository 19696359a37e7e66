package config

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8791",
		ModelName:  "gemini-2.5-flash",
		APIKey:     "test-key-1234567890",
		DataDir:    "/tmp/groundchat-test",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: ErrMissingAPIKey},
		{name: "missing model", mutate: func(c *Config) { c.ModelName = "" }, wantErr: ErrInvalidModelName},
		{name: "missing listen addr", mutate: func(c *Config) { c.ListenAddr = "" }, wantErr: ErrInvalidListenAddr},
		{name: "missing data dir", mutate: func(c *Config) { c.DataDir = "" }, wantErr: ErrInvalidDataDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := Config{LogLevel: tt.in}
		if got := cfg.Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "short fully masked", in: "abc12345", want: maskedValue},
		{name: "long shows edges", in: "AIzaSyTestKey123456", want: "AI<" + maskedValue + ">56"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.in); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMarshalJSON_MasksAPIKey(t *testing.T) {
	cfg := validConfig()
	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	if strings.Contains(string(data), cfg.APIKey) {
		t.Error("serialized config leaks the API key")
	}

	// String goes through the same masking path.
	if strings.Contains(cfg.String(), cfg.APIKey) {
		t.Error("String() leaks the API key")
	}
}
