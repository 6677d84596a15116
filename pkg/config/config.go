package config

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds process configuration.
type Config struct {
	LogLevel     string
	LogFormat    string
	ProfileDir   string
	OTLPEndpoint string
	OTelInsecure bool
	Environment  string
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("COVENANT_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	logFormat := strings.ToLower(os.Getenv("COVENANT_LOG_FORMAT"))
	if logFormat != "json" {
		logFormat = "text"
	}

	profileDir := os.Getenv("COVENANT_PROFILE_DIR")
	if profileDir == "" {
		profileDir = "./profiles"
	}

	env := os.Getenv("COVENANT_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &Config{
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		ProfileDir:   profileDir,
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelInsecure: os.Getenv("COVENANT_OTEL_INSECURE") == "true",
		Environment:  env,
	}
}

// TelemetryEnabled reports whether an OTLP endpoint is configured.
func (c *Config) TelemetryEnabled() bool {
	return c.OTLPEndpoint != ""
}

// SlogLevel maps LogLevel onto a slog level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
