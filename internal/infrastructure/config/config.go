// Package config loads stepflow settings from the environment and an
// optional .env file
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/stepflow/stepflow/internal/infrastructure/logging"
	"github.com/stepflow/stepflow/pkg/serialization"
	"github.com/stepflow/stepflow/pkg/validation"
)

// Config holds all configuration for a stepflow runtime
type Config struct {
	Environment   string
	LogLevel      string
	Addr          string
	PluginCatalog string
	Store         StoreConfig
	Session       SessionConfig
}

type StoreConfig struct {
	LocalDB       string
	RemoteDSN     string
	Compression   string
	EncryptionKey string
	StateItem     string
}

type SessionConfig struct {
	RedisURL string
	TTL      time.Duration
}

// Load reads .env when present, then the environment, and validates the result
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvWithDefault("STEPFLOW_ENV", "development"),
		LogLevel:      getEnvWithDefault("LOG_LEVEL", "info"),
		Addr:          getEnvWithDefault("STEPFLOW_ADDR", ":8080"),
		PluginCatalog: getEnvWithDefault("STEPFLOW_PLUGIN_CATALOG", ""),
		Store: StoreConfig{
			LocalDB:       getEnvWithDefault("STEPFLOW_LOCAL_DB", "stepflow.db"),
			RemoteDSN:     getEnvWithDefault("STEPFLOW_REMOTE_DSN", ""),
			Compression:   getEnvWithDefault("STEPFLOW_COMPRESSION", "zstd"),
			EncryptionKey: getEnvWithDefault("STEPFLOW_ENCRYPTION_KEY", ""),
			StateItem:     getEnvWithDefault("STEPFLOW_STATE_ITEM", "app-state"),
		},
		Session: SessionConfig{
			RedisURL: getEnvWithDefault("REDIS_URL", ""),
			TTL:      getEnvAsDuration("STEPFLOW_SESSION_TTL", 40*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("STEPFLOW_ENV must be development, production or test, got %q", c.Environment)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Store.LocalDB == "" {
		return fmt.Errorf("STEPFLOW_LOCAL_DB is required")
	}
	if _, err := serialization.ParseCompression(c.Store.Compression); err != nil {
		return fmt.Errorf("STEPFLOW_COMPRESSION: %w", err)
	}
	if _, err := c.EncryptionKey(); err != nil {
		return err
	}
	if err := validation.Validate.Var(c.Store.StateItem, "required,step_type"); err != nil {
		return fmt.Errorf("STEPFLOW_STATE_ITEM must be a lowercase type name, got %q", c.Store.StateItem)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("STEPFLOW_SESSION_TTL must be positive")
	}
	return nil
}

// EncryptionKey decodes STEPFLOW_ENCRYPTION_KEY. It accepts 64 hex digits or
// 32 raw bytes; an empty value disables encryption.
func (c *Config) EncryptionKey() ([]byte, error) {
	k := c.Store.EncryptionKey
	switch len(k) {
	case 0:
		return nil, nil
	case 64:
		key, err := hex.DecodeString(k)
		if err != nil {
			return nil, fmt.Errorf("STEPFLOW_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		return key, nil
	case 32:
		return []byte(k), nil
	default:
		return nil, fmt.Errorf("STEPFLOW_ENCRYPTION_KEY must be 32 bytes or 64 hex digits, got %d characters", len(k))
	}
}

// Serializer builds the blob serializer the stores use
func (c *Config) Serializer() (*serialization.Serializer, error) {
	compression, err := serialization.ParseCompression(c.Store.Compression)
	if err != nil {
		return nil, err
	}
	key, err := c.EncryptionKey()
	if err != nil {
		return nil, err
	}
	return serialization.NewSerializer(serialization.SerializationConfig{
		Codec:       serialization.NewMsgPackCodec(),
		Compression: compression,
		EncryptKey:  key,
	})
}

// RemoteEnabled reports whether a remote document store is configured
func (c *Config) RemoteEnabled() bool {
	return c.Store.RemoteDSN != ""
}

// SessionCacheEnabled reports whether sessions are cached in redis
func (c *Config) SessionCacheEnabled() bool {
	return c.Session.RedisURL != ""
}

// Helper functions for environment variable parsing

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
