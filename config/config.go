package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// HTTP server configuration
	HTTP HTTPConfig `yaml:"http"`

	// Storage backend configuration
	Storage StorageConfig `yaml:"storage"`

	// LLM client configuration
	LLM LLMConfig `yaml:"llm"`

	// Feature flags
	Features FeatureFlags `yaml:"features"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects and configures the persistence backend.
// Backend is one of "sqlite", "mongodb" or "memory".
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// LLMConfig holds LLM client configuration
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// FeatureFlags holds feature flag settings
type FeatureFlags struct {
	DebugUsageEnabled bool `yaml:"debug_usage"`
}

// Load loads configuration from environment variables. If TABLETALK_CONFIG
// names a YAML file, its values are read first and environment variables
// override them.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("TABLETALK_CONFIG"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.HTTP.Host = getEnvString("TABLETALK_HTTP_HOST", cfg.HTTP.Host)
	cfg.HTTP.Port = getEnvInt("TABLETALK_HTTP_PORT", cfg.HTTP.Port)

	cfg.Storage.Backend = getEnvString("TABLETALK_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.SQLitePath = getEnvString("TABLETALK_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.MongoURI = getEnvString("TABLETALK_MONGO_URI", cfg.Storage.MongoURI)
	cfg.Storage.MongoDatabase = getEnvString("TABLETALK_MONGO_DATABASE", cfg.Storage.MongoDatabase)

	cfg.LLM.APIKey = getEnvString("TABLETALK_LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.BaseURL = getEnvString("TABLETALK_LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnvString("TABLETALK_LLM_MODEL", cfg.LLM.Model)

	cfg.Features.DebugUsageEnabled = getEnvBool("TABLETALK_FEATURE_DEBUG_USAGE", cfg.Features.DebugUsageEnabled)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:       "sqlite",
			SQLitePath:    "./data/tabletalk.db",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "tabletalk",
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Features: FeatureFlags{
			DebugUsageEnabled: true,
		},
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// GetAddress returns the HTTP server address
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// Helper functions for environment variables
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
