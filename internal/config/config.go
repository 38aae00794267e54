package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the project-level configuration, read from fabrica.config.json
// in the working directory with environment overrides on top.
type Config struct {
	Version     string   `json:"version" mapstructure:"version"`
	ScenarioDir string   `json:"scenario_dir" mapstructure:"scenario_dir"`
	Database    Database `json:"database" mapstructure:"database"`
	Run         Run      `json:"run" mapstructure:"run"`
}

// Database names the target engine and the environment variable carrying its
// URL. The URL itself never lives in the config file.
type Database struct {
	Provider string `json:"provider" mapstructure:"provider"`
	URLEnv   string `json:"url_env" mapstructure:"url_env"`
}

// Run holds the default run options; flags override them per invocation.
type Run struct {
	BatchSize       int64 `json:"batch_size" mapstructure:"batch_size"`
	Optimize        bool  `json:"optimize" mapstructure:"optimize"`
	StrictTemplates bool  `json:"strict_templates" mapstructure:"strict_templates"`
}

func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set defaults
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.ScenarioDir == "" {
		cfg.ScenarioDir = "scenarios"
	}
	if cfg.Database.Provider == "" {
		cfg.Database.Provider = "postgresql"
	}
	if cfg.Database.URLEnv == "" {
		cfg.Database.URLEnv = "DATABASE_URL"
	}

	return &cfg, nil
}

func (c *Config) GetDatabaseURL() (string, error) {
	dbURL := os.Getenv(c.Database.URLEnv)
	if dbURL == "" {
		return "", fmt.Errorf("database URL not found in environment variable %s", c.Database.URLEnv)
	}
	return dbURL, nil
}

func (c *Config) Validate() error {
	supportedProviders := []string{"postgresql", "postgres", "clickhouse", "duckdb", "trino", "iceberg"}
	supported := false
	for _, provider := range supportedProviders {
		if c.Database.Provider == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported database provider: %s. Supported providers: %v", c.Database.Provider, supportedProviders)
	}

	if c.Run.BatchSize < 0 {
		return fmt.Errorf("batch_size cannot be negative")
	}

	return nil
}
