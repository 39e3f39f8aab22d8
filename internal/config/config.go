package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete codedepth configuration
type Config struct {
	Version     int    `json:"version" mapstructure:"version"`
	ProjectRoot string `json:"projectRoot" mapstructure:"projectRoot"`

	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Analysis AnalysisConfig `json:"analysis" mapstructure:"analysis"`
	History  HistoryConfig  `json:"history" mapstructure:"history"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// ServerConfig describes how to launch the language server
type ServerConfig struct {
	Command string   `json:"command" mapstructure:"command"`
	Args    []string `json:"args" mapstructure:"args"`
}

// AnalysisConfig contains analysis tuning knobs
type AnalysisConfig struct {
	// IgnoreRe filters out call edges whose endpoints match (by short name)
	IgnoreRe string `json:"ignoreRe" mapstructure:"ignoreRe"`
	// IndexTimeoutMs bounds the wait for the server's background indexing
	IndexTimeoutMs int `json:"indexTimeoutMs" mapstructure:"indexTimeoutMs"`
	// RetryIntervalMs is the delay between still-indexing retries
	RetryIntervalMs int `json:"retryIntervalMs" mapstructure:"retryIntervalMs"`
}

// HistoryConfig contains run-history store configuration
type HistoryConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:     1,
		ProjectRoot: ".",
		Analysis: AnalysisConfig{
			IgnoreRe:        ".*test.*",
			IndexTimeoutMs:  5000,
			RetryIntervalMs: 100,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "error",
		},
	}
}

// LoadConfig loads configuration from <projectRoot>/.codedepth/config.json.
// A missing config file yields the defaults.
func LoadConfig(projectRoot string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("projectRoot", projectRoot)
	v.SetDefault("analysis.ignoreRe", defaults.Analysis.IgnoreRe)
	v.SetDefault("analysis.indexTimeoutMs", defaults.Analysis.IndexTimeoutMs)
	v.SetDefault("analysis.retryIntervalMs", defaults.Analysis.RetryIntervalMs)
	v.SetDefault("history.enabled", defaults.History.Enabled)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, ".codedepth"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = projectRoot
	}

	return &cfg, nil
}

// Save writes the configuration to <projectRoot>/.codedepth/config.json
func (c *Config) Save(projectRoot string) error {
	dir := filepath.Join(projectRoot, ".codedepth")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Analysis.RetryIntervalMs <= 0 {
		return &ConfigError{Field: "analysis.retryIntervalMs", Message: "must be positive"}
	}
	if c.Analysis.IndexTimeoutMs < c.Analysis.RetryIntervalMs {
		return &ConfigError{Field: "analysis.indexTimeoutMs", Message: "must be at least the retry interval"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
