package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PrefixEnvVar overrides the configured prefixes with a comma separated list.
const PrefixEnvVar = "SPARROW_PREFIX"

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Demo        DemoConfig        `yaml:"demo"`
	Retry       RetryConfig       `yaml:"retry"`
	Logging     LogConfig         `yaml:"logging"`
}

// ServerConfig contains settings for the listener
type ServerConfig struct {
	Prefixes []string `yaml:"prefixes"`
	Timeout  int      `yaml:"timeout"` // per-connection read/write timeout in seconds
}

// ConcurrencyConfig contains settings for concurrency control
type ConcurrencyConfig struct {
	MaxTasks int `yaml:"max_tasks"`
}

// DemoConfig contains the payload served by the demo application
type DemoConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// RetryConfig contains settings for retry behavior
type RetryConfig struct {
	Enabled         bool     `yaml:"enabled"`
	MaxRetries      int      `yaml:"max_retries"`
	InitialDelay    int      `yaml:"initial_delay"` // in milliseconds
	MaxDelay        int      `yaml:"max_delay"`     // in milliseconds
	BackoffFactor   float64  `yaml:"backoff_factor"`
	JitterFactor    float64  `yaml:"jitter_factor"`
	RetryableErrors []string `yaml:"retryable_errors"`
}

// LogConfig contains settings for logging
type LogConfig struct {
	LogToFile       bool   `yaml:"log_to_file"`
	LogFilePath     string `yaml:"log_file_path"`
	MaxSize         int    `yaml:"max_size"`          // maximum size in megabytes
	MaxBackups      int    `yaml:"max_backups"`       // maximum number of old log files to retain
	MaxAge          int    `yaml:"max_age"`           // maximum number of days to retain old log files
	Compress        bool   `yaml:"compress"`          // compress rotated log files
	ExchangeLogPath string `yaml:"exchange_log_path"` // where --log-exchange writes request/response records
}

// LoadDefault returns a configuration with default values
func LoadDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Prefixes: []string{"http://localhost:11231/"},
			Timeout:  5,
		},
		Concurrency: ConcurrencyConfig{
			MaxTasks: 8,
		},
		Demo: DemoConfig{
			Name:        "thisisnabi",
			Version:     "1.0.0",
			Description: "Sample response",
		},
		Retry: RetryConfig{
			Enabled:       true,
			MaxRetries:    3,
			InitialDelay:  250,
			MaxDelay:      2000,
			BackoffFactor: 2.0,
			JitterFactor:  0.1,
			RetryableErrors: []string{
				"address already in use",
				"resource temporarily unavailable",
			},
		},
		Logging: LogConfig{
			LogToFile:       false,
			LogFilePath:     "sparrow.log",
			MaxSize:         10,
			MaxBackups:      3,
			MaxAge:          28,
			Compress:        true,
			ExchangeLogPath: "exchange.log",
		},
	}
}

// Load reads configuration from a file over the default values. Keys missing
// from the file keep their defaults.
func Load(configPath string) (*Config, error) {
	cfg := LoadDefault()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.fillZeroes()
	ApplyEnv(cfg)
	return cfg, nil
}

// fillZeroes restores defaults for values that must be positive
func (c *Config) fillZeroes() {
	def := LoadDefault()
	if len(c.Server.Prefixes) == 0 {
		c.Server.Prefixes = def.Server.Prefixes
	}
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = def.Server.Timeout
	}
	if c.Concurrency.MaxTasks <= 0 {
		c.Concurrency.MaxTasks = def.Concurrency.MaxTasks
	}
	if c.Logging.LogFilePath == "" {
		c.Logging.LogFilePath = def.Logging.LogFilePath
	}
	if c.Logging.ExchangeLogPath == "" {
		c.Logging.ExchangeLogPath = def.Logging.ExchangeLogPath
	}
}

// LoadOrDefault attempts to load configuration from a file
// If the file doesn't exist or can't be parsed, it returns default configuration
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config from %s: %v\n", configPath, err)
		fmt.Fprintf(os.Stderr, "Using default configuration\n")
		cfg = LoadDefault()
		ApplyEnv(cfg)
	}
	return cfg
}

// ApplyEnv lets SPARROW_PREFIX replace the configured prefixes
func ApplyEnv(cfg *Config) {
	raw := os.Getenv(PrefixEnvVar)
	if raw == "" {
		return
	}
	var prefixes []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) > 0 {
		cfg.Server.Prefixes = prefixes
	}
}
