package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DevMaxProgress and ProdMaxProgress are the coin button thresholds per environment
	DevMaxProgress  = 20
	ProdMaxProgress = 500

	appName = "coinclicker"
)

// Config holds all configuration options for the coin client
type Config struct {
	// Remote backend
	API APIConfig `yaml:"api" json:"api"`

	// Coin button behaviour
	Coin CoinConfig `yaml:"coin" json:"coin"`

	// Local persistence
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Retry policy for backend calls
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Client-side request limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Batching of earned coins
	Earnings EarningsConfig `yaml:"earnings" json:"earnings"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds backend connection settings
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// CoinConfig holds the coin button settings
type CoinConfig struct {
	Environment  string        `yaml:"environment" json:"environment"`
	MaxProgress  int           `yaml:"max_progress" json:"max_progress"` // 0 derives from Environment
	Cooldown     time.Duration `yaml:"cooldown" json:"cooldown"`
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
}

// StorageConfig selects where local state and secrets live
type StorageConfig struct {
	Backend       string `yaml:"backend" json:"backend"`               // file, sqlite, memory
	Path          string `yaml:"path" json:"path"`                     // empty uses the user data dir
	SecretBackend string `yaml:"secret_backend" json:"secret_backend"` // auto, keyring, encrypted
}

// RetryConfig holds retry configuration for backend requests
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// RateLimitConfig holds client-side rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// EarningsConfig controls how clicks are reported to the backend
type EarningsConfig struct {
	BatchSize     int           `yaml:"batch_size" json:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled       bool `yaml:"enabled" json:"enabled"`
	OnCooldownEnd bool `yaml:"on_cooldown_end" json:"on_cooldown_end"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:5000",
			Timeout:   10 * time.Second,
			UserAgent: "coinclicker/1.0",
		},
		Coin: CoinConfig{
			Environment:  EnvProduction,
			Cooldown:     60 * time.Second,
			TickInterval: 100 * time.Millisecond,
		},
		Storage: StorageConfig{
			Backend:       "file",
			SecretBackend: "auto",
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
			Multiplier:  2.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
		Earnings: EarningsConfig{
			BatchSize:     10,
			FlushInterval: 5 * time.Second,
		},
		Notifications: NotificationConfig{
			Enabled:       true,
			OnCooldownEnd: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// EffectiveMaxProgress returns the configured threshold, falling back to the environment default
func (c CoinConfig) EffectiveMaxProgress() int {
	if c.MaxProgress > 0 {
		return c.MaxProgress
	}
	if strings.EqualFold(c.Environment, EnvDevelopment) {
		return DevMaxProgress
	}
	return ProdMaxProgress
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if env := os.Getenv("COINCLICKER_ENV"); env != "" {
		c.Coin.Environment = strings.ToLower(env)
	}
	if baseURL := os.Getenv("COINCLICKER_API_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}

	if maxProgress := os.Getenv("COINCLICKER_MAX_PROGRESS"); maxProgress != "" {
		var val int
		fmt.Sscanf(maxProgress, "%d", &val)
		if val > 0 {
			c.Coin.MaxProgress = val
		}
	}

	if cooldown := os.Getenv("COINCLICKER_COOLDOWN"); cooldown != "" {
		d, err := time.ParseDuration(cooldown)
		if err != nil {
			return fmt.Errorf("invalid COINCLICKER_COOLDOWN: %w", err)
		}
		c.Coin.Cooldown = d
	}

	if backend := os.Getenv("COINCLICKER_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = strings.ToLower(backend)
	}
	if path := os.Getenv("COINCLICKER_DATA_PATH"); path != "" {
		c.Storage.Path = path
	}

	if rpm := os.Getenv("COINCLICKER_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if notifEnabled := os.Getenv("COINCLICKER_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	if logLevel := os.Getenv("COINCLICKER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".coinclicker.yaml",
		".coinclicker.yml",
		filepath.Join(home, ".config", appName, "config.yaml"),
		filepath.Join(home, ".config", appName, "config.yml"),
		filepath.Join(home, ".coinclicker.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api base url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}

	validEnvs := map[string]bool{EnvDevelopment: true, EnvProduction: true}
	if !validEnvs[strings.ToLower(c.Coin.Environment)] {
		errs = append(errs, fmt.Errorf("invalid environment %q", c.Coin.Environment))
	}
	if c.Coin.MaxProgress < 0 {
		errs = append(errs, errors.New("max progress cannot be negative"))
	}
	if c.Coin.Cooldown <= 0 {
		errs = append(errs, errors.New("cooldown must be positive"))
	}
	if c.Coin.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}
	if c.Coin.TickInterval > c.Coin.Cooldown {
		errs = append(errs, errors.New("tick interval cannot exceed cooldown"))
	}

	validBackends := map[string]bool{"file": true, "sqlite": true, "memory": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, fmt.Errorf("invalid storage backend %q", c.Storage.Backend))
	}
	validSecrets := map[string]bool{"auto": true, "keyring": true, "encrypted": true}
	if !validSecrets[strings.ToLower(c.Storage.SecretBackend)] {
		errs = append(errs, fmt.Errorf("invalid secret backend %q", c.Storage.SecretBackend))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.Retry.Enabled && c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Earnings.BatchSize <= 0 {
		errs = append(errs, errors.New("earnings batch size must be positive"))
	}
	if c.Earnings.FlushInterval <= 0 {
		errs = append(errs, errors.New("earnings flush interval must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if baseURL, ok := flags["api-url"].(string); ok && baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if env, ok := flags["env"].(string); ok && env != "" {
		c.Coin.Environment = strings.ToLower(env)
	}
	if backend, ok := flags["storage"].(string); ok && backend != "" {
		c.Storage.Backend = strings.ToLower(backend)
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if notifications, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = notifications
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".coinclicker.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// DataDir returns the per-user data directory, creating it if needed
func DataDir() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", appName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, appName)
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, appName)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", appName)
		}
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
