package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Log      LogConfig      `yaml:"log"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path         string `yaml:"path"`           // SQLite database file path
	ResetOnStart bool   `yaml:"reset_on_start"` // destructive; bootstrap and tests only
}

// HTTPConfig contains REST server settings.
type HTTPConfig struct {
	Address string `yaml:"address"` // e.g. ":8080"; empty disables the REST server
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string `yaml:"address"` // e.g. ":50051"; empty disables the gRPC server
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// SecretsConfig contains secret defaults.
type SecretsConfig struct {
	DefaultExpiryDays int `yaml:"default_expiry_days"`
}

// AuthConfig contains credential hashing and login throttling settings.
type AuthConfig struct {
	BcryptCost    int           `yaml:"bcrypt_cost"`
	MaxFailures   int           `yaml:"max_failures"`
	FailureWindow time.Duration `yaml:"failure_window"`
}

// RedisConfig selects the Redis server backing the login limiter.
// An empty Addr keeps the limiter in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "secrets.db"},
		HTTP:     HTTPConfig{Address: ":8080"},
		GRPC:     GRPCConfig{Address: ":50051"},
		Log:      LogConfig{Level: "info", Format: "json"},
		Secrets:  SecretsConfig{DefaultExpiryDays: 90},
		Auth:     AuthConfig{BcryptCost: 10, MaxFailures: 5, FailureWindow: 15 * time.Minute},
	}
}

// Load builds the configuration in layers: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables. A .env file in the working
// directory is loaded into the environment first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.HTTP.Address = getEnv("HTTP_ADDRESS", c.HTTP.Address)
	c.GRPC.Address = getEnv("GRPC_ADDRESS", c.GRPC.Address)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	var err error
	if c.Database.ResetOnStart, err = getEnvBool("DB_RESET_ON_START", c.Database.ResetOnStart); err != nil {
		return err
	}
	if c.Secrets.DefaultExpiryDays, err = getEnvInt("SECRET_DEFAULT_EXPIRY_DAYS", c.Secrets.DefaultExpiryDays); err != nil {
		return err
	}
	if c.Auth.BcryptCost, err = getEnvInt("BCRYPT_COST", c.Auth.BcryptCost); err != nil {
		return err
	}
	if c.Auth.MaxFailures, err = getEnvInt("AUTH_MAX_FAILURES", c.Auth.MaxFailures); err != nil {
		return err
	}
	if c.Auth.FailureWindow, err = getEnvDuration("AUTH_FAILURE_WINDOW", c.Auth.FailureWindow); err != nil {
		return err
	}
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if c.HTTP.Address == "" && c.GRPC.Address == "" {
		return errors.New("at least one of HTTP_ADDRESS and GRPC_ADDRESS must be set")
	}
	if c.Secrets.DefaultExpiryDays <= 0 {
		return fmt.Errorf("SECRET_DEFAULT_EXPIRY_DAYS must be positive, got %d", c.Secrets.DefaultExpiryDays)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.MaxFailures <= 0 {
		return fmt.Errorf("AUTH_MAX_FAILURES must be positive, got %d", c.Auth.MaxFailures)
	}
	if c.Auth.FailureWindow <= 0 {
		return fmt.Errorf("AUTH_FAILURE_WINDOW must be positive, got %s", c.Auth.FailureWindow)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative, got %d", c.Redis.DB)
	}
	return nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		return b, nil
	}
	return defaultVal, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	redis := "memory"
	if c.Redis.Addr != "" {
		redis = fmt.Sprintf("%s/%d (password masked)", c.Redis.Addr, c.Redis.DB)
	}
	return fmt.Sprintf("Config{DB: %s, reset: %t, HTTP: %s, gRPC: %s, log: %s/%s, expiry days: %d, bcrypt cost: %d, limiter: %d per %s via %s}",
		c.Database.Path, c.Database.ResetOnStart, c.HTTP.Address, c.GRPC.Address, c.Log.Level, c.Log.Format,
		c.Secrets.DefaultExpiryDays, c.Auth.BcryptCost, c.Auth.MaxFailures, c.Auth.FailureWindow, redis)
}
