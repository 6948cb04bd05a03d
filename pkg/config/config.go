package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the daemon configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Tracking    TrackingConfig    `mapstructure:"tracking"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	Environment  string        `mapstructure:"environment"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst    int           `mapstructure:"rate_burst"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL           string `mapstructure:"url"`
	PrivateDB     bool   `mapstructure:"private_db"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

// StorageConfig selects the durable backend for the stores
type StorageConfig struct {
	Driver    string `mapstructure:"driver"` // redis or memory
	Namespace string `mapstructure:"namespace"`
}

// TrackingConfig holds the location tracking tunables
type TrackingConfig struct {
	UpdateInterval     time.Duration `mapstructure:"update_interval"`
	FastestInterval    time.Duration `mapstructure:"fastest_interval"`
	MinDistanceMeters  float64       `mapstructure:"min_distance_m"`
	DispatchThresholdM float64       `mapstructure:"dispatch_threshold_m"`
	AutoStart          bool          `mapstructure:"auto_start"`
}

// DispatchConfig holds outbound text message configuration
type DispatchConfig struct {
	MaxParallel int           `mapstructure:"max_parallel"`
	SMSDriver   string        `mapstructure:"sms_driver"` // stream or log
	SMSTopic    string        `mapstructure:"sms_topic"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// PermissionsConfig holds the initial capability grants
type PermissionsConfig struct {
	Location bool `mapstructure:"location"`
	SMS      bool `mapstructure:"sms"`
	Contacts bool `mapstructure:"contacts"`
}

// AuthConfig holds device pairing configuration
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`
	PinHash       string        `mapstructure:"pin_hash"` // bcrypt hash of the pairing PIN
	Disabled      bool          `mapstructure:"disabled"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
	Encoding    string `mapstructure:"encoding"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	setDefaults(viper.GetViper())

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/rescueme")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, continue with env vars and defaults
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.rate_limit", 10)
	v.SetDefault("server.rate_burst", 50)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.private_db", false)
	v.SetDefault("redis.consumer_group", "rescued")

	v.SetDefault("storage.driver", "redis")
	v.SetDefault("storage.namespace", "rescueme")

	// One tunable set; the original app shipped 15s/50m and 30s/100m variants.
	v.SetDefault("tracking.update_interval", "15s")
	v.SetDefault("tracking.fastest_interval", "10s")
	v.SetDefault("tracking.min_distance_m", 10)
	v.SetDefault("tracking.dispatch_threshold_m", 50)
	v.SetDefault("tracking.auto_start", true)

	v.SetDefault("dispatch.max_parallel", 4)
	v.SetDefault("dispatch.sms_driver", "log")
	v.SetDefault("dispatch.sms_topic", "rescueme.sms.outbound")
	v.SetDefault("dispatch.send_timeout", "20s")

	v.SetDefault("permissions.location", true)
	v.SetDefault("permissions.sms", true)
	v.SetDefault("permissions.contacts", true)

	v.SetDefault("auth.jwt_secret", "dev-jwt-secret-change-in-production")
	v.SetDefault("auth.jwt_expiration", "720h")
	v.SetDefault("auth.pin_hash", "")
	v.SetDefault("auth.disabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")
	v.SetDefault("log.encoding", "console")
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if cfg.Server.RateLimit <= 0 || cfg.Server.RateBurst < 1 {
		return fmt.Errorf("rate limit and burst must be positive")
	}

	if !contains([]string{"redis", "memory"}, cfg.Storage.Driver) {
		return fmt.Errorf("invalid storage driver: %s", cfg.Storage.Driver)
	}

	if cfg.Storage.Driver == "redis" && cfg.Redis.URL == "" {
		return fmt.Errorf("redis url cannot be empty when storage driver is redis")
	}

	if cfg.Tracking.UpdateInterval < time.Second {
		return fmt.Errorf("tracking update interval must be at least 1s")
	}

	if cfg.Tracking.FastestInterval <= 0 || cfg.Tracking.FastestInterval > cfg.Tracking.UpdateInterval {
		return fmt.Errorf("tracking fastest interval must be in (0, update_interval]")
	}

	if cfg.Tracking.MinDistanceMeters < 0 {
		return fmt.Errorf("tracking min distance cannot be negative")
	}

	if cfg.Tracking.DispatchThresholdM <= 0 {
		return fmt.Errorf("dispatch threshold must be positive")
	}

	if cfg.Dispatch.MaxParallel < 1 || cfg.Dispatch.MaxParallel > 32 {
		return fmt.Errorf("dispatch max parallel must be between 1 and 32")
	}

	if !contains([]string{"stream", "log"}, cfg.Dispatch.SMSDriver) {
		return fmt.Errorf("invalid sms driver: %s", cfg.Dispatch.SMSDriver)
	}

	if cfg.Dispatch.SMSDriver == "stream" && cfg.Storage.Driver != "redis" {
		return fmt.Errorf("sms driver stream requires the redis storage driver")
	}

	if !cfg.Auth.Disabled {
		if len(cfg.Auth.JWTSecret) < 8 {
			return fmt.Errorf("JWT secret must be at least 8 characters long")
		}

		if cfg.Auth.JWTExpiration < time.Minute {
			return fmt.Errorf("JWT expiration must be at least 1 minute")
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, cfg.Log.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}

	validEncodings := []string{"json", "console"}
	if !contains(validEncodings, cfg.Log.Encoding) {
		return fmt.Errorf("invalid log encoding: %s", cfg.Log.Encoding)
	}

	return nil
}

// GetServerAddr returns the server address in host:port format
func (s *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction returns true if the environment is production
func (s *ServerConfig) IsProduction() bool {
	return strings.ToLower(s.Environment) == "production"
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
