package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Sources SourcesConfig `mapstructure:"sources"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CacheConfig holds the freshness cache settings
type CacheConfig struct {
	Type         string        `mapstructure:"type"` // "file", "memory" or "redis"
	Dir          string        `mapstructure:"dir"`
	RedisURL     string        `mapstructure:"redis_url"`
	BaseDuration time.Duration `mapstructure:"base_duration"`
	Variance     time.Duration `mapstructure:"variance"`
	Retention    time.Duration `mapstructure:"retention"` // redis key expiry, 0 keeps entries forever
}

// FetchConfig holds the page fetch settings
type FetchConfig struct {
	Driver         string        `mapstructure:"driver"` // "browser" or "http"
	Headless       bool          `mapstructure:"headless"`
	NoSandbox      bool          `mapstructure:"no_sandbox"`
	NetworkIdle    bool          `mapstructure:"network_idle"`
	BlockResources bool          `mapstructure:"block_resources"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
	UserAgent      string        `mapstructure:"user_agent"`
	BinPath        string        `mapstructure:"bin_path"`
}

// SourcesConfig selects the stores that are queried
type SourcesConfig struct {
	Enabled []string `mapstructure:"enabled"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // empty picks the environment default
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shelfprice/")

	// SHELFPRICE_CACHE_TYPE maps to cache.type
	v.SetEnvPrefix("SHELFPRICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Cache defaults: 12h +/- 4h
	v.SetDefault("cache.type", "file")
	v.SetDefault("cache.dir", "cache")
	v.SetDefault("cache.base_duration", "12h")
	v.SetDefault("cache.variance", "4h")
	v.SetDefault("cache.retention", "0s")

	// Fetch defaults
	v.SetDefault("fetch.driver", "browser")
	v.SetDefault("fetch.headless", true)
	v.SetDefault("fetch.no_sandbox", false)
	v.SetDefault("fetch.network_idle", false)
	v.SetDefault("fetch.block_resources", true)
	v.SetDefault("fetch.timeout", "90s")
	v.SetDefault("fetch.rate_per_second", 2.0)
	v.SetDefault("fetch.burst", 3)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.bin_path", "")

	v.SetDefault("sources.enabled", []string{"ah", "jumbo", "plus"})

	v.SetDefault("log.level", "")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Cache.Type {
	case "file":
		if config.Cache.Dir == "" {
			return fmt.Errorf("cache dir is required when cache type is 'file'")
		}
	case "memory":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("cache type must be 'file', 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.BaseDuration <= 0 {
		return fmt.Errorf("cache base duration must be positive, got: %s", config.Cache.BaseDuration)
	}
	if config.Cache.Variance < 0 {
		return fmt.Errorf("cache variance must not be negative, got: %s", config.Cache.Variance)
	}

	if config.Fetch.Driver != "browser" && config.Fetch.Driver != "http" {
		return fmt.Errorf("fetch driver must be 'browser' or 'http', got: %s", config.Fetch.Driver)
	}
	if config.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got: %s", config.Fetch.Timeout)
	}

	if len(config.Sources.Enabled) == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}
	for _, source := range config.Sources.Enabled {
		switch strings.ToLower(strings.TrimSpace(source)) {
		case "ah", "jumbo", "plus":
		default:
			return fmt.Errorf("unknown source: %s", source)
		}
	}

	return nil
}
