// Package config loads server configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Validator ValidatorConfig `mapstructure:"validator"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Credits   CreditsConfig   `mapstructure:"credits"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	// Addr empty means the in-memory job store is used.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	Domain   string `mapstructure:"domain"`
	Audience string `mapstructure:"audience"`
}

// QueueConfig holds the job queue tunables. PerJobDuration is the fixed
// per-job processing-time assumption used for wait estimates; it is a
// configuration constant, not a measured throughput signal.
type QueueConfig struct {
	PerJobDuration  time.Duration `mapstructure:"per_job_duration"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollMaxAttempts int           `mapstructure:"poll_max_attempts"`
	CleanupMaxAge   time.Duration `mapstructure:"cleanup_max_age"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type ExtractorConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRepoBytes int64         `mapstructure:"max_repo_bytes"`
}

type ValidatorConfig struct {
	AllowedHosts []string      `mapstructure:"allowed_hosts"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// CreditsConfig holds the credit cost model: a base cost per analysis
// plus an increment for every started 100KB of extracted content.
type CreditsConfig struct {
	BaseCost     int `mapstructure:"base_cost"`
	PerHundredKB int `mapstructure:"per_hundred_kb"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given YAML file, with environment
// variables (BASELINEGATE_SECTION_KEY) taking precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("BASELINEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so environment overrides reach
	// Unmarshal even without a config file.
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.domain", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("extractor.base_url", "")
	v.SetDefault("extractor.api_key", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("queue.per_job_duration", 45*time.Second)
	v.SetDefault("queue.poll_interval", 2*time.Second)
	v.SetDefault("queue.poll_max_attempts", 150)
	v.SetDefault("queue.cleanup_max_age", 24*time.Hour)
	v.SetDefault("queue.cleanup_interval", time.Hour)
	v.SetDefault("extractor.timeout", 2*time.Minute)
	v.SetDefault("extractor.max_repo_bytes", int64(50*1024*1024))
	v.SetDefault("validator.allowed_hosts", []string{"github.com", "gitlab.com", "bitbucket.org"})
	v.SetDefault("validator.timeout", 10*time.Second)
	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("credits.base_cost", 1)
	v.SetDefault("credits.per_hundred_kb", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
