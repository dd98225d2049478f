// Package config loads the leave engine's configuration from a YAML file,
// a .env file and LEAVE_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/warp/leave-engine/rbac"
)

// EnvPrefix is prepended to every environment override, e.g.
// LEAVE_SERVER_PORT or LEAVE_AUTH_JWT_SECRET.
const EnvPrefix = "LEAVE"

type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Logger     LoggerConfig      `mapstructure:"logger"`
	Auth       AuthConfig        `mapstructure:"auth"`
	RateLimit  RateLimitConfig   `mapstructure:"rate_limit"`
	RBAC       RBACConfig        `mapstructure:"rbac"`
	LeaveTypes []LeaveTypeConfig `mapstructure:"leave_types"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RateLimitConfig throttles mutating calls per actor.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RBACConfig replaces the built-in override policies when non-empty.
type RBACConfig struct {
	Policies    []rbac.Policy      `mapstructure:"policies"`
	Inheritance []rbac.Inheritance `mapstructure:"inheritance"`
}

// Rules returns the configured policies, or the defaults if none are set.
func (r RBACConfig) Rules() ([]rbac.Policy, []rbac.Inheritance) {
	if len(r.Policies) == 0 {
		return rbac.DefaultPolicies()
	}
	return r.Policies, r.Inheritance
}

// Load reads configPath (optional) and applies env overrides. A .env
// file in the working directory is loaded first if present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("database.path", "leave.db")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)
}

// minSecretLen is the shortest HMAC secret accepted.
const minSecretLen = 32

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	if len(c.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minSecretLen)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate_limit.requests_per_second and rate_limit.burst must be positive")
	}
	for i, lt := range c.LeaveTypes {
		if lt.Code == "" {
			return fmt.Errorf("leave_types[%d].code is required", i)
		}
	}
	return nil
}
