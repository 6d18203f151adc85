// Package config loads the rawrlistener demo server configuration from an
// optional YAML file, a .env file and RAWR_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. RAWR_SERVER_ADDRESS.
const EnvPrefix = "RAWR"

// Config is the demo server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Listener ListenerConfig `mapstructure:"listener"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	GRPCAddress     string        `mapstructure:"grpc_address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type ListenerConfig struct {
	BodyLimit      int      `mapstructure:"body_limit"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type RecorderConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	TTL       time.Duration `mapstructure:"ttl"`
	L1MaxCost int64         `mapstructure:"l1_max_cost"`
}

// RedisConfig enables the L2 exchange cache when Address is set.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type TracingConfig struct {
	Stdout bool `mapstructure:"stdout"`
}

var defaults = map[string]any{
	"server.address":           ":8080",
	"server.grpc_address":      ":9090",
	"server.shutdown_timeout":  10 * time.Second,
	"log.level":                "info",
	"log.format":               "json",
	"listener.body_limit":      64 << 10,
	"listener.trusted_proxies": []string{},
	"recorder.enabled":         true,
	"recorder.ttl":             15 * time.Minute,
	"recorder.l1_max_cost":     10_000,
	"redis.address":            "",
	"redis.password":           "",
	"redis.db":                 0,
	"redis.prefix":             "rawr:",
	"tracing.stdout":           false,
}

type loadOptions struct {
	configFile string
	envFile    string
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithConfigFile reads path as YAML. A missing file is an error.
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile loads path with godotenv before reading the environment. A
// missing file is ignored. Default ".env".
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) { o.envFile = path }
}

// Load resolves the configuration. Precedence from lowest to highest:
// defaults, config file, .env file, process environment.
func Load(opts ...LoadOption) (*Config, error) {
	lo := loadOptions{envFile: ".env"}
	for _, o := range opts {
		o(&lo)
	}

	if lo.envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(lo.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", lo.envFile, err)
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if lo.configFile != "" {
		v.SetConfigFile(lo.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", lo.configFile, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Address == "":
		return errors.New("config: server.address is required")
	case c.Listener.BodyLimit < 0:
		return errors.New("config: listener.body_limit must not be negative")
	case c.Recorder.Enabled && c.Recorder.TTL <= 0:
		return errors.New("config: recorder.ttl must be positive")
	case c.Recorder.Enabled && c.Recorder.L1MaxCost <= 0:
		return errors.New("config: recorder.l1_max_cost must be positive")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// NewLogger builds the process logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if strings.EqualFold(c.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
