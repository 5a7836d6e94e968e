// Package config loads vitalguard settings from defaults, an optional YAML
// file, a .env file and VITALGUARD_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/vitalguard/pkg/notify"
	"github.com/hed1ad/vitalguard/pkg/storage"
	"github.com/hed1ad/vitalguard/pkg/training"
)

// EnvPrefix prefixes environment overrides, e.g. VITALGUARD_SERVER_ADDR.
const EnvPrefix = "VITALGUARD"

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig        `mapstructure:"log" yaml:"log"`
	Server    ServerConfig     `mapstructure:"server" yaml:"server"`
	Model     ModelConfig      `mapstructure:"model" yaml:"model"`
	Storage   storage.Config   `mapstructure:"storage" yaml:"storage"`
	History   HistoryConfig    `mapstructure:"history" yaml:"history"`
	Simulator SimulatorConfig  `mapstructure:"simulator" yaml:"simulator"`
	Training  training.Options `mapstructure:"training" yaml:"training"`
	Notify    NotifyConfig     `mapstructure:"notify" yaml:"notify"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RateLimit is the sustained requests per second allowed; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

type ModelConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type HistoryConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type SimulatorConfig struct {
	// Seed for live readings; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

type NotifyConfig struct {
	Kafka notify.KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Model: ModelConfig{Path: "model.gob"},
		Storage: storage.Config{
			Driver:         "sqlite",
			DSN:            "health_data.db",
			MaxEntries:     10000,
			ConnectTimeout: 30 * time.Second,
		},
		History:  HistoryConfig{Limit: 20},
		Training: training.DefaultOptions(),
		Notify: NotifyConfig{Kafka: notify.KafkaConfig{
			Topic:        "vitalguard.anomalies",
			WriteTimeout: 5 * time.Second,
		}},
	}
}

// setDefaults registers every key so that environment overrides work even
// when the key is absent from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit", cfg.Server.RateLimit)
	v.SetDefault("server.rate_burst", cfg.Server.RateBurst)
	v.SetDefault("model.path", cfg.Model.Path)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("storage.max_entries", cfg.Storage.MaxEntries)
	v.SetDefault("storage.connect_timeout", cfg.Storage.ConnectTimeout)
	v.SetDefault("history.limit", cfg.History.Limit)
	v.SetDefault("simulator.seed", cfg.Simulator.Seed)
	v.SetDefault("training.records", cfg.Training.Records)
	v.SetDefault("training.contamination", cfg.Training.Contamination)
	v.SetDefault("training.test_fraction", cfg.Training.TestFraction)
	v.SetDefault("training.seed", cfg.Training.Seed)
	v.SetDefault("training.trees", cfg.Training.Trees)
	v.SetDefault("training.sample_size", cfg.Training.SampleSize)
	v.SetDefault("notify.kafka.enabled", cfg.Notify.Kafka.Enabled)
	v.SetDefault("notify.kafka.brokers", cfg.Notify.Kafka.Brokers)
	v.SetDefault("notify.kafka.topic", cfg.Notify.Kafka.Topic)
	v.SetDefault("notify.kafka.write_timeout", cfg.Notify.Kafka.WriteTimeout)
}

// NewViper prepares a Viper instance with defaults and environment binding.
// A non-empty path is read as the config file.
func NewViper(path string) (*viper.Viper, error) {
	// A missing .env is normal; real environment variables still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}
	return v, nil
}

// Load reads the configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates a prepared Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		return errors.New("server.rate_burst must be positive when rate limiting is enabled")
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "memory", "sqlite", "postgres", "postgresql", "redis":
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if c.History.Limit <= 0 {
		return errors.New("history.limit must be positive")
	}
	if err := c.Training.Validate(); err != nil {
		return err
	}
	return c.Notify.Kafka.Validate()
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
