// Package config loads the scheduler's environment-driven configuration
// via viper, following the teacher's DefaultConfig →
// optional file → AutomaticEnv → Unmarshal → Validate pattern.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete process configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Catalogue ServiceConfig   `mapstructure:"catalogue"`
	Inventory ServiceConfig   `mapstructure:"octopoes"`
	RawData   ServiceConfig   `mapstructure:"bytes"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig holds the admin HTTP bind address.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (c APIConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// QueueConfig holds the per-organisation queue populate policy.
type QueueConfig struct {
	Maxsize              int           `mapstructure:"maxsize"`
	PopulateInterval     time.Duration `mapstructure:"populate_interval"`
	PopulateGracePeriod  time.Duration `mapstructure:"populate_grace_period"`
	RandomFillN          int           `mapstructure:"random_fill_n"`
}

// DispatchConfig holds the worker-fabric broker endpoint and the event-bus
// DSN the listener subscribes to.
type DispatchConfig struct {
	BrokerURL   string `mapstructure:"broker_url"`
	OctopoesDSN string `mapstructure:"octopoes_dsn"`
	Threshold   int    `mapstructure:"threshold"`
}

// ServiceConfig holds connection settings for one external service
// (catalogue, inventory/octopoes, raw-data/bytes), matching spec.md's
// "{svc}_host, {svc}_user, {svc}_pass, {svc}_timeout" convention.
type ServiceConfig struct {
	Host    string        `mapstructure:"host"`
	User    string        `mapstructure:"user"`
	Pass    string        `mapstructure:"pass"`
	Timeout time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// LoggingConfig holds the ambient zerolog setup.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DefaultConfig returns the scheduler's built-in defaults, matching
// spec.md §6.4's documented default values.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{Host: "0.0.0.0", Port: 8004},
		Queue: QueueConfig{
			Maxsize:             1000,
			PopulateInterval:    60 * time.Second,
			PopulateGracePeriod: 86400 * time.Second,
			RandomFillN:         50,
		},
		Dispatch: DispatchConfig{
			BrokerURL:   "http://localhost:8003/tasks",
			OctopoesDSN: "http://localhost:8002",
			Threshold:   10,
		},
		Catalogue: ServiceConfig{Host: "http://localhost:8080", Timeout: 30 * time.Second, CacheTTL: 30 * time.Second},
		Inventory: ServiceConfig{Host: "http://localhost:8002", Timeout: 30 * time.Second, CacheTTL: 30 * time.Second},
		RawData:   ServiceConfig{Host: "http://localhost:8003", Timeout: 30 * time.Second, CacheTTL: 30 * time.Second},
		Logging:   LoggingConfig{Level: "info", Pretty: false},
	}
}

// Load builds a Config from defaults, an optional file, then environment
// variables (which always win), following the teacher's layering order.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	bindDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SCHEDULER")
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// bindDefaults seeds viper with cfg's values so AutomaticEnv has something
// to override rather than leaving unset keys at their zero value.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.host", cfg.API.Host)
	v.SetDefault("api.port", cfg.API.Port)
	v.SetDefault("queue.maxsize", cfg.Queue.Maxsize)
	v.SetDefault("queue.populate_interval", cfg.Queue.PopulateInterval)
	v.SetDefault("queue.populate_grace_period", cfg.Queue.PopulateGracePeriod)
	v.SetDefault("queue.random_fill_n", cfg.Queue.RandomFillN)
	v.SetDefault("dispatch.broker_url", cfg.Dispatch.BrokerURL)
	v.SetDefault("dispatch.octopoes_dsn", cfg.Dispatch.OctopoesDSN)
	v.SetDefault("dispatch.threshold", cfg.Dispatch.Threshold)
	v.SetDefault("catalogue.host", cfg.Catalogue.Host)
	v.SetDefault("catalogue.timeout", cfg.Catalogue.Timeout)
	v.SetDefault("catalogue.cache_ttl", cfg.Catalogue.CacheTTL)
	v.SetDefault("octopoes.host", cfg.Inventory.Host)
	v.SetDefault("octopoes.timeout", cfg.Inventory.Timeout)
	v.SetDefault("octopoes.cache_ttl", cfg.Inventory.CacheTTL)
	v.SetDefault("bytes.host", cfg.RawData.Host)
	v.SetDefault("bytes.user", cfg.RawData.User)
	v.SetDefault("bytes.timeout", cfg.RawData.Timeout)
	v.SetDefault("bytes.cache_ttl", cfg.RawData.CacheTTL)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
}
