package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging    LogConfig     `yaml:"logging"`
	Metrics    MetricsConfig `yaml:"metrics"`
	Database   DBConfig      `yaml:"database"`
	Events     EventsConfig  `yaml:"events"`
	Processing ProcConfig    `yaml:"processing"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // json or console
}

type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Address        string `yaml:"address"`
	Path           string `yaml:"path"`
	UpdateInterval string `yaml:"updateInterval"` // Duration string
}

// DBConfig selects the backing store. Driver "memory" runs without
// external storage; "postgres" connects via lib/pq. Credentials left
// empty fall back to the DESK_DB_USER/DESK_DB_PASSWORD environment
// (see cmd main, which loads .env first).
type DBConfig struct {
	Driver   string `yaml:"driver"` // memory or postgres
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslMode"`
}

// EventsConfig configures the entity-event transport. Exactly one
// transport is active at a time.
type EventsConfig struct {
	Transport string     `yaml:"transport"` // nats or mqtt
	NATS      NATSConfig `yaml:"nats"`
	MQTT      MQTTConfig `yaml:"mqtt"`
}

type NATSConfig struct {
	URLs     []string  `yaml:"urls"`
	ClientID string    `yaml:"clientId"`
	Username string    `yaml:"username"`
	Password string    `yaml:"password"`
	Subject  string    `yaml:"subject"` // entity event subject, supports NATS wildcards
	TLS      TLSConfig `yaml:"tls"`
}

type MQTTConfig struct {
	Broker   string    `yaml:"broker"`
	ClientID string    `yaml:"clientId"`
	Username string    `yaml:"username"`
	Password string    `yaml:"password"`
	Topic    string    `yaml:"topic"` // entity event topic, supports MQTT wildcards
	TLS      TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enable   bool   `yaml:"enable"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
	CAFile   string `yaml:"caFile"`
}

type ProcConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queueSize"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults for logging
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Encoding == "" {
		config.Logging.Encoding = "json"
	}

	// Set defaults for metrics
	if config.Metrics.Address == "" {
		config.Metrics.Address = ":2112"
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.UpdateInterval == "" {
		config.Metrics.UpdateInterval = "15s"
	}

	// Set defaults for the store
	if config.Database.Driver == "" {
		config.Database.Driver = "memory"
	}
	if config.Database.Port == "" {
		config.Database.Port = "5432"
	}
	if config.Database.SSLMode == "" {
		config.Database.SSLMode = "disable"
	}

	// Set defaults for events
	if config.Events.Transport == "" {
		config.Events.Transport = "nats"
	}
	if config.Events.NATS.Subject == "" {
		config.Events.NATS.Subject = "desk.events.>"
	}
	if config.Events.MQTT.Topic == "" {
		config.Events.MQTT.Topic = "desk/events/#"
	}

	// Set defaults for processing
	if config.Processing.Workers <= 0 {
		config.Processing.Workers = runtime.NumCPU()
	}
	if config.Processing.QueueSize <= 0 {
		config.Processing.QueueSize = 1000
	}

	// Validate the configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	// Validate logging config
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	// Validate metrics config
	if cfg.Metrics.Enabled {
		if _, err := time.ParseDuration(cfg.Metrics.UpdateInterval); err != nil {
			return fmt.Errorf("invalid metrics update interval: %w", err)
		}
	}

	// Validate store config
	switch cfg.Database.Driver {
	case "memory":
	case "postgres":
		if cfg.Database.Host == "" {
			return fmt.Errorf("database host is required for the postgres driver")
		}
		if cfg.Database.Name == "" {
			return fmt.Errorf("database name is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", cfg.Database.Driver)
	}

	// Validate events config
	switch cfg.Events.Transport {
	case "nats":
		if len(cfg.Events.NATS.URLs) == 0 {
			return fmt.Errorf("at least one NATS server URL is required")
		}
		if err := validateTLS(&cfg.Events.NATS.TLS); err != nil {
			return err
		}
	case "mqtt":
		if cfg.Events.MQTT.Broker == "" {
			return fmt.Errorf("mqtt broker address is required")
		}
		if err := validateTLS(&cfg.Events.MQTT.TLS); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid events transport: %s", cfg.Events.Transport)
	}

	// Validate processing config
	if cfg.Processing.Workers < 1 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if cfg.Processing.QueueSize < 1 {
		return fmt.Errorf("queue size must be greater than 0")
	}

	return nil
}

func validateTLS(tls *TLSConfig) error {
	if !tls.Enable {
		return nil
	}
	if tls.CertFile == "" {
		return fmt.Errorf("tls cert file is required when tls is enabled")
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("tls key file is required when tls is enabled")
	}
	if tls.CAFile == "" {
		return fmt.Errorf("tls ca file is required when tls is enabled")
	}
	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(workers, queueSize int, metricsAddr, metricsPath string, metricsInterval time.Duration) {
	if workers > 0 {
		c.Processing.Workers = workers
	}
	if queueSize > 0 {
		c.Processing.QueueSize = queueSize
	}
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
	}
	if metricsPath != "" {
		c.Metrics.Path = metricsPath
	}
	if metricsInterval > 0 {
		c.Metrics.UpdateInterval = metricsInterval.String()
	}
}
