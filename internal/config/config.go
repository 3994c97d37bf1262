// Package config loads gateway settings from defaults, an optional YAML
// file, then environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration for mobd.
type Config struct {
	Host        string        `yaml:"host" envconfig:"HOST"`
	Port        int           `yaml:"port" envconfig:"PORT"`
	SingleTimer bool          `yaml:"single_timer" envconfig:"SINGLE_TIMER"`
	LogLevel    string        `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// TimerTTL is how long an idle timer record survives; zero disables
	// expiry. SweepInterval controls how often expiry is checked.
	TimerTTL      time.Duration `yaml:"timer_ttl" envconfig:"TIMER_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL"`

	// Bus selects the event bus: "memory" (default, in-process) or "nats".
	Bus     string `yaml:"bus" envconfig:"BUS"`
	NATSURL string `yaml:"nats_url" envconfig:"NATS_URL"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Host:          "localhost",
		Port:          4321,
		SingleTimer:   true,
		LogLevel:      "info",
		TimerTTL:      15 * time.Minute,
		SweepInterval: time.Minute,
		Bus:           "memory",
		NATSURL:       "nats://localhost:4222",
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips the file layer. MOBD_-prefixed environment variables win.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("mobd", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}
