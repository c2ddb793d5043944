// Package config loads server and payroll settings from a YAML file,
// an optional .env file and STAFFING_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/warp/staffing-engine/generic"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STAFFING_"

type Config struct {
	Server struct {
		Port                   int `yaml:"port" env:"PORT"`
		ReadTimeoutSeconds     int `yaml:"read_timeout_seconds" env:"READ_TIMEOUT_SECONDS"`
		WriteTimeoutSeconds    int `yaml:"write_timeout_seconds" env:"WRITE_TIMEOUT_SECONDS"`
		ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" env:"SHUTDOWN_TIMEOUT_SECONDS"`
	} `yaml:"server" envPrefix:"SERVER_"`

	Database struct {
		Path string `yaml:"path" env:"PATH"`
	} `yaml:"database" envPrefix:"DATABASE_"`

	// Redis is optional; without an address the run lock is in-process.
	Redis struct {
		Address  string `yaml:"address" env:"ADDRESS"`
		Password string `yaml:"password" env:"PASSWORD"`
		DB       int    `yaml:"db" env:"DB"`
	} `yaml:"redis" envPrefix:"REDIS_"`

	Log struct {
		Level  string `yaml:"level" env:"LEVEL"`
		Pretty bool   `yaml:"pretty" env:"PRETTY"`
	} `yaml:"log" envPrefix:"LOG_"`

	API struct {
		RateLimitRPS float64  `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
		RateBurst    int      `yaml:"rate_burst" env:"RATE_BURST"`
		CORSOrigins  []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	} `yaml:"api" envPrefix:"API_"`

	Payroll struct {
		Enabled       bool          `yaml:"enabled" env:"ENABLED"`
		Cycle         string        `yaml:"cycle" env:"CYCLE"`
		CheckInterval time.Duration `yaml:"check_interval" env:"CHECK_INTERVAL"`
		RatePerSecond float64       `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
		Concurrency   int           `yaml:"concurrency" env:"CONCURRENCY"`
	} `yaml:"payroll" envPrefix:"PAYROLL_"`
}

// Load reads path (skipped when empty), then .env, then the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 15
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 30
	}
	if c.Database.Path == "" {
		c.Database.Path = "staffing.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.API.RateLimitRPS == 0 {
		c.API.RateLimitRPS = 20
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = 40
	}
	if len(c.API.CORSOrigins) == 0 {
		c.API.CORSOrigins = []string{"*"}
	}
	if c.Payroll.Cycle == "" {
		c.Payroll.Cycle = string(generic.CycleSemiMonthly)
	}
	if c.Payroll.CheckInterval == 0 {
		c.Payroll.CheckInterval = time.Hour
	}
	if c.Payroll.Concurrency == 0 {
		c.Payroll.Concurrency = 4
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if !c.PayCycle().Valid() {
		return fmt.Errorf("payroll.cycle %q: want weekly, biweekly, semi_monthly or monthly", c.Payroll.Cycle)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	if c.Payroll.CheckInterval < 0 {
		return fmt.Errorf("payroll.check_interval must not be negative")
	}
	return nil
}

func (c *Config) PayCycle() generic.PayCycle { return generic.PayCycle(c.Payroll.Cycle) }

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
