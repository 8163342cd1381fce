// Package config loads cartd settings: built-in defaults, then an optional
// YAML file, then environment variables. Command-line flags are applied last
// by the caller.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"harvestcart/internal/strategy"
)

type Config struct {
	Port string `yaml:"port"`

	StoreBackend string `yaml:"storeBackend"` // memory, sqlite, postgres, redis
	SQLitePath   string `yaml:"sqlitePath"`
	DatabaseURL  string `yaml:"databaseUrl"`
	RedisURL     string `yaml:"redisUrl"`
	Namespace    string `yaml:"namespace"`
	Broker       string `yaml:"broker"` // memory, redis

	BackendURL     string        `yaml:"backendUrl"`
	BackendTimeout time.Duration `yaml:"backendTimeout"`
	BackendRPS     float64       `yaml:"backendRps"`
	BackendBurst   int           `yaml:"backendBurst"`
	SyncSecret     string        `yaml:"syncSecret"`
	SyncTimeout    time.Duration `yaml:"syncTimeout"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// Strategies overrides the built-in data domain → policy table.
	Strategies map[string]string `yaml:"strategies"`
}

func Defaults() Config {
	return Config{
		Port:           "8080",
		Broker:         "memory",
		BackendURL:     "http://localhost:3000",
		BackendTimeout: 5 * time.Second,
		BackendRPS:     20,
		BackendBurst:   10,
		SyncTimeout:    5 * time.Second,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty) and
// the environment as seen through getenv (os.Getenv when nil).
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	if _, err := cfg.Registry(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("STORE_BACKEND", &cfg.StoreBackend)
	str("SQLITE_PATH", &cfg.SQLitePath)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("REDIS_URL", &cfg.RedisURL)
	str("STATE_NAMESPACE", &cfg.Namespace)
	str("BROKER", &cfg.Broker)
	str("BACKEND_URL", &cfg.BackendURL)
	str("SYNC_SECRET", &cfg.SyncSecret)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	for key, dst := range map[string]*time.Duration{"BACKEND_TIMEOUT": &cfg.BackendTimeout, "SYNC_TIMEOUT": &cfg.SyncTimeout} {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	if v := getenv("BACKEND_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BACKEND_RPS: %w", err)
		}
		cfg.BackendRPS = f
	}
	if v := getenv("BACKEND_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BACKEND_BURST: %w", err)
		}
		cfg.BackendBurst = n
	}
	return nil
}

// Registry builds the strategy registry: built-in defaults with the
// configured overrides registered on top.
func (c Config) Registry() (*strategy.Registry, error) {
	reg := strategy.NewRegistry(nil)
	for dataType, raw := range c.Strategies {
		if err := reg.Register(dataType, strategy.Policy(raw)); err != nil {
			return nil, fmt.Errorf("strategies.%s: %w", dataType, err)
		}
	}
	return reg, nil
}

// Redacted returns a loggable view without credentials.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"port":            c.Port,
		"storeBackend":    c.StoreBackend,
		"sqlitePath":      c.SQLitePath,
		"hasDatabaseUrl":  c.DatabaseURL != "",
		"hasRedisUrl":     c.RedisURL != "",
		"broker":          c.Broker,
		"backendUrl":      c.BackendURL,
		"backendTimeout":  c.BackendTimeout.String(),
		"backendRps":      c.BackendRPS,
		"hasSyncSecret":   c.SyncSecret != "",
		"logLevel":        c.LogLevel,
		"strategyEntries": len(c.Strategies),
	}
}
