// Package config assembles service configuration from an optional YAML file
// and environment variables. Environment wins.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/quizlive/go/internal/dbconfig"
	"github.com/mcdev12/quizlive/go/internal/gamestore"
	"github.com/mcdev12/quizlive/go/internal/gateway"
	"github.com/mcdev12/quizlive/go/internal/journal"
	"github.com/mcdev12/quizlive/go/internal/session"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port     string `yaml:"port"`
	Store    string `yaml:"store"`
	LogLevel string `yaml:"log_level"`

	// DemoCode seeds a joinable demo game hosted by DemoHost when set.
	DemoCode string `yaml:"demo_code"`
	DemoHost string `yaml:"demo_host"`

	Session  session.Config           `yaml:"session"`
	Gateway  gateway.Config           `yaml:"gateway"`
	Journal  journal.Config           `yaml:"journal"`
	Listener gamestore.ListenerConfig `yaml:"listener"`
	Database dbconfig.Config          `yaml:"-"`
}

func Default() Config {
	j := journal.DefaultConfig()
	j.URL = "" // journal is opt-in

	return Config{
		Port:     "8080",
		Store:    StoreMemory,
		LogLevel: "info",
		DemoHost: "host",
		Session:  session.DefaultConfig(),
		Gateway:  gateway.DefaultConfig(),
		Journal:  j,
		Listener: gamestore.DefaultListenerConfig(),
	}
}

// Load reads the YAML file at path, if any, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Store = strings.ToLower(getEnv("STORE", cfg.Store))
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DemoCode = getEnv("DEMO_CODE", cfg.DemoCode)
	cfg.DemoHost = getEnv("DEMO_HOST", cfg.DemoHost)
	cfg.Journal.URL = getEnv("NATS_URL", cfg.Journal.URL)

	cfg.Database = dbconfig.NewConfigFromEnv()
	if cfg.Listener.DatabaseURL == "" {
		cfg.Listener.DatabaseURL = cfg.Database.DSN()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.Store != StoreMemory && c.Store != StorePostgres {
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, err)
	}
	conn := c.Gateway.ConnectionConfig
	if conn.MaxMessageSize <= 0 || conn.SendBufferSize <= 0 {
		errs = append(errs, errors.New("gateway message size and send buffer must be positive"))
	}
	if c.Journal.URL != "" && (c.Journal.StreamName == "" || c.Journal.SubjectPrefix == "") {
		errs = append(errs, errors.New("journal stream name and subject prefix are required"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
