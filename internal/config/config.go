package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetRequestTimeout() time.Duration
	GetAdminEmail() string
	GetAdminPassword() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// Settings is the loaded configuration. Values come from an optional YAML file
// overlaid by environment variables.
type Settings struct {
	EnvVars `yaml:"server"`
	Cors    `yaml:"cors"`
	Tokens  `yaml:"tokens"`
	Stores  `yaml:"stores"`
}

var _ Config = (*Settings)(nil)

// Load reads configuration from path, then CONFIG_PATH, then the environment alone.
func Load(path string) (*Settings, error) {
	var s Settings

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &s); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks values that have no safe default.
func (s *Settings) Validate() error {
	if err := s.Tokens.validate(); err != nil {
		return err
	}
	if s.EnvVars.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	return nil
}
