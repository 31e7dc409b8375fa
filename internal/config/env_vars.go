package config

import (
	"fmt"
	"os"
	"time"
)

type EnvVars struct {
	Port           string        `yaml:"port" env:"PORT" env-default:"3001"`
	AppName        string        `yaml:"app_name" env:"APP_NAME" env-default:"Ordering Server"`
	Env            string        `yaml:"env" env:"ENV" env-default:"DEV"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"10s"`

	// Bootstrap admin for the in-memory user store.
	AdminEmail    string `yaml:"admin_email" env:"ADMIN_EMAIL" env-default:"admin@localhost"`
	AdminPassword string `yaml:"admin_password" env:"ADMIN_PASSWORD"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "3001"
	}
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e EnvVars) GetRequestTimeout() time.Duration {
	return e.RequestTimeout
}

func (e EnvVars) GetAdminEmail() string {
	return e.AdminEmail
}

func (e EnvVars) GetAdminPassword() string {
	return e.AdminPassword
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
