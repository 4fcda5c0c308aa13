// Package config loads Postgate's process configuration from environment
// variables, per the recognized-options table in the specification.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full set of recognized process options.
type Config struct {
	DatabaseURL    string        `validate:"required"`
	Host           string        `validate:"required"`
	Port           int           `validate:"required"`
	QueryTimeout   time.Duration `validate:"required"`
	DefaultRowCap  int           `validate:"required"`
	LogLevel       string        `validate:"required"`
	LogJSON        bool
}

const (
	defaultHost          = "127.0.0.1"
	defaultPort          = 3000
	defaultQueryTimeout  = 30 * time.Second
	defaultRowCap        = 1000
	defaultLogLevel      = "info"
	sessionAcquireWaitEnv = "POSTGATE_SESSION_ACQUIRE_WAIT"
)

// DefaultSessionAcquireWait is the bounded wait for acquiring a session from
// the Connection Provider before failing with UNAVAILABLE.
const DefaultSessionAcquireWait = 5 * time.Second

// MustLoad reads configuration from the environment and panics if a required
// value is missing or malformed, mirroring the teacher's panic-on-missing-file
// discipline for startup-time misconfiguration.
func MustLoad() *Config {
	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Host:          getenvDefault("POSTGATE_HOST", defaultHost),
		Port:          getenvIntDefault("POSTGATE_PORT", defaultPort),
		QueryTimeout:  getenvDurationDefault("POSTGATE_QUERY_TIMEOUT", defaultQueryTimeout),
		DefaultRowCap: getenvIntDefault("POSTGATE_DEFAULT_ROW_CAP", defaultRowCap),
		LogLevel:      getenvDefault("POSTGATE_LOG_LEVEL", defaultLogLevel),
		LogJSON:       getenvBoolDefault("POSTGATE_LOG_JSON", false),
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	return cfg
}

// SessionAcquireWait returns the bounded wait for session acquisition.
func (c *Config) SessionAcquireWait() time.Duration {
	return getenvDurationDefault(sessionAcquireWaitEnv, DefaultSessionAcquireWait)
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid integer for %s: %v", key, err))
	}
	return n
}

func getenvBoolDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Sprintf("invalid boolean for %s: %v", key, err))
	}
	return b
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Sprintf("invalid duration for %s: %v", key, err))
	}
	return d
}
