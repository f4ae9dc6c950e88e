package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes environment overrides, e.g. STAYCAL_LISTEN.
const EnvPrefix = "STAYCAL"

// envOverrides mirrors the scalar config keys that may be set from the
// environment. Zero values mean "not set".
type envOverrides struct {
	Listen            string
	Timezone          string
	Refresh           string
	HorizonDays       int      `split_words:"true"`
	BackfillDays      int      `split_words:"true" default:"-1"`
	CacheDir          string   `split_words:"true"`
	LogLevel          string   `split_words:"true"`
	CORSOrigins       []string `split_words:"true"`
	BasicAuthUsername string   `split_words:"true"`
	BasicAuthPassword string   `split_words:"true"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays STAYCAL_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}

	if env.Listen != "" {
		c.Listen = env.Listen
	}
	if env.Timezone != "" {
		c.Timezone = env.Timezone
	}
	if env.Refresh != "" {
		c.RefreshCron = env.Refresh
	}
	if env.HorizonDays > 0 {
		c.HorizonDays = env.HorizonDays
	}
	if env.BackfillDays >= 0 {
		c.BackfillDays = env.BackfillDays
	}
	if env.CacheDir != "" {
		c.CacheDir = env.CacheDir
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if len(env.CORSOrigins) > 0 {
		c.CORSOrigins = env.CORSOrigins
	}
	if env.BasicAuthUsername != "" || env.BasicAuthPassword != "" {
		c.BasicAuth = &BasicAuthConfig{
			Username: env.BasicAuthUsername,
			Password: env.BasicAuthPassword,
		}
	}
	return nil
}
