package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"staycal/internal/availability"
	appLog "staycal/internal/log"
)

// FeedConfig describes a single rental calendar subscription.
type FeedConfig struct {
	// ID is the stable identifier used in API paths and export UIDs.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label, also used as the export calendar name.
	Name string `yaml:"name" json:"name"`
	// URL is the iCal subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Flavor selects the classification profile: "airbnb" (default),
	// "generic" or "nami".
	Flavor string `yaml:"flavor,omitempty" json:"flavor,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// MaxWindowDays bounds horizon_days and backfill_days.
const MaxWindowDays = 3660

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that defines "today" and is used to read
	// floating date-times (e.g. "Europe/Lisbon").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a standard five-field cron schedule for feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of days from today that are reconciled.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// BackfillDays extends the reported window before today.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// CacheDir holds conditional-GET caches of fetched feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CORSOrigins lists browser origins allowed to call the API, for booking
	// widgets hosted elsewhere. Empty disables CORS.
	CORSOrigins []string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "UTC",
		RefreshCron:  "*/15 * * * *",
		HorizonDays:  availability.DefaultHorizonDays,
		BackfillDays: 0,
		CacheDir:     "./var/feed-cache",
		LogLevel:     "info",
		Feeds:        []FeedConfig{},
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		f := &c.Feeds[i]
		f.ID = strings.TrimSpace(f.ID)
		f.Flavor = strings.ToLower(strings.TrimSpace(f.Flavor))
		if f.Name == "" {
			f.Name = f.ID
		}
	}
}

// Validate reports the first problem that would stop the service from
// running with this configuration.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.HorizonDays < 1 || c.HorizonDays > MaxWindowDays {
		return fmt.Errorf("config: horizon_days %d must be between 1 and %d", c.HorizonDays, MaxWindowDays)
	}
	if c.BackfillDays < 0 || c.BackfillDays > MaxWindowDays {
		return fmt.Errorf("config: backfill_days %d must be between 0 and %d", c.BackfillDays, MaxWindowDays)
	}

	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		if f.ID == "" {
			return fmt.Errorf("config: feeds[%d]: id is empty", i)
		}
		if seen[f.ID] {
			return fmt.Errorf("config: feeds[%d]: duplicate id %q", i, f.ID)
		}
		seen[f.ID] = true
		if f.URL == "" {
			return fmt.Errorf("config: feed %q: url is empty", f.ID)
		}
		if _, err := availability.ProfileByName(f.Flavor); err != nil {
			return fmt.Errorf("config: feed %q: %w", f.ID, err)
		}
	}
	return nil
}

// Location returns the configured time zone, or UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Feed looks up a feed by ID.
func (c *Config) Feed(id string) (FeedConfig, bool) {
	for _, f := range c.Feeds {
		if f.ID == id {
			return f, true
		}
	}
	return FeedConfig{}, false
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename. The parent
// directory is created 0700 and the final file is 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".staycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
