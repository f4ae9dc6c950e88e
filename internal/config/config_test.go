package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HorizonDays != 365 || cfg.RefreshCron != "*/15 * * * *" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
timezone: Europe/Lisbon
backfill_days: -4
feeds:
  - id: " loft "
    url: https://example.test/loft.ics
    flavor: " Generic "
  - id: cabin
    name: Lake cabin
    url: https://example.test/cabin.ics
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.HorizonDays != 365 || cfg.BackfillDays != 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	loft, ok := cfg.Feed("loft")
	if !ok || loft.Name != "loft" || loft.Flavor != "generic" {
		t.Fatalf("loft = %+v, %v", loft, ok)
	}
	if cfg.Location().String() != "Europe/Lisbon" {
		t.Fatalf("location = %s", cfg.Location())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Feeds = append(cfg.Feeds, FeedConfig{ID: "a", URL: "https://example.test/a.ics", Flavor: "nami"})
	cfg.BasicAuth = &BasicAuthConfig{Username: "host", Password: "secret"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Feeds) != 1 || got.Feeds[0].Flavor != "nami" || got.BasicAuth == nil || got.BasicAuth.Password != "secret" {
		t.Fatalf("round trip lost data: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad cron", func(c *Config) { c.RefreshCron = "every minute" }, "refresh"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "level"},
		{"empty id", func(c *Config) { c.Feeds = []FeedConfig{{URL: "u"}} }, "id is empty"},
		{"duplicate id", func(c *Config) {
			c.Feeds = []FeedConfig{{ID: "a", URL: "u"}, {ID: "a", URL: "v"}}
		}, "duplicate"},
		{"empty url", func(c *Config) { c.Feeds = []FeedConfig{{ID: "a"}} }, "url is empty"},
		{"bad flavor", func(c *Config) { c.Feeds = []FeedConfig{{ID: "a", URL: "u", Flavor: "vrbo"}} }, "flavor"},
		{"zero horizon", func(c *Config) { c.HorizonDays = 0 }, "horizon_days"},
		{"huge horizon", func(c *Config) { c.HorizonDays = MaxWindowDays + 1 }, "horizon_days"},
		{"negative backfill", func(c *Config) { c.BackfillDays = -1 }, "backfill_days"},
		{"huge backfill", func(c *Config) { c.BackfillDays = 100000 }, "backfill_days"},
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	edge := DefaultConfig()
	edge.HorizonDays, edge.BackfillDays = MaxWindowDays, MaxWindowDays
	if err := edge.Validate(); err != nil {
		t.Fatalf("window at the limit rejected: %v", err)
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: Validate() = %v, want error containing %q", tc.name, err, tc.want)
		}
	}
}
