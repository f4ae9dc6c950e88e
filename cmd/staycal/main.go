package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staycal/internal/availability"
	"staycal/internal/config"
	"staycal/internal/feeds"
	"staycal/internal/ics"
	appLog "staycal/internal/log"
	"staycal/internal/model"
	"staycal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	file       string
	flavor     string
	today      string
}

func main() {
	flags := parseFlags()

	// Parsing a local file needs no config.
	if flags.file != "" {
		if err := runParseFile(flags, os.Stdout); err != nil {
			appLog.Error("parse failed", err, "file", flags.file)
			os.Exit(1)
		}
		return
	}

	appLog.Info("staycal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := config.LoadDotEnv(flags.envFile); err != nil {
		appLog.Error("failed to load env file", err, "env_file", flags.envFile)
		os.Exit(1)
	}
	if err := conf.ApplyEnv(); err != nil {
		appLog.Error("invalid environment override", err)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	conf.Normalize()
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	level, _ := appLog.ParseLevel(conf.LogLevel)
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"backfill_days", conf.BackfillDays,
		"feeds", len(conf.Feeds),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := feeds.New(conf, ics.NewFetcher(conf.CacheDir))

	if flags.once {
		err := svc.RefreshAll(ctx)
		if werr := writeSnapshots(os.Stdout, svc.List()); werr != nil {
			appLog.Error("failed to write results", werr)
			os.Exit(1)
		}
		if err != nil {
			appLog.Error("one or more feeds failed", err)
			os.Exit(1)
		}
		return
	}

	if err := svc.RefreshAll(ctx); err != nil {
		appLog.Warn("initial refresh had failures", "error", err.Error())
	}
	if err := svc.Start(ctx); err != nil {
		appLog.Error("failed to start scheduler", err)
		os.Exit(1)
	}

	srv := web.NewServer(conf, svc)
	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server stopped", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	svc.Stop(stopCtx)

	appLog.Info("staycal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/staycal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env-file", ".env", "Optional KEY=VALUE file with STAYCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh all feeds once, print results as JSON and exit")
	flag.StringVar(&cfg.file, "file", "", "Parse a local .ics file, print the result as JSON and exit")
	flag.StringVar(&cfg.flavor, "flavor", "", "Feed flavor for -file (airbnb, generic, nami)")
	flag.StringVar(&cfg.today, "today", "", "Reference day for -file as YYYY-MM-DD (default: today, UTC)")

	flag.Parse()

	return cfg
}

// runParseFile runs the availability pipeline over flags.file.
func runParseFile(flags flagConfig, out io.Writer) error {
	profile, err := availability.ProfileByName(flags.flavor)
	if err != nil {
		return err
	}

	today := model.Today(time.UTC)
	if flags.today != "" {
		if today, err = model.ParseDate(flags.today); err != nil {
			return err
		}
	}

	raw, err := os.ReadFile(flags.file)
	if err != nil {
		return err
	}

	res := availability.Parse(string(raw), today, availability.Options{
		Profile: profile,
		Trace:   appLog.Debug,
	})

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s: %w", flags.file, ics.ErrNotCalendar)
	}
	return nil
}

type snapshotOutput struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Error  string              `json:"error,omitempty"`
	Result availability.Result `json:"result"`
}

func writeSnapshots(w io.Writer, snaps []feeds.Snapshot) error {
	out := make([]snapshotOutput, 0, len(snaps))
	for _, s := range snaps {
		o := snapshotOutput{ID: s.Feed.ID, Name: s.Feed.Name, Result: s.Result}
		if s.Err != nil {
			o.Error = s.Err.Error()
		}
		out = append(out, o)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
