// Package feeds keeps the latest availability of every configured rental
// calendar and refreshes it on a cron schedule.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"staycal/internal/availability"
	"staycal/internal/config"
	"staycal/internal/ics"
	appLog "staycal/internal/log"
	"staycal/internal/model"
)

// ErrUnknownFeed is returned for feed IDs that are not configured.
var ErrUnknownFeed = errors.New("feeds: unknown feed")

// Fetcher downloads one feed body. *ics.Fetcher implements it.
type Fetcher interface {
	FetchOne(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// Snapshot is the last known state of one feed.
type Snapshot struct {
	Feed   config.FeedConfig
	Result availability.Result
	// Body is the last successfully fetched payload, kept for re-parsing
	// when the day rolls over.
	Body      []byte
	FetchedAt time.Time
	FromCache bool
	// Err is the most recent refresh failure. A failure after a good fetch
	// keeps the previous Result.
	Err error
}

// Service owns the per-feed snapshots.
type Service struct {
	cfg     *config.Config
	fetcher Fetcher
	loc     *time.Location
	now     func() time.Time

	mu    sync.RWMutex
	snaps map[string]*Snapshot

	cronMu sync.Mutex
	cron   *cron.Cron
}

// New creates a Service for the feeds in cfg.
func New(cfg *config.Config, fetcher Fetcher) *Service {
	return &Service{
		cfg:     cfg,
		fetcher: fetcher,
		loc:     cfg.Location(),
		now:     time.Now,
		snaps:   make(map[string]*Snapshot, len(cfg.Feeds)),
	}
}

// WithClock replaces the wall clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Today is the current calendar day in the configured time zone.
func (s *Service) Today() model.Date {
	return model.DateOf(s.now().In(s.loc))
}

// Options returns the parse options for a feed.
func (s *Service) Options(feed config.FeedConfig) (availability.Options, error) {
	profile, err := availability.ProfileByName(feed.Flavor)
	if err != nil {
		return availability.Options{}, err
	}
	return availability.Options{
		Profile:      profile,
		HorizonDays:  s.cfg.HorizonDays,
		BackfillDays: s.cfg.BackfillDays,
		Location:     s.loc,
		Trace:        appLog.Debug,
	}, nil
}

// RefreshAll refreshes every configured feed and joins their errors.
func (s *Service) RefreshAll(ctx context.Context) error {
	start := s.now()
	var errs []error
	for _, f := range s.cfg.Feeds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.Refresh(ctx, f.ID); err != nil {
			errs = append(errs, err)
		}
	}
	appLog.Info("feeds refreshed",
		"feeds", len(s.cfg.Feeds),
		"failed", len(errs),
		"elapsed", s.now().Sub(start).Round(time.Millisecond).String(),
	)
	return errors.Join(errs...)
}

// Refresh fetches and parses one feed.
func (s *Service) Refresh(ctx context.Context, id string) error {
	feed, ok := s.cfg.Feed(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeed, id)
	}
	opts, err := s.Options(feed)
	if err != nil {
		return fmt.Errorf("feed %s: %w", id, err)
	}

	res, fetchErr := s.fetcher.FetchOne(ctx, ics.Source{ID: feed.ID, URL: feed.URL})
	today := s.Today()

	s.mu.Lock()
	defer s.mu.Unlock()

	if fetchErr != nil {
		fetchErr = fmt.Errorf("feed %s: %w", id, fetchErr)
		if prev, ok := s.snaps[id]; ok && len(prev.Body) > 0 {
			prev.Err = fetchErr
			appLog.Warn("feed refresh failed; keeping last snapshot", "id", id, "fetched_at", prev.FetchedAt.Format(time.RFC3339))
			return fetchErr
		}
		failed := availability.Failed(today)
		failed.Flavor = opts.Profile.Name
		s.snaps[id] = &Snapshot{Feed: feed, Result: failed, Err: fetchErr}
		return fetchErr
	}

	result := availability.Parse(string(res.Body), today, opts)
	if !result.Success {
		parseErr := fmt.Errorf("feed %s: %w", id, ics.ErrNotCalendar)
		if prev, ok := s.snaps[id]; ok && len(prev.Body) > 0 {
			prev.Err = parseErr
			appLog.Warn("feed body is not a calendar; keeping last snapshot", "id", id, "fetched_at", prev.FetchedAt.Format(time.RFC3339))
			return parseErr
		}
	}
	snap := &Snapshot{
		Feed:      feed,
		Result:    result,
		Body:      res.Body,
		FetchedAt: s.now(),
		FromCache: res.FromCache,
	}
	if !result.Success {
		snap.Body = nil
		snap.Err = fmt.Errorf("feed %s: %w", id, ics.ErrNotCalendar)
	}
	s.snaps[id] = snap

	appLog.Info("feed parsed",
		"id", id,
		"flavor", result.Flavor,
		"success", result.Success,
		"events", result.EventCount,
		"available_days", len(result.AvailableDates),
		"from_cache", res.FromCache,
	)
	return snap.Err
}

// Get returns the snapshot of a feed, re-deriving it from the stored body if
// the calendar day changed since it was parsed. Feeds that were never
// refreshed yield a failed result.
func (s *Service) Get(id string) (Snapshot, error) {
	feed, ok := s.cfg.Feed(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownFeed, id)
	}
	today := s.Today()

	s.mu.RLock()
	snap, ok := s.snaps[id]
	var cur Snapshot
	if ok {
		cur = *snap
	}
	s.mu.RUnlock()

	if !ok {
		failed := availability.Failed(today)
		if p, err := availability.ProfileByName(feed.Flavor); err == nil {
			failed.Flavor = p.Name
		}
		return Snapshot{Feed: feed, Result: failed}, nil
	}
	if cur.Result.Today == today {
		return cur, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap = s.snaps[id]
	if snap.Result.Today != today {
		if len(snap.Body) > 0 {
			opts, err := s.Options(feed)
			if err != nil {
				return Snapshot{}, err
			}
			snap.Result = availability.Parse(string(snap.Body), today, opts)
			appLog.Debug("feed re-derived for new day", "id", id, "today", today)
		} else {
			flavor := snap.Result.Flavor
			snap.Result = availability.Failed(today)
			snap.Result.Flavor = flavor
		}
	}
	return *snap, nil
}

// List returns a snapshot per configured feed, in config order.
func (s *Service) List() []Snapshot {
	out := make([]Snapshot, 0, len(s.cfg.Feeds))
	for _, f := range s.cfg.Feeds {
		snap, err := s.Get(f.ID)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// Start schedules RefreshAll on the configured cron spec. The schedule is
// evaluated in the configured time zone.
func (s *Service) Start(ctx context.Context) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron != nil {
		return errors.New("feeds: scheduler already started")
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.cfg.RefreshCron, func() {
		if err := s.RefreshAll(ctx); err != nil {
			appLog.Error("scheduled refresh had failures", err)
		}
	}); err != nil {
		return fmt.Errorf("feeds: refresh schedule %q: %w", s.cfg.RefreshCron, err)
	}
	c.Start()
	s.cron = c

	appLog.Info("refresh scheduler started", "schedule", s.cfg.RefreshCron, "timezone", s.loc.String())
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish or ctx
// to expire.
func (s *Service) Stop(ctx context.Context) {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		appLog.Warn("scheduler stop timed out")
	}
}
