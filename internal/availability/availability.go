// Package availability turns a rental iCalendar feed into per-day
// availability and answers booking queries against it.
//
// The pipeline is pure: Parse reads nothing but its arguments, so results are
// deterministic for a given feed and reference day and safe to compute
// concurrently.
package availability

import (
	"errors"
	"sort"
	"time"

	"staycal/internal/ics"
	"staycal/internal/model"
)

// TraceFunc receives optional structured progress events. It matches the
// signature of log.Debug.
type TraceFunc func(msg string, kv ...any)

// Options tune Parse. The zero value parses an Airbnb-flavored feed over
// DefaultHorizonDays with floating times read as UTC.
type Options struct {
	Profile      Profile
	HorizonDays  int
	BackfillDays int
	// Location is used for floating date-times and for converting UTC
	// date-times to calendar days.
	Location *time.Location
	Trace    TraceFunc
}

func (o Options) trace(msg string, kv ...any) {
	if o.Trace != nil {
		o.Trace(msg, kv...)
	}
}

// Result is the structured availability of one feed.
type Result struct {
	Success bool   `json:"success"`
	Flavor  string `json:"flavor,omitempty"`

	Today        model.Date `json:"today"`
	HorizonStart model.Date `json:"horizonStart"`
	HorizonEnd   model.Date `json:"horizonEnd"`

	AvailableDates   []model.Date      `json:"availableDates"`
	UnavailableDates []model.Date      `json:"unavailableDates"`
	BookingPeriods   []model.DateRange `json:"bookingPeriods"`
	// Ranges is the compacted day map: every day of the window exactly once.
	Ranges []model.DateRange `json:"ranges"`

	EventCount int `json:"eventCount"`
	Discarded  int `json:"discarded"`
}

// Failed returns the result shape used when there is no feed to read.
func Failed(today model.Date) Result {
	return Result{
		Today:            today,
		AvailableDates:   []model.Date{},
		UnavailableDates: []model.Date{},
		BookingPeriods:   []model.DateRange{},
		Ranges:           []model.DateRange{},
	}
}

// Parse runs tokenize, extract, classify, reconcile and compact over raw.
// A payload without VCALENDAR markers yields Success=false and empty
// collections; malformed events are skipped.
func Parse(raw string, today model.Date, opts Options) Result {
	profile := opts.Profile
	if profile.Name == "" {
		profile = Airbnb
	}

	events, dropped, err := ics.ParseEvents(raw, opts.Location)
	if err != nil {
		if errors.Is(err, ics.ErrNotCalendar) {
			opts.trace("availability: not a calendar", "bytes", len(raw))
		}
		res := Failed(today)
		res.Flavor = profile.Name
		return res
	}
	for _, e := range dropped {
		opts.trace("availability: event dropped", "reason", e.Error())
	}

	classified := ClassifyAll(events, profile)
	rec := Reconcile(classified, ReconcileConfig{
		Today:        today,
		HorizonDays:  opts.HorizonDays,
		BackfillDays: opts.BackfillDays,
		Unlisted:     profile.Unlisted,
	})

	res := Result{
		Success:          true,
		Flavor:           profile.Name,
		Today:            today,
		HorizonStart:     rec.Days.Start(),
		HorizonEnd:       rec.Days.End(),
		AvailableDates:   make([]model.Date, 0),
		UnavailableDates: make([]model.Date, 0),
		BookingPeriods:   rec.BookingPeriods,
		Ranges:           Compact(rec.Days),
		EventCount:       len(events),
		Discarded:        len(dropped),
	}
	rec.Days.Each(func(d model.Date, v model.Verdict) {
		if v.Blocking() {
			res.UnavailableDates = append(res.UnavailableDates, d)
		} else {
			res.AvailableDates = append(res.AvailableDates, d)
		}
	})

	opts.trace("availability: parsed",
		"flavor", profile.Name,
		"today", today,
		"events", len(events),
		"dropped", len(dropped),
		"past", rec.Past,
		"available_days", len(res.AvailableDates),
		"unavailable_days", len(res.UnavailableDates),
		"ranges", len(res.Ranges),
	)
	return res
}

// rangeFor returns the compacted range containing d.
func (r Result) rangeFor(d model.Date) (model.DateRange, bool) {
	i := sort.Search(len(r.Ranges), func(i int) bool {
		return d.Before(r.Ranges[i].End)
	})
	if i < len(r.Ranges) && r.Ranges[i].Contains(d) {
		return r.Ranges[i], true
	}
	return model.DateRange{}, false
}

// IsBlocked reports whether d cannot be booked. Days before Today are always
// blocked, as is any day the result does not positively know to be available
// (outside the window, or every day of a failed result).
func (r Result) IsBlocked(d model.Date) bool {
	if d.Before(r.Today) {
		return true
	}
	rg, ok := r.rangeFor(d)
	if !ok {
		return true
	}
	return rg.Kind.Blocking()
}

// HasBlockedDateBetween reports whether any day strictly between start and
// end is blocked. The boundary days are the stay's check-in and check-out
// and are not inspected.
func (r Result) HasBlockedDateBetween(start, end model.Date) bool {
	if end.Before(start) {
		start, end = end, start
	}
	for d := start.AddDays(1); d.Before(end); d = d.AddDays(1) {
		if r.IsBlocked(d) {
			return true
		}
	}
	return false
}

// CanBook reports whether a stay from checkin to checkout is possible: the
// check-in night is free and no blocked night lies in between.
func (r Result) CanBook(checkin, checkout model.Date) bool {
	if !checkin.Before(checkout) {
		return false
	}
	return !r.IsBlocked(checkin) && !r.HasBlockedDateBetween(checkin, checkout)
}

// Days re-expands Ranges into a day map.
func (r Result) Days() model.DayMap {
	return Expand(r.Ranges)
}
