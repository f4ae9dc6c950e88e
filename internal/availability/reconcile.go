package availability

import (
	"slices"

	"github.com/teambition/rrule-go"

	"staycal/internal/model"
)

// DefaultHorizonDays is the forward window reconciled when none is configured.
const DefaultHorizonDays = 365

// ReconcileConfig describes the window of days to populate.
type ReconcileConfig struct {
	// Today is the reference day; events ending before it are ignored.
	Today model.Date
	// HorizonDays is the number of days from Today to populate.
	HorizonDays int
	// BackfillDays extends the window before Today for display.
	BackfillDays int
	// Unlisted is the verdict of days no event claims.
	Unlisted model.Verdict
}

// Reconciliation is the output of Reconcile.
type Reconciliation struct {
	Days model.DayMap
	// BookingPeriods are the verbatim [start, end) ranges of blocking events.
	BookingPeriods []model.DateRange
	// Past counts events dropped for ending before Today.
	Past int
}

func (c ReconcileConfig) window() (model.Date, int) {
	horizon := c.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	backfill := c.BackfillDays
	if backfill < 0 {
		backfill = 0
	}
	return c.Today.AddDays(-backfill), horizon + backfill
}

// Reconcile folds classified events into a day map covering the configured
// window. Blocking claims beat available claims on the same day, Booked beats
// Unavailable, and unclaimed days take cfg.Unlisted. The result does not
// depend on event order.
func Reconcile(events []model.ClassifiedEvent, cfg ReconcileConfig) Reconciliation {
	start, n := cfg.window()
	end := start.AddDays(n)

	available := make(map[model.Date]struct{})
	blocking := make(map[model.Date]model.Verdict)
	periods := make([]model.DateRange, 0)
	past := 0

	for _, ev := range events {
		if ev.End.Before(cfg.Today) {
			past++
			continue
		}

		if ev.Verdict.Blocking() && ev.Start.Before(ev.End) {
			periods = append(periods, model.DateRange{Start: ev.Start, End: ev.End, Kind: ev.Verdict})
		}

		from, to := maxDate(ev.Start, start), minDate(ev.End, end)
		for _, d := range expandDays(from, to) {
			if !ev.Verdict.Blocking() {
				available[d] = struct{}{}
				continue
			}
			if prev, ok := blocking[d]; !ok || prev != model.Booked {
				blocking[d] = ev.Verdict
			}
		}
	}

	days := model.NewDayMap(start, n, cfg.Unlisted)
	for i := 0; i < n; i++ {
		d := start.AddDays(i)
		if v, ok := blocking[d]; ok {
			days.Set(d, v)
		} else if _, ok := available[d]; ok {
			days.Set(d, model.Available)
		}
	}

	slices.SortFunc(periods, compareRanges)

	return Reconciliation{Days: days, BookingPeriods: periods, Past: past}
}

// expandDays lists the days of [from, to) using a DAILY recurrence anchored
// at noon of from.
func expandDays(from, to model.Date) []model.Date {
	n := from.DaysUntil(to)
	if n <= 0 {
		return nil
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   n,
		Dtstart: from.Time(),
	})
	if err != nil {
		return nil
	}

	occ := r.All()
	days := make([]model.Date, 0, len(occ))
	for _, t := range occ {
		days = append(days, model.DateOf(t))
	}
	return days
}

func compareRanges(a, b model.DateRange) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	if c := a.End.Compare(b.End); c != 0 {
		return c
	}
	return int(a.Kind) - int(b.Kind)
}

func maxDate(a, b model.Date) model.Date {
	if a.Before(b) {
		return b
	}
	return a
}

func minDate(a, b model.Date) model.Date {
	if a.After(b) {
		return b
	}
	return a
}
