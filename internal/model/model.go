package model

import "fmt"

// CalendarEvent is one VEVENT after field extraction. Start and End are
// calendar days; End is exclusive (the checkout day).
type CalendarEvent struct {
	Start Date
	End   Date

	Summary     string
	UID         string
	Description string
}

// Verdict is the availability classification of an event or a day.
type Verdict int

const (
	Unavailable Verdict = iota
	Available
	Booked
)

// Blocking reports whether the verdict prevents a stay.
func (v Verdict) Blocking() bool {
	return v != Available
}

func (v Verdict) String() string {
	switch v {
	case Available:
		return "available"
	case Booked:
		return "booked"
	default:
		return "unavailable"
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(b []byte) error {
	switch string(b) {
	case "available":
		*v = Available
	case "booked":
		*v = Booked
	case "unavailable", "blocked":
		*v = Unavailable
	default:
		return fmt.Errorf("model: unknown verdict %q", b)
	}
	return nil
}

// ClassifiedEvent pairs an event with its verdict.
type ClassifiedEvent struct {
	CalendarEvent
	Verdict Verdict
}

// DateRange is the half-open day interval [Start, End) tagged with a verdict.
type DateRange struct {
	Start Date    `json:"start"`
	End   Date    `json:"end"`
	Kind  Verdict `json:"kind"`
}

// Contains reports whether d falls inside [Start, End).
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && d.Before(r.End)
}

// Days returns the number of days covered by the range.
func (r DateRange) Days() int {
	if !r.Start.Before(r.End) {
		return 0
	}
	return r.Start.DaysUntil(r.End)
}
