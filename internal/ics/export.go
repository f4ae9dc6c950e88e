package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"staycal/internal/model"
)

const productID = "-//staycal//availability export//EN"

// Export renders the blocking ranges of a feed as an iCalendar document that
// channel managers can import. Available ranges are skipped. Each VEVENT is an
// all-day block with a UID that is stable across exports of the same range.
func Export(feedID, name string, ranges []model.DateRange, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, r := range ranges {
		if !r.Kind.Blocking() || !r.Start.Before(r.End) {
			continue
		}
		ev := cal.AddEvent(exportUID(feedID, r))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetAllDayStartAt(r.Start.Time())
		ev.SetAllDayEndAt(r.End.Time())
		ev.SetSummary(exportSummary(r.Kind))
	}

	return cal.Serialize()
}

func exportSummary(v model.Verdict) string {
	if v == model.Booked {
		return "Reserved"
	}
	return "Not available"
}

func exportUID(feedID string, r model.DateRange) string {
	key := feedID + "/" + r.Start.String() + "/" + r.End.String() + "/" + r.Kind.String()
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String() + "@staycal"
}
