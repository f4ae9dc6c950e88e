package ics

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"staycal/internal/model"
)

// Property names read by the extractor.
const (
	PropDtStart     = "DTSTART"
	PropDtEnd       = "DTEND"
	PropSummary     = "SUMMARY"
	PropUID         = "UID"
	PropDescription = "DESCRIPTION"
)

var (
	// ErrIncompleteEvent marks a VEVENT whose DTSTART or DTEND is missing or
	// cannot be decoded.
	ErrIncompleteEvent = errors.New("ics: incomplete event")
	// ErrInvalidRange marks a VEVENT whose DTEND is before its DTSTART.
	ErrInvalidRange = errors.New("ics: event ends before it starts")
)

var fieldPatterns = map[string]*regexp.Regexp{
	PropDtStart:     fieldPattern(PropDtStart),
	PropDtEnd:       fieldPattern(PropDtEnd),
	PropSummary:     fieldPattern(PropSummary),
	PropUID:         fieldPattern(PropUID),
	PropDescription: fieldPattern(PropDescription),
}

// fieldPattern matches NAME[;PARAM=...]:value anchored at a line start.
// Group 1 holds the parameter list, group 2 the raw value.
func fieldPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?mi)^` + regexp.QuoteMeta(name) + `((?:;[^:\r\n]*)?):(.*)$`)
}

var unfolder = strings.NewReplacer("\r\n ", "", "\r\n\t", "", "\n ", "", "\n\t", "")

// field is one extracted property value with its raw parameter list.
type field struct {
	value  string
	params string
	found  bool
}

func lookup(block, name string) field {
	re, ok := fieldPatterns[name]
	if !ok {
		re = fieldPattern(name)
	}
	m := re.FindStringSubmatch(block)
	if m == nil {
		return field{}
	}
	return field{
		value:  strings.TrimSpace(m[2]),
		params: strings.ToUpper(m[1]),
		found:  true,
	}
}

func (f field) dateOnly() bool {
	return strings.Contains(f.params, "VALUE=DATE") && !strings.Contains(f.params, "VALUE=DATE-TIME")
}

// ExtractEvent decodes one raw VEVENT block. Only the first occurrence of each
// property is used. Floating date-times are read in loc (UTC if nil).
func ExtractEvent(block string, loc *time.Location) (model.CalendarEvent, error) {
	if loc == nil {
		loc = time.UTC
	}
	block = unfolder.Replace(block)

	var ev model.CalendarEvent

	start := lookup(block, PropDtStart)
	if !start.found || start.value == "" {
		return ev, fmt.Errorf("%w: no %s", ErrIncompleteEvent, PropDtStart)
	}
	end := lookup(block, PropDtEnd)
	if !end.found || end.value == "" {
		return ev, fmt.Errorf("%w: no %s", ErrIncompleteEvent, PropDtEnd)
	}

	var err error
	if ev.Start, err = decodeDate(start.value, start.dateOnly(), loc); err != nil {
		return ev, fmt.Errorf("%w: %s: %v", ErrIncompleteEvent, PropDtStart, err)
	}
	if ev.End, err = decodeDate(end.value, end.dateOnly(), loc); err != nil {
		return ev, fmt.Errorf("%w: %s: %v", ErrIncompleteEvent, PropDtEnd, err)
	}
	if ev.End.Before(ev.Start) {
		return ev, fmt.Errorf("%w: %s > %s", ErrInvalidRange, ev.Start, ev.End)
	}

	ev.Summary = lookup(block, PropSummary).value
	ev.UID = lookup(block, PropUID).value
	ev.Description = lookup(block, PropDescription).value

	return ev, nil
}

// ParseEvents tokenizes raw and extracts every complete event. Events that
// could not be extracted are returned as per-event errors; the only fatal
// error is ErrNotCalendar.
func ParseEvents(raw string, loc *time.Location) ([]model.CalendarEvent, []error, error) {
	blocks, err := Tokenize(raw)
	if err != nil {
		return nil, nil, err
	}

	events := make([]model.CalendarEvent, 0, len(blocks))
	var dropped []error
	for i, b := range blocks {
		ev, err := ExtractEvent(b, loc)
		if err != nil {
			dropped = append(dropped, fmt.Errorf("vevent %d: %w", i, err))
			continue
		}
		events = append(events, ev)
	}
	return events, dropped, nil
}

// genericLayouts are tried when a value is neither YYYYMMDD nor
// YYYYMMDDTHHMMSS[Z].
var genericLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// decodeDate reduces an ICS date or date-time value to its calendar day.
// UTC date-times are converted into loc before the day is taken; floating
// date-times are read as wall time in loc. A truncated time part falls back
// to the date-only reading.
func decodeDate(v string, dateOnly bool, loc *time.Location) (model.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.Date{}, errors.New("empty value")
	}

	if len(v) >= 8 {
		if d, ok := basicDate(v[:8]); ok {
			switch {
			case len(v) == 8 || dateOnly:
				return d, nil
			case v[8] == 'T':
				if strings.HasSuffix(v, "Z") {
					if t, err := time.Parse("20060102T150405Z", v); err == nil {
						return model.DateOf(t.In(loc)), nil
					}
				} else if t, err := time.ParseInLocation("20060102T150405", v, loc); err == nil {
					return model.DateOf(t), nil
				}
				return d, nil
			}
		}
	}

	for _, layout := range genericLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return model.DateOf(t.In(loc)), nil
		}
	}
	return model.Date{}, fmt.Errorf("unrecognized date %q", v)
}

// basicDate parses an 8-digit YYYYMMDD value.
func basicDate(s string) (model.Date, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return model.Date{}, false
		}
	}
	t, err := time.ParseInLocation("20060102", s, time.UTC)
	if err != nil {
		return model.Date{}, false
	}
	return model.DateOf(t), true
}
