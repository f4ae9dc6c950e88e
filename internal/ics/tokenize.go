package ics

import (
	"errors"
	"strings"
)

const (
	markerCalendarBegin = "BEGIN:VCALENDAR"
	markerCalendarEnd   = "END:VCALENDAR"
	markerEventBegin    = "BEGIN:VEVENT"
	markerEventEnd      = "END:VEVENT"
)

// ErrNotCalendar is returned when the payload lacks the top-level
// BEGIN:VCALENDAR / END:VCALENDAR pair.
var ErrNotCalendar = errors.New("ics: missing VCALENDAR markers")

// IsCalendar reports whether raw carries both top-level calendar markers.
func IsCalendar(raw string) bool {
	return strings.Contains(raw, markerCalendarBegin) && strings.Contains(raw, markerCalendarEnd)
}

// Tokenize splits a feed into raw VEVENT blocks in feed order. Each block is
// the text strictly between BEGIN:VEVENT and its END:VEVENT. A block whose
// END:VEVENT is missing (before the next BEGIN:VEVENT or end of input) is
// dropped.
func Tokenize(raw string) ([]string, error) {
	if !IsCalendar(raw) {
		return nil, ErrNotCalendar
	}

	blocks := make([]string, 0)
	rest := raw
	for {
		i := strings.Index(rest, markerEventBegin)
		if i < 0 {
			break
		}
		rest = rest[i+len(markerEventBegin):]

		end := strings.Index(rest, markerEventEnd)
		next := strings.Index(rest, markerEventBegin)
		if end < 0 {
			break
		}
		if next >= 0 && next < end {
			// Unterminated block; resume at the next BEGIN.
			rest = rest[next:]
			continue
		}

		blocks = append(blocks, rest[:end])
		rest = rest[end+len(markerEventEnd):]
	}

	return blocks, nil
}
