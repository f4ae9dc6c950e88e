package ics

import (
	"errors"
	"strings"
	"testing"
)

func TestTokenizeRequiresCalendarMarkers(t *testing.T) {
	cases := []string{
		"",
		"BEGIN:VEVENT\nDTSTART:20250601\nEND:VEVENT",
		"BEGIN:VCALENDAR\nBEGIN:VEVENT\nEND:VEVENT\n",
		"<!DOCTYPE html><html></html>",
	}
	for _, raw := range cases {
		if _, err := Tokenize(raw); !errors.Is(err, ErrNotCalendar) {
			t.Errorf("Tokenize(%q) err = %v, want ErrNotCalendar", raw, err)
		}
	}
}

func TestTokenizeKeepsFeedOrder(t *testing.T) {
	raw := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:first",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:second",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	blocks, err := Tokenize(raw)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if strings.TrimSpace(blocks[0]) != "UID:first" || strings.TrimSpace(blocks[1]) != "UID:second" {
		t.Fatalf("unexpected blocks %q", blocks)
	}
}

func TestTokenizeDropsUnterminatedBlocks(t *testing.T) {
	raw := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:broken",
		"BEGIN:VEVENT",
		"UID:ok",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:trailing",
		"END:VCALENDAR",
	}, "\n")

	blocks, err := Tokenize(raw)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(blocks) != 1 || strings.TrimSpace(blocks[0]) != "UID:ok" {
		t.Fatalf("blocks = %q, want only the terminated one", blocks)
	}
}

func TestTokenizeEmptyCalendar(t *testing.T) {
	blocks, err := Tokenize("BEGIN:VCALENDAR\nVERSION:2.0\nEND:VCALENDAR\n")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if blocks == nil || len(blocks) != 0 {
		t.Fatalf("blocks = %#v, want empty non-nil slice", blocks)
	}
}
