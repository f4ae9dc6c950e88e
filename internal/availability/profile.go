package availability

import (
	"errors"
	"fmt"
	"strings"

	"staycal/internal/model"
)

// ErrUnknownProfile is returned by ProfileByName for unsupported flavors.
var ErrUnknownProfile = errors.New("availability: unknown feed flavor")

// Field selects which event texts a cue inspects.
type Field uint8

const (
	FieldSummary Field = 1 << iota
	FieldUID
	FieldDescription
)

// Cue maps keywords found in the selected fields to a verdict.
type Cue struct {
	Verdict  model.Verdict
	Fields   Field
	Keywords []string
}

// Profile is the classification table for one feed flavor. Cues are checked
// in order and the first match wins; events matching nothing get Default.
// Unlisted is the verdict of days no event mentions.
type Profile struct {
	Name string
	Cues []Cue
	// Negations are cut out of the text before Available cues are matched,
	// so that "Not available" never reads as "available".
	Negations []string
	Default   model.Verdict
	Unlisted  model.Verdict
}

var (
	bookedKeywords  = []string{"reservation", "booking", "booked", "reserved"}
	blockedKeywords = []string{"unavailable", "not available", "blocked"}
)

// Airbnb is the full heuristic used for Airbnb exports and the default.
var Airbnb = Profile{
	Name: "airbnb",
	Cues: []Cue{
		{Verdict: model.Booked, Fields: FieldSummary | FieldUID, Keywords: bookedKeywords},
		{Verdict: model.Booked, Fields: FieldDescription, Keywords: []string{"reservation"}},
		{Verdict: model.Unavailable, Fields: FieldSummary | FieldUID, Keywords: blockedKeywords},
		{Verdict: model.Available, Fields: FieldSummary | FieldUID | FieldDescription, Keywords: []string{"available"}},
	},
	Negations: []string{"unavailable", "not available"},
	Default:   model.Unavailable,
	Unlisted:  model.Unavailable,
}

// Generic reads blocking cues from the summary only, as plain channel
// managers put nothing meaningful in UID or DESCRIPTION.
var Generic = Profile{
	Name: "generic",
	Cues: []Cue{
		{Verdict: model.Booked, Fields: FieldSummary, Keywords: bookedKeywords},
		{Verdict: model.Unavailable, Fields: FieldSummary, Keywords: blockedKeywords},
		{Verdict: model.Available, Fields: FieldSummary | FieldUID | FieldDescription, Keywords: []string{"available", "_avail_"}},
	},
	Negations: []string{"unavailable", "not available"},
	Default:   model.Unavailable,
	Unlisted:  model.Unavailable,
}

// Nami feeds list only blocks; every event blocks and unmentioned days are free.
var Nami = Profile{
	Name:     "nami",
	Default:  model.Unavailable,
	Unlisted: model.Available,
}

var profiles = map[string]Profile{
	Airbnb.Name:  Airbnb,
	Generic.Name: Generic,
	Nami.Name:    Nami,
}

// ProfileByName returns the profile for a config flavor. Empty means Airbnb.
func ProfileByName(name string) (Profile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Airbnb, nil
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// ProfileNames lists the supported flavors.
func ProfileNames() []string {
	return []string{Airbnb.Name, Generic.Name, Nami.Name}
}

// Classify returns the verdict for ev. It never fails.
func (p Profile) Classify(ev model.CalendarEvent) model.Verdict {
	texts := []struct {
		field Field
		text  string
	}{
		{FieldSummary, strings.ToLower(ev.Summary)},
		{FieldUID, strings.ToLower(ev.UID)},
		{FieldDescription, strings.ToLower(ev.Description)},
	}

	for _, cue := range p.Cues {
		for _, t := range texts {
			if cue.Fields&t.field == 0 || t.text == "" {
				continue
			}
			s := t.text
			if cue.Verdict == model.Available {
				s = stripAll(s, p.Negations)
			}
			if containsAny(s, cue.Keywords) {
				return cue.Verdict
			}
		}
	}
	return p.Default
}

// ClassifyAll classifies events in order.
func ClassifyAll(events []model.CalendarEvent, p Profile) []model.ClassifiedEvent {
	out := make([]model.ClassifiedEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, model.ClassifiedEvent{CalendarEvent: ev, Verdict: p.Classify(ev)})
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func stripAll(s string, words []string) string {
	for _, w := range words {
		s = strings.ReplaceAll(s, w, " ")
	}
	return s
}
