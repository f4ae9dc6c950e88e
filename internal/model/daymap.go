package model

// DayMap assigns exactly one verdict to every day of the contiguous window
// [Start(), End()). It is dense: there are no gaps and no duplicate keys.
type DayMap struct {
	start    Date
	verdicts []Verdict
}

// NewDayMap returns a window of n days starting at start, every day set to fill.
func NewDayMap(start Date, n int, fill Verdict) DayMap {
	if n < 0 {
		n = 0
	}
	v := make([]Verdict, n)
	for i := range v {
		v[i] = fill
	}
	return DayMap{start: start, verdicts: v}
}

func (m DayMap) Start() Date { return m.start }
func (m DayMap) End() Date   { return m.start.AddDays(len(m.verdicts)) }
func (m DayMap) Len() int    { return len(m.verdicts) }

// Contains reports whether d is inside the window.
func (m DayMap) Contains(d Date) bool {
	i := m.start.DaysUntil(d)
	return i >= 0 && i < len(m.verdicts)
}

// Get returns the verdict for d, or false when d is outside the window.
func (m DayMap) Get(d Date) (Verdict, bool) {
	i := m.start.DaysUntil(d)
	if i < 0 || i >= len(m.verdicts) {
		return Unavailable, false
	}
	return m.verdicts[i], true
}

// Set assigns v to d. Days outside the window are ignored.
func (m DayMap) Set(d Date, v Verdict) bool {
	i := m.start.DaysUntil(d)
	if i < 0 || i >= len(m.verdicts) {
		return false
	}
	m.verdicts[i] = v
	return true
}

// Each calls fn for every day in ascending order.
func (m DayMap) Each(fn func(d Date, v Verdict)) {
	for i, v := range m.verdicts {
		fn(m.start.AddDays(i), v)
	}
}

// Equal reports whether both maps cover the same window with the same verdicts.
func (m DayMap) Equal(o DayMap) bool {
	if len(m.verdicts) != len(o.verdicts) {
		return false
	}
	if len(m.verdicts) > 0 && m.start != o.start {
		return false
	}
	for i := range m.verdicts {
		if m.verdicts[i] != o.verdicts[i] {
			return false
		}
	}
	return true
}
