package availability

import "staycal/internal/model"

// Compact merges runs of equal verdicts into maximal half-open ranges,
// ascending and non-overlapping.
func Compact(m model.DayMap) []model.DateRange {
	out := make([]model.DateRange, 0)

	var cur model.DateRange
	open := false
	m.Each(func(d model.Date, v model.Verdict) {
		if open && v == cur.Kind {
			cur.End = d.AddDays(1)
			return
		}
		if open {
			out = append(out, cur)
		}
		cur = model.DateRange{Start: d, End: d.AddDays(1), Kind: v}
		open = true
	})
	if open {
		out = append(out, cur)
	}
	return out
}

// Expand turns contiguous ranges back into a day map spanning the first start
// to the last end. Gaps between ranges take Unavailable.
func Expand(ranges []model.DateRange) model.DayMap {
	if len(ranges) == 0 {
		return model.DayMap{}
	}
	start, end := ranges[0].Start, ranges[0].End
	for _, r := range ranges[1:] {
		start = minDate(start, r.Start)
		end = maxDate(end, r.End)
	}

	m := model.NewDayMap(start, start.DaysUntil(end), model.Unavailable)
	for _, r := range ranges {
		for d := r.Start; d.Before(r.End); d = d.AddDays(1) {
			m.Set(d, r.Kind)
		}
	}
	return m
}
