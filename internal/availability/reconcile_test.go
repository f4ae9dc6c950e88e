package availability

import (
	"testing"

	"staycal/internal/model"
)

var d = model.MustDate

func classified(start, end string, v model.Verdict) model.ClassifiedEvent {
	return model.ClassifiedEvent{
		CalendarEvent: model.CalendarEvent{Start: d(start), End: d(end)},
		Verdict:       v,
	}
}

func verdictAt(t *testing.T, m model.DayMap, day string) model.Verdict {
	t.Helper()
	v, ok := m.Get(d(day))
	if !ok {
		t.Fatalf("%s outside window %s..%s", day, m.Start(), m.End())
	}
	return v
}

func TestReconcileHalfOpenCheckout(t *testing.T) {
	rec := Reconcile([]model.ClassifiedEvent{
		classified("2025-04-10", "2025-04-13", model.Booked),
		classified("2025-04-01", "2025-04-30", model.Available),
	}, ReconcileConfig{Today: d("2025-04-01"), HorizonDays: 30})

	for _, day := range []string{"2025-04-10", "2025-04-11", "2025-04-12"} {
		if v := verdictAt(t, rec.Days, day); v != model.Booked {
			t.Errorf("%s = %s, want booked", day, v)
		}
	}
	if v := verdictAt(t, rec.Days, "2025-04-13"); v != model.Available {
		t.Errorf("checkout day 2025-04-13 = %s, want available", v)
	}
	if v := verdictAt(t, rec.Days, "2025-04-09"); v != model.Available {
		t.Errorf("2025-04-09 = %s, want available", v)
	}
}

func TestReconcilePrecedence(t *testing.T) {
	events := []model.ClassifiedEvent{
		classified("2025-05-01", "2025-05-06", model.Available),
		classified("2025-05-03", "2025-05-05", model.Booked),
	}
	cfg := ReconcileConfig{Today: d("2025-05-01"), HorizonDays: 10}

	want := map[string]model.Verdict{
		"2025-05-01": model.Available,
		"2025-05-02": model.Available,
		"2025-05-03": model.Booked,
		"2025-05-04": model.Booked,
		"2025-05-05": model.Available,
		"2025-05-06": model.Unavailable,
	}

	forward := Reconcile(events, cfg)
	backward := Reconcile([]model.ClassifiedEvent{events[1], events[0]}, cfg)
	if !forward.Days.Equal(backward.Days) {
		t.Fatal("result depends on event order")
	}
	for day, v := range want {
		if got := verdictAt(t, forward.Days, day); got != v {
			t.Errorf("%s = %s, want %s", day, got, v)
		}
	}
}

func TestReconcileBookedBeatsUnavailable(t *testing.T) {
	cfg := ReconcileConfig{Today: d("2025-05-01"), HorizonDays: 5}
	a := classified("2025-05-01", "2025-05-03", model.Unavailable)
	b := classified("2025-05-02", "2025-05-04", model.Booked)

	for _, events := range [][]model.ClassifiedEvent{{a, b}, {b, a}} {
		rec := Reconcile(events, cfg)
		if v := verdictAt(t, rec.Days, "2025-05-01"); v != model.Unavailable {
			t.Errorf("05-01 = %s", v)
		}
		if v := verdictAt(t, rec.Days, "2025-05-02"); v != model.Booked {
			t.Errorf("05-02 = %s, want booked", v)
		}
	}
}

func TestReconcileDenyByDefault(t *testing.T) {
	rec := Reconcile(nil, ReconcileConfig{Today: d("2025-01-01")})

	if rec.Days.Len() != DefaultHorizonDays {
		t.Fatalf("window = %d days, want %d", rec.Days.Len(), DefaultHorizonDays)
	}
	rec.Days.Each(func(day model.Date, v model.Verdict) {
		if v != model.Unavailable {
			t.Fatalf("%s = %s, want unavailable", day, v)
		}
	})
	if len(rec.BookingPeriods) != 0 {
		t.Fatalf("booking periods = %+v", rec.BookingPeriods)
	}
}

func TestReconcileUnlistedAvailable(t *testing.T) {
	rec := Reconcile([]model.ClassifiedEvent{
		classified("2025-01-02", "2025-01-03", model.Unavailable),
	}, ReconcileConfig{Today: d("2025-01-01"), HorizonDays: 3, Unlisted: model.Available})

	got := []model.Verdict{
		verdictAt(t, rec.Days, "2025-01-01"),
		verdictAt(t, rec.Days, "2025-01-02"),
		verdictAt(t, rec.Days, "2025-01-03"),
	}
	want := []model.Verdict{model.Available, model.Unavailable, model.Available}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("verdicts = %v, want %v", got, want)
		}
	}
}

func TestReconcilePastEventsAndPeriods(t *testing.T) {
	events := []model.ClassifiedEvent{
		classified("2025-03-01", "2025-03-05", model.Booked),      // past
		classified("2025-07-01", "2025-07-04", model.Unavailable), // later
		classified("2025-05-30", "2025-06-02", model.Booked),      // straddles today
		classified("2025-06-10", "2025-06-20", model.Available),
	}
	rec := Reconcile(events, ReconcileConfig{Today: d("2025-06-01"), HorizonDays: 60})

	if rec.Past != 1 {
		t.Fatalf("past = %d, want 1", rec.Past)
	}
	want := []model.DateRange{
		{Start: d("2025-05-30"), End: d("2025-06-02"), Kind: model.Booked},
		{Start: d("2025-07-01"), End: d("2025-07-04"), Kind: model.Unavailable},
	}
	if len(rec.BookingPeriods) != len(want) {
		t.Fatalf("periods = %+v", rec.BookingPeriods)
	}
	for i := range want {
		if rec.BookingPeriods[i] != want[i] {
			t.Errorf("period[%d] = %+v, want %+v", i, rec.BookingPeriods[i], want[i])
		}
	}
	if v := verdictAt(t, rec.Days, "2025-06-01"); v != model.Booked {
		t.Errorf("06-01 = %s, want booked (straddling event clipped to window)", v)
	}
	if rec.Days.Start() != d("2025-06-01") {
		t.Errorf("window start = %s", rec.Days.Start())
	}
}

func TestReconcileBackfill(t *testing.T) {
	rec := Reconcile([]model.ClassifiedEvent{
		classified("2025-05-20", "2025-06-05", model.Available),
	}, ReconcileConfig{Today: d("2025-06-01"), HorizonDays: 10, BackfillDays: 3})

	if rec.Days.Start() != d("2025-05-29") || rec.Days.Len() != 13 {
		t.Fatalf("window = %s +%d", rec.Days.Start(), rec.Days.Len())
	}
	if v := verdictAt(t, rec.Days, "2025-05-29"); v != model.Available {
		t.Errorf("backfilled day = %s, want available", v)
	}
}

func TestExpandDays(t *testing.T) {
	days := expandDays(d("2024-02-27"), d("2024-03-02"))
	want := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}
	if len(days) != len(want) {
		t.Fatalf("days = %v", days)
	}
	for i := range want {
		if days[i].String() != want[i] {
			t.Errorf("day[%d] = %s, want %s", i, days[i], want[i])
		}
	}
	if got := expandDays(d("2024-03-02"), d("2024-03-02")); len(got) != 0 {
		t.Errorf("empty range expanded to %v", got)
	}
}

func TestReconcileSkipsEmptyBlockingPeriods(t *testing.T) {
	rec := Reconcile([]model.ClassifiedEvent{
		classified("2025-06-05", "2025-06-05", model.Booked),
		classified("2025-06-08", "2025-06-08", model.Unavailable),
		classified("2025-06-01", "2025-06-30", model.Available),
	}, ReconcileConfig{Today: d("2025-06-01"), HorizonDays: 30})

	if len(rec.BookingPeriods) != 0 {
		t.Fatalf("periods = %+v, want none for zero-length events", rec.BookingPeriods)
	}
	if v := verdictAt(t, rec.Days, "2025-06-05"); v != model.Available {
		t.Errorf("06-05 = %s, want available", v)
	}
}
