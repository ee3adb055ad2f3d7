package opsday

import (
	"testing"
	"time"
)

func toronto(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestDayStart(t *testing.T) {
	loc := toronto(t)

	tests := []struct {
		name string
		now  string // UTC RFC3339
		want string // local
	}{
		{"midday", "2025-02-25T17:00:00Z", "2025-02-25T03:00:00-05:00"},
		{"just after local 03:00", "2025-02-25T08:01:00Z", "2025-02-25T03:00:00-05:00"},
		{"before local 03:00 belongs to previous day", "2025-02-25T06:30:00Z", "2025-02-24T03:00:00-05:00"},
		{"summer offset", "2025-07-10T12:00:00Z", "2025-07-10T03:00:00-04:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now, _ := time.Parse(time.RFC3339, tt.now)
			got := DayStart(now, loc)
			want, _ := time.Parse(time.RFC3339, tt.want)
			if !got.Equal(want) {
				t.Errorf("DayStart(%s) = %s, want %s", tt.now, got.Format(time.RFC3339), tt.want)
			}
		})
	}
}

func TestDayEnd(t *testing.T) {
	loc := toronto(t)
	now, _ := time.Parse(time.RFC3339, "2025-02-25T17:00:00Z")
	end := DayEnd(DayStart(now, loc))

	lt := end.In(loc)
	if lt.Hour() != 2 || lt.Minute() != 59 || lt.Second() != 59 {
		t.Errorf("DayEnd local clock = %s, want 02:59:59", lt.Format("15:04:05"))
	}
	if lt.Day() != 26 {
		t.Errorf("DayEnd local day = %d, want 26", lt.Day())
	}
}

func TestDayEndAcrossDST(t *testing.T) {
	loc := toronto(t)
	// Spring-forward night: 2025-03-09 02:00 EST jumps to 03:00 EDT.
	now, _ := time.Parse(time.RFC3339, "2025-03-08T17:00:00Z")
	start := DayStart(now, loc)
	end := DayEnd(start)

	// The ops day is one hour short on the wall clock but must still end
	// before the next day's 03:00 anchor.
	next := DayStart(end.Add(time.Minute), loc)
	if !next.After(end) {
		t.Errorf("next DayStart %s not after end %s", next, end)
	}
	if got := end.Sub(start); got >= 24*time.Hour {
		t.Errorf("spring-forward ops day lasted %s, want < 24h", got)
	}
}

func TestQueryWindowDefaultLookbackCap(t *testing.T) {
	loc := toronto(t)
	now, _ := time.Parse(time.RFC3339, "2025-02-25T17:00:00Z") // 12:00 local

	from, to, err := QueryWindow(now, loc, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if want := now.Add(-time.Hour); !from.Equal(want) {
		t.Errorf("from = %s, want now-1h = %s", from, want)
	}
	if lt := to.In(loc); lt.Hour() != 2 || lt.Minute() != 59 {
		t.Errorf("to local = %s, want ops-day end", lt.Format("15:04"))
	}
}

func TestQueryWindowEarlyMorningNoCap(t *testing.T) {
	loc := toronto(t)
	// 04:00 local: now-1h is before the 03:00 anchor, so no capping occurs.
	now, _ := time.Parse(time.RFC3339, "2025-02-25T09:00:00Z")

	from, _, err := QueryWindow(now, loc, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if lt := from.In(loc); lt.Hour() != 3 || lt.Minute() != 0 {
		t.Errorf("from local = %s, want 03:00", lt.Format("15:04"))
	}
}

func TestQueryWindowCustomTimes(t *testing.T) {
	loc := toronto(t)
	now, _ := time.Parse(time.RFC3339, "2025-02-25T17:00:00Z")

	from, to, err := QueryWindow(now, loc, Query{FromTime: "06:00", ToTime: "18:30"})
	if err != nil {
		t.Fatal(err)
	}
	if lt := from.In(loc); lt.Hour() != 6 || lt.Minute() != 0 || lt.Day() != 25 {
		t.Errorf("from local = %s", lt.Format("2006-01-02 15:04"))
	}
	lt := to.In(loc)
	if lt.Hour() != 18 || lt.Minute() != 30 || lt.Second() != 59 {
		t.Errorf("to local = %s, want 18:30:59", lt.Format("15:04:05"))
	}
}

func TestQueryWindowBeforeThreeBelongsToNextCalendarDay(t *testing.T) {
	loc := toronto(t)
	now, _ := time.Parse(time.RFC3339, "2025-02-25T17:00:00Z")

	_, to, err := QueryWindow(now, loc, Query{ToTime: "01:30"})
	if err != nil {
		t.Fatal(err)
	}
	lt := to.In(loc)
	if lt.Day() != 26 || lt.Hour() != 1 || lt.Minute() != 30 {
		t.Errorf("to local = %s, want 2025-02-26 01:30", lt.Format("2006-01-02 15:04"))
	}
}

func TestQueryWindowNextOpsDay(t *testing.T) {
	loc := toronto(t)
	now, _ := time.Parse(time.RFC3339, "2025-02-25T17:00:00Z")

	from, to, err := QueryWindow(now, loc, Query{OpsDay: "next"})
	if err != nil {
		t.Fatal(err)
	}
	if lt := from.In(loc); lt.Day() != 26 || lt.Hour() != 3 {
		t.Errorf("from local = %s, want 2025-02-26 03:00", lt.Format("2006-01-02 15:04"))
	}
	if lt := to.In(loc); lt.Day() != 27 || lt.Hour() != 2 {
		t.Errorf("to local = %s, want 2025-02-27 02:59", lt.Format("2006-01-02 15:04"))
	}
}

func TestQueryWindowBadClock(t *testing.T) {
	loc := toronto(t)
	now := time.Now()
	for _, bad := range []string{"7", "25:00", "12:61", "ab:cd"} {
		if _, _, err := QueryWindow(now, loc, Query{FromTime: bad}); err == nil {
			t.Errorf("QueryWindow(from=%q) expected error", bad)
		}
	}
}

func TestFullSyncWindow(t *testing.T) {
	loc := toronto(t)

	tests := []struct {
		name    string
		now     string
		wantEnd int // local day-of-month of the window end
	}{
		{"morning stays on current day", "2025-02-25T14:00:00Z", 26},   // 09:00 local
		{"afternoon preloads tomorrow", "2025-02-25T17:30:00Z", 27},    // 12:30 local
		{"small hours preload tomorrow", "2025-02-26T06:00:00Z", 27},   // 01:00 local, ops day 25th
		{"late evening preloads tomorrow", "2025-02-26T03:00:00Z", 27}, // 22:00 local on the 25th
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now, _ := time.Parse(time.RFC3339, tt.now)
			from, to := FullSyncWindow(now, loc)
			if lt := from.In(loc); lt.Hour() != 3 {
				t.Errorf("from local hour = %d, want 3 (no lookback cap)", lt.Hour())
			}
			if lt := to.In(loc); lt.Day() != tt.wantEnd {
				t.Errorf("to local day = %d, want %d", lt.Day(), tt.wantEnd)
			}
		})
	}
}

func TestKey(t *testing.T) {
	loc := toronto(t)
	sched, _ := time.Parse(time.RFC3339, "2025-02-25T11:30:00Z")

	got := Key("ARR", "WS 816", sched, loc)
	want := "2025-02-25|ARR|WS 816|06:30"
	if got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}
}

func TestKeyStableAcrossRepeatedProjection(t *testing.T) {
	loc := toronto(t)
	sched, _ := time.Parse(time.RFC3339, "2025-07-01T23:45:00Z")

	first := Key("DEP", "AC 123", sched, loc)
	for i := 0; i < 5; i++ {
		if got := Key("DEP", "AC 123", sched, loc); got != first {
			t.Fatalf("key drifted: %q != %q", got, first)
		}
	}
}

func TestLocalRoundTrip(t *testing.T) {
	loc := toronto(t)

	// Local wall-clock tuples must survive a local -> UTC -> local round
	// trip, including either side of both DST transitions.
	tuples := []struct {
		y, mo, d, h, mi int
	}{
		{2025, 2, 25, 6, 30},
		{2025, 3, 9, 1, 59},  // last minute before spring-forward
		{2025, 3, 9, 3, 0},   // first minute after
		{2025, 11, 2, 0, 59}, // before fall-back
		{2025, 11, 2, 2, 0},  // after
		{2025, 7, 1, 12, 0},
	}

	for _, tu := range tuples {
		local := time.Date(tu.y, time.Month(tu.mo), tu.d, tu.h, tu.mi, 0, 0, loc)
		back := local.UTC().In(loc)
		if back.Year() != tu.y || int(back.Month()) != tu.mo || back.Day() != tu.d ||
			back.Hour() != tu.h || back.Minute() != tu.mi {
			t.Errorf("round trip %v -> %s", tu, back.Format("2006-01-02 15:04"))
		}
	}
}
