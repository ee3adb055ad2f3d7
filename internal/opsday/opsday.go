// Package opsday computes the airport's operational day and the time windows
// derived from it. An ops day runs from 03:00 local on day D through
// 02:59:59.999 local on D+1; everything user-facing is windowed in the
// airport timezone while storage stays in UTC.
package opsday

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone is used when no timezone is configured.
const DefaultTimezone = "America/Toronto"

const startHour = 3

// DayStart returns the 03:00 local anchor of the ops day containing now.
// Instants before 03:00 local belong to the previous ops day.
func DayStart(now time.Time, loc *time.Location) time.Time {
	lt := now.In(loc)
	y, m, d := lt.Date()
	if lt.Hour() < startHour {
		d--
	}
	return time.Date(y, m, d, startHour, 0, 0, 0, loc)
}

// DayEnd returns the last instant of the ops day starting at start,
// 02:59:59.999 local on most days. It is anchored one millisecond before the
// next day's 03:00 start so DST transitions cannot open a gap or an overlap
// between consecutive ops days.
func DayEnd(start time.Time) time.Time {
	return nextDayStart(start).Add(-time.Millisecond)
}

// Date returns the YYYY-MM-DD local date of the ops day containing now.
func Date(now time.Time, loc *time.Location) string {
	return DayStart(now, loc).Format("2006-01-02")
}

// Query selects a read window relative to the current ops day.
type Query struct {
	FromTime string // "HH:MM" local, optional
	ToTime   string // "HH:MM" local, optional
	OpsDay   string // "next" shifts the base ops day forward one day
}

// QueryWindow resolves a client query into a UTC-comparable [from, to] window.
//
// The default window is the whole ops day, with the start capped to one hour
// ago so boards open on what is current; the cap is skipped when the caller
// asks for an explicit FromTime or for the next ops day. HH:MM values before
// 03:00 land on the next calendar day, still inside the same ops day.
func QueryWindow(now time.Time, loc *time.Location, q Query) (time.Time, time.Time, error) {
	base := DayStart(now, loc)
	if q.OpsDay == "next" {
		base = nextDayStart(base)
	}

	from := base
	if q.FromTime != "" {
		t, err := atClock(base, q.FromTime)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	} else if q.OpsDay != "next" {
		if cap := now.Add(-time.Hour); cap.After(from) {
			from = cap
		}
	}

	to := DayEnd(base)
	if q.ToTime != "" {
		t, err := atClock(base, q.ToTime)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t.Add(59*time.Second + 999*time.Millisecond)
	}

	return from, to, nil
}

// FullSyncWindow returns the window used by FIDS sync and archive: the whole
// current ops day with no lookback cap, extended through the following ops
// day's end from local noon onward (pre-loading tomorrow).
func FullSyncWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	start := DayStart(now, loc)
	end := DayEnd(start)
	h := now.In(loc).Hour()
	if h >= 12 || h < startHour {
		end = DayEnd(nextDayStart(start))
	}
	return start, end
}

// Key builds the immutable flight key from the scheduled UTC instant
// projected into the airport zone: "YYYY-MM-DD|TYPE|FLIGHT|HH:mm".
func Key(typ, flight string, schedUTC time.Time, loc *time.Location) string {
	lt := schedUTC.In(loc)
	return fmt.Sprintf("%s|%s|%s|%s", lt.Format("2006-01-02"), typ, flight, lt.Format("15:04"))
}

// nextDayStart advances an ops-day start by one calendar day, staying on the
// 03:00 local anchor across DST transitions.
func nextDayStart(start time.Time) time.Time {
	y, m, d := start.Date()
	return time.Date(y, m, d+1, startHour, 0, 0, 0, start.Location())
}

// atClock places an "HH:MM" local wall clock on the ops day starting at base.
// Times before 03:00 belong to the next calendar day of the same ops day.
func atClock(base time.Time, hhmm string) (time.Time, error) {
	h, min, err := parseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := base.Date()
	if h < startHour {
		d++
	}
	return time.Date(y, m, d, h, min, 0, 0, base.Location()), nil
}

func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return h, m, nil
}
