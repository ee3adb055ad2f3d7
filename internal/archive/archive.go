// Package archive moves finished ops days out of the live flights table.
// The nightly job runs shortly after the ops-day rollover and snapshots the
// previous day's rows into the archive table before deleting them.
package archive

import (
	"context"
	"fmt"
	"log"
	"time"

	"paxassist/internal/opsday"
	"paxassist/internal/store"
)

// Run archives the ops day before the one containing now. It selects live
// rows by estimated time within that day's span, replaces any existing
// archive rows for the date, then deletes the live rows. Re-running for the
// same date is safe.
func Run(ctx context.Context, st store.Store, loc *time.Location, now time.Time) (int, error) {
	start := opsday.DayStart(now, loc)
	prevStart := opsday.DayStart(start.Add(-time.Hour), loc)
	prevEnd := opsday.DayEnd(prevStart)
	date := prevStart.Format("2006-01-02")

	rows, err := st.FlightsBetween(ctx, prevStart, prevEnd)
	if err != nil {
		return 0, fmt.Errorf("select %s: %w", date, err)
	}
	if len(rows) == 0 {
		log.Printf("archive: nothing to archive for %s", date)
		return 0, nil
	}

	if err := st.DeleteArchiveForDate(ctx, date); err != nil {
		return 0, fmt.Errorf("clear archive %s: %w", date, err)
	}
	if err := st.InsertArchiveRows(ctx, date, rows); err != nil {
		return 0, fmt.Errorf("archive %s: %w", date, err)
	}

	keys := make([]string, len(rows))
	for i, f := range rows {
		keys[i] = f.Key
	}
	if err := st.DeleteFlights(ctx, keys); err != nil {
		return 0, fmt.Errorf("delete live rows %s: %w", date, err)
	}

	log.Printf("archive: archived %d flights for %s", len(rows), date)
	return len(rows), nil
}
