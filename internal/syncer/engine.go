// Package syncer reconciles the provider's flight board against the live
// flights table. Each run inserts newly seen flights, diffs the rest against
// their stored rows, and records gate, zone and time changes so the boards
// can surface and acknowledge them.
package syncer

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"paxassist/internal/fids"
	"paxassist/internal/opsday"
	"paxassist/internal/store"
	"paxassist/internal/zone"
)

// timeChangeMin is the estimated-time drift, in minutes, below which a change
// is noise and not flagged.
const timeChangeMin = 20

// Publisher receives change notifications for rows the sync run flagged.
type Publisher interface {
	FlightChanged(ctx context.Context, f store.Flight)
}

// Fetcher is the provider side of a sync run; *fids.Client implements it.
type Fetcher interface {
	FetchWindow(ctx context.Context, from, to time.Time) (*fids.Result, error)
}

// Stats summarizes one sync run.
type Stats struct {
	Inserted int
	Updated  int
	Changed  int // updated rows with at least one newly flagged change
	Skipped  int // provider records dropped as unusable
}

// Engine runs the reconciliation.
type Engine struct {
	store store.Store
	loc   *time.Location
	pub   Publisher

	now func() time.Time
}

// New builds an engine. pub may be nil when no broker is configured.
func New(st store.Store, loc *time.Location, pub Publisher) *Engine {
	return &Engine{store: st, loc: loc, pub: pub, now: time.Now}
}

// SyncFromProvider fetches the full sync window from the provider and runs
// one reconciliation over it.
func (e *Engine) SyncFromProvider(ctx context.Context, f Fetcher) (Stats, error) {
	from, to := opsday.FullSyncWindow(e.now(), e.loc)
	res, err := f.FetchWindow(ctx, from, to)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch window: %w", err)
	}
	return e.Run(ctx, res)
}

// Run reconciles one provider result against the store. Records without a
// flight number or with an unparseable scheduled time are skipped; everything
// else is inserted or diffed. Writes go out in batches.
func (e *Engine) Run(ctx context.Context, res *fids.Result) (Stats, error) {
	var stats Stats

	existing, err := e.store.AllFlights(ctx)
	if err != nil {
		return stats, fmt.Errorf("load flights: %w", err)
	}
	byKey := make(map[string]store.Flight, len(existing))
	for _, f := range existing {
		byKey[f.Key] = f
	}

	overrides, err := e.store.Overrides(ctx)
	if err != nil {
		return stats, fmt.Errorf("load overrides: %w", err)
	}
	usAirports, err := e.store.USAirports(ctx)
	if err != nil {
		return stats, fmt.Errorf("load us airports: %w", err)
	}

	now := e.now().UTC()
	nowISO := now.Format(time.RFC3339)

	var inserts, updates []store.Flight
	var changed []store.Flight

	process := func(typ string, recs []fids.Record) {
		for _, rec := range recs {
			if rec.Flight == "" {
				stats.Skipped++
				continue
			}
			sched, err := fids.ParseStamp(rec.Sched)
			if err != nil {
				log.Printf("sync: skipping %s %s: %v", typ, rec.Flight, err)
				stats.Skipped++
				continue
			}
			est, err := fids.ParseStamp(rec.Est)
			if err != nil {
				est = sched
			}

			key := opsday.Key(typ, rec.Flight, sched, e.loc)
			z := zone.Classify(zone.Input{
				Type:      typ,
				Gate:      rec.Gate,
				Terminal:  rec.Terminal,
				Region:    zone.Region(rec.OriginDest, usAirports),
				Overrides: overrides,
			})

			old, ok := byKey[key]
			if !ok {
				inserts = append(inserts, store.Flight{
					Key:          key,
					OpsDate:      opsday.Date(sched, e.loc),
					Type:         typ,
					Flight:       rec.Flight,
					OriginDest:   rec.OriginDest,
					Gate:         rec.Gate,
					Sched:        sched.Format(time.RFC3339),
					TimeEst:      est.Format(time.RFC3339),
					ZoneCurrent:  z,
					ZonePrevious: z,
					CreatedAt:    nowISO,
					UpdatedAt:    nowISO,
				})
				continue
			}

			f, anyNew := diff(old, rec, z, est, nowISO)
			f.UpdatedAt = nowISO
			updates = append(updates, f)
			if anyNew {
				changed = append(changed, f)
			}
		}
	}

	process(store.TypeArrival, res.Arrivals)
	process(store.TypeDeparture, res.Departures)

	if err := e.store.InsertFlights(ctx, inserts); err != nil {
		return stats, fmt.Errorf("insert flights: %w", err)
	}
	if err := e.store.UpdateSynced(ctx, updates); err != nil {
		return stats, fmt.Errorf("update flights: %w", err)
	}

	stats.Inserted = len(inserts)
	stats.Updated = len(updates)
	stats.Changed = len(changed)

	if e.pub != nil {
		for _, f := range changed {
			e.pub.FlightChanged(ctx, f)
		}
	}
	return stats, nil
}

// diff applies one provider record to a stored row. It runs the change
// detectors in order (gate, zone, time), settles the gate-change destination
// zone after any zone move, resets the board ACKs when something new fired,
// and rebuilds the alert line. Manual columns and zone_previous pass through
// untouched. Returns the updated row and whether a new change fired.
func diff(f store.Flight, rec fids.Record, newZone string, newEst time.Time, nowISO string) (store.Flight, bool) {
	anyNew := false

	oldGate := zone.NormalizeGate(f.Gate)
	recGate := zone.NormalizeGate(rec.Gate)
	if oldGate != "" && recGate != "" && oldGate != recGate {
		f.GateChanged = true
		f.GateChgFromGate = f.Gate
		f.GateChgToGate = rec.Gate
		f.GateChgFromZone = f.ZoneCurrent
		f.GateChgAt = nowISO
		anyNew = true
	}

	if newZone != "" && f.ZoneCurrent != "" && newZone != f.ZoneCurrent {
		// Carry-over slot is one deep: the displaced zone only lands in
		// zone_prev when the slot is empty or its board already ACKed.
		if f.ZonePrev == "" || f.AckFor(store.BoardForZone(f.ZonePrev)) {
			f.ZonePrev = f.ZoneCurrent
		}
		f.ZoneChanged = true
		f.ZoneChgFrom = f.ZoneCurrent
		f.ZoneChgTo = newZone
		f.ZoneChgAt = nowISO
		f.ZoneCurrent = newZone
		anyNew = true
	}

	if f.GateChanged {
		f.GateChgToZone = f.ZoneCurrent
	}

	newEstISO := newEst.Format(time.RFC3339)
	if oldEst, err := time.Parse(time.RFC3339, f.TimeEst); err == nil {
		delta := int(math.Round(newEst.Sub(oldEst).Minutes()))
		if delta >= timeChangeMin || delta <= -timeChangeMin {
			f.TimeChanged = true
			f.TimePrevEst = f.TimeEst
			f.TimeDeltaMin = delta
			f.TimeChgAt = nowISO
			anyNew = true
		}
	}

	f.Flight = rec.Flight
	f.OriginDest = rec.OriginDest
	f.Gate = rec.Gate
	f.TimeEst = newEstISO

	if anyNew {
		f.ClearAcks()
	}
	f.AlertText = BuildAlert(&f)
	return f, anyNew
}
