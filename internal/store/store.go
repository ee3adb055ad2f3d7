// Package store provides persistent storage for flights, users, gate
// overrides, US airport codes and archived flights. Two backends implement
// the same interface: SQLite (default) and PostgreSQL.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// batchSize caps the number of rows per write statement batch.
const batchSize = 100

// Store is the persistence interface shared by both backends.
type Store interface {
	Close() error
	Backend() string

	// Flights. Sync-side writes (InsertFlights, UpdateSynced) never touch
	// the manual columns or zone_previous; user-side writes (UpdateFields,
	// ACK setters) never touch FIDS or change-tracking columns.
	FlightsBetween(ctx context.Context, fromUTC, toUTC time.Time) ([]Flight, error)
	AllFlights(ctx context.Context) ([]Flight, error)
	GetFlight(ctx context.Context, key string) (*Flight, error)
	InsertFlights(ctx context.Context, flights []Flight) error
	UpdateSynced(ctx context.Context, flights []Flight) error
	UpdateFields(ctx context.Context, key string, fields map[string]any) error
	SetDispatchAck(ctx context.Context, key string) error
	SetZoneAck(ctx context.Context, key, board string, clearZonePrev bool) error
	DeleteFlights(ctx context.Context, keys []string) error
	FlightCount(ctx context.Context) (int, error)

	// Users.
	GetUser(ctx context.Context, username string) (*User, error)
	UpsertUser(ctx context.Context, u User) error

	// Reference data.
	Overrides(ctx context.Context) (map[string]string, error)
	UpsertOverride(ctx context.Context, gate, zone string) error
	USAirports(ctx context.Context) (map[string]bool, error)
	AddUSAirports(ctx context.Context, codes []string) error

	// Archive.
	ArchiveDates(ctx context.Context) ([]ArchiveDate, error)
	ArchiveRowsForDate(ctx context.Context, date string) ([]ArchiveRow, error)
	DeleteArchiveForDate(ctx context.Context, date string) error
	InsertArchiveRows(ctx context.Context, opsDate string, flights []Flight) error
}

// flightCols is the canonical column order shared by both backends. Scan and
// args helpers below must stay in sync with it.
const flightCols = `key, ops_date, type, flight, origin_dest, gate, sched, time_est,
zone_current, zone_previous, zone_prev,
gate_changed, gate_chg_from_gate, gate_chg_to_gate, gate_chg_from_zone, gate_chg_to_zone, gate_chg_at,
zone_changed, zone_chg_from, zone_chg_to, zone_chg_at,
time_changed, time_prev_est, time_delta_min, time_chg_at,
alert_text,
wchr, wchc, prev_wchr, prev_wchc, comment, assignment, pax_assisted, watchlist, assign_edited_by, assign_edited_at,
dispatch_ack, piera_ack, tb_ack, t1_ack, unassigned_ack, gates_ack,
created_at, updated_at`

const flightColCount = 44

// updatableFields is the whitelist for UpdateFields; everything else belongs
// to the sync engine or the ACK setters.
var updatableFields = map[string]bool{
	"wchr":             true,
	"wchc":             true,
	"prev_wchr":        true,
	"prev_wchc":        true,
	"comment":          true,
	"assignment":       true,
	"pax_assisted":     true,
	"watchlist":        true,
	"assign_edited_by": true,
	"assign_edited_at": true,
}

// boardCols guards ACK column names used in generated SQL.
var boardCols = map[string]bool{
	BoardDispatch:   true,
	BoardPierA:      true,
	BoardTB:         true,
	BoardT1:         true,
	BoardUnassigned: true,
	BoardGates:      true,
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanFlight reads one row in flightCols order. Flag columns are stored as
// 0/1 integers in both backends.
func scanFlight(row rowScanner) (Flight, error) {
	var f Flight
	var gateChanged, zoneChanged, timeChanged int
	var dAck, paAck, tbAck, t1Ack, uAck, gAck int

	err := row.Scan(
		&f.Key, &f.OpsDate, &f.Type, &f.Flight, &f.OriginDest, &f.Gate, &f.Sched, &f.TimeEst,
		&f.ZoneCurrent, &f.ZonePrevious, &f.ZonePrev,
		&gateChanged, &f.GateChgFromGate, &f.GateChgToGate, &f.GateChgFromZone, &f.GateChgToZone, &f.GateChgAt,
		&zoneChanged, &f.ZoneChgFrom, &f.ZoneChgTo, &f.ZoneChgAt,
		&timeChanged, &f.TimePrevEst, &f.TimeDeltaMin, &f.TimeChgAt,
		&f.AlertText,
		&f.Wchr, &f.Wchc, &f.PrevWchr, &f.PrevWchc, &f.Comment, &f.Assignment, &f.PaxAssisted, &f.Watchlist, &f.AssignEditedBy, &f.AssignEditedAt,
		&dAck, &paAck, &tbAck, &t1Ack, &uAck, &gAck,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return Flight{}, err
	}

	f.GateChanged = gateChanged != 0
	f.ZoneChanged = zoneChanged != 0
	f.TimeChanged = timeChanged != 0
	f.DispatchAck = dAck != 0
	f.PierAAck = paAck != 0
	f.TBAck = tbAck != 0
	f.T1Ack = t1Ack != 0
	f.UnassignedAck = uAck != 0
	f.GatesAck = gAck != 0
	return f, nil
}

// flightArgs produces the insert arguments in flightCols order.
func flightArgs(f Flight) []any {
	return []any{
		f.Key, f.OpsDate, f.Type, f.Flight, f.OriginDest, f.Gate, f.Sched, f.TimeEst,
		f.ZoneCurrent, f.ZonePrevious, f.ZonePrev,
		b2i(f.GateChanged), f.GateChgFromGate, f.GateChgToGate, f.GateChgFromZone, f.GateChgToZone, f.GateChgAt,
		b2i(f.ZoneChanged), f.ZoneChgFrom, f.ZoneChgTo, f.ZoneChgAt,
		b2i(f.TimeChanged), f.TimePrevEst, f.TimeDeltaMin, f.TimeChgAt,
		f.AlertText,
		f.Wchr, f.Wchc, f.PrevWchr, f.PrevWchc, f.Comment, f.Assignment, f.PaxAssisted, f.Watchlist, f.AssignEditedBy, f.AssignEditedAt,
		b2i(f.DispatchAck), b2i(f.PierAAck), b2i(f.TBAck), b2i(f.T1Ack), b2i(f.UnassignedAck), b2i(f.GatesAck),
		f.CreatedAt, f.UpdatedAt,
	}
}

// syncArgs produces the arguments for UpdateSynced: FIDS fields, derived
// zones, change tracking and ACK flags, then updated_at and the key.
func syncArgs(f Flight) []any {
	return []any{
		f.Flight, f.OriginDest, f.Gate, f.Sched, f.TimeEst,
		f.ZoneCurrent, f.ZonePrev,
		b2i(f.GateChanged), f.GateChgFromGate, f.GateChgToGate, f.GateChgFromZone, f.GateChgToZone, f.GateChgAt,
		b2i(f.ZoneChanged), f.ZoneChgFrom, f.ZoneChgTo, f.ZoneChgAt,
		b2i(f.TimeChanged), f.TimePrevEst, f.TimeDeltaMin, f.TimeChgAt,
		f.AlertText,
		b2i(f.DispatchAck), b2i(f.PierAAck), b2i(f.TBAck), b2i(f.T1Ack), b2i(f.UnassignedAck), b2i(f.GatesAck),
		f.UpdatedAt, f.Key,
	}
}

// syncCols lists the columns written by UpdateSynced, in syncArgs order.
// zone_previous and the manual columns are absent on purpose.
var syncCols = []string{
	"flight", "origin_dest", "gate", "sched", "time_est",
	"zone_current", "zone_prev",
	"gate_changed", "gate_chg_from_gate", "gate_chg_to_gate", "gate_chg_from_zone", "gate_chg_to_zone", "gate_chg_at",
	"zone_changed", "zone_chg_from", "zone_chg_to", "zone_chg_at",
	"time_changed", "time_prev_est", "time_delta_min", "time_chg_at",
	"alert_text",
	"dispatch_ack", "piera_ack", "tb_ack", "t1_ack", "unassigned_ack", "gates_ack",
	"updated_at",
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// chunkFlights splits a slice into batches of batchSize.
func chunkFlights(flights []Flight) [][]Flight {
	var out [][]Flight
	for len(flights) > batchSize {
		out = append(out, flights[:batchSize])
		flights = flights[batchSize:]
	}
	if len(flights) > 0 {
		out = append(out, flights)
	}
	return out
}

func chunkStrings(keys []string) [][]string {
	var out [][]string
	for len(keys) > batchSize {
		out = append(out, keys[:batchSize])
		keys = keys[batchSize:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}

// utcISO formats an instant the way flight times are stored.
func utcISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
