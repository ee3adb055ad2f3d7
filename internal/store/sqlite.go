package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteSchema defines the five tables. Flag columns are 0/1 integers; all
// timestamps are UTC ISO-8601 strings.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS flights (
	key                TEXT PRIMARY KEY,
	ops_date           TEXT NOT NULL,
	type               TEXT NOT NULL,
	flight             TEXT NOT NULL,
	origin_dest        TEXT NOT NULL DEFAULT '',
	gate               TEXT NOT NULL DEFAULT '',
	sched              TEXT NOT NULL,
	time_est           TEXT NOT NULL,
	zone_current       TEXT NOT NULL DEFAULT '',
	zone_previous      TEXT NOT NULL DEFAULT '',
	zone_prev          TEXT NOT NULL DEFAULT '',
	gate_changed       INTEGER NOT NULL DEFAULT 0,
	gate_chg_from_gate TEXT NOT NULL DEFAULT '',
	gate_chg_to_gate   TEXT NOT NULL DEFAULT '',
	gate_chg_from_zone TEXT NOT NULL DEFAULT '',
	gate_chg_to_zone   TEXT NOT NULL DEFAULT '',
	gate_chg_at        TEXT NOT NULL DEFAULT '',
	zone_changed       INTEGER NOT NULL DEFAULT 0,
	zone_chg_from      TEXT NOT NULL DEFAULT '',
	zone_chg_to        TEXT NOT NULL DEFAULT '',
	zone_chg_at        TEXT NOT NULL DEFAULT '',
	time_changed       INTEGER NOT NULL DEFAULT 0,
	time_prev_est      TEXT NOT NULL DEFAULT '',
	time_delta_min     INTEGER NOT NULL DEFAULT 0,
	time_chg_at        TEXT NOT NULL DEFAULT '',
	alert_text         TEXT NOT NULL DEFAULT '',
	wchr               INTEGER NOT NULL DEFAULT 0,
	wchc               INTEGER NOT NULL DEFAULT 0,
	prev_wchr          INTEGER NOT NULL DEFAULT 0,
	prev_wchc          INTEGER NOT NULL DEFAULT 0,
	comment            TEXT NOT NULL DEFAULT '',
	assignment         TEXT NOT NULL DEFAULT '',
	pax_assisted       TEXT NOT NULL DEFAULT '',
	watchlist          TEXT NOT NULL DEFAULT '',
	assign_edited_by   TEXT NOT NULL DEFAULT '',
	assign_edited_at   TEXT NOT NULL DEFAULT '',
	dispatch_ack       INTEGER NOT NULL DEFAULT 0,
	piera_ack          INTEGER NOT NULL DEFAULT 0,
	tb_ack             INTEGER NOT NULL DEFAULT 0,
	t1_ack             INTEGER NOT NULL DEFAULT 0,
	unassigned_ack     INTEGER NOT NULL DEFAULT 0,
	gates_ack          INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL DEFAULT '',
	updated_at         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_flights_time_est ON flights(time_est);
CREATE INDEX IF NOT EXISTS idx_flights_zone ON flights(zone_current);
CREATE INDEX IF NOT EXISTS idx_flights_type ON flights(type);

CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	pin      TEXT NOT NULL,
	role     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS zone_overrides (
	gate TEXT PRIMARY KEY,
	zone TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS us_airport_codes (
	code TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS archive (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ops_date    TEXT NOT NULL,
	archived_at TEXT NOT NULL,
	flight_data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archive_ops_date ON archive(ops_date);
`

// SQLiteStore is the default backend, a single-file database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures the schema.
// Use ":memory:" for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A shared in-memory database exists per connection; pin the pool so
	// tests see one schema.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error    { return s.db.Close() }
func (s *SQLiteStore) Backend() string { return "sqlite" }

func (s *SQLiteStore) FlightsBetween(ctx context.Context, fromUTC, toUTC time.Time) ([]Flight, error) {
	query := "SELECT " + flightCols + " FROM flights WHERE time_est BETWEEN ? AND ? ORDER BY time_est ASC"
	rows, err := s.db.QueryContext(ctx, query, utcISO(fromUTC), utcISO(toUTC))
	if err != nil {
		return nil, fmt.Errorf("query flights: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectFlights(rows)
}

func (s *SQLiteStore) AllFlights(ctx context.Context) ([]Flight, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+flightCols+" FROM flights")
	if err != nil {
		return nil, fmt.Errorf("query flights: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectFlights(rows)
}

func (s *SQLiteStore) GetFlight(ctx context.Context, key string) (*Flight, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+flightCols+" FROM flights WHERE key = ?", key)
	f, err := scanFlight(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flight: %w", err)
	}
	return &f, nil
}

func (s *SQLiteStore) InsertFlights(ctx context.Context, flights []Flight) error {
	insert := "INSERT OR IGNORE INTO flights (" + flightCols + ") VALUES (" + qMarks(flightColCount) + ")"
	for _, batch := range chunkFlights(flights) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin insert batch: %w", err)
		}
		for _, f := range batch {
			if _, err := tx.ExecContext(ctx, insert, flightArgs(f)...); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert flight %s: %w", f.Key, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit insert batch: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) UpdateSynced(ctx context.Context, flights []Flight) error {
	var set []string
	for _, c := range syncCols {
		set = append(set, c+" = ?")
	}
	update := "UPDATE flights SET " + strings.Join(set, ", ") + " WHERE key = ?"

	for _, batch := range chunkFlights(flights) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin update batch: %w", err)
		}
		for _, f := range batch {
			if _, err := tx.ExecContext(ctx, update, syncArgs(f)...); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("update flight %s: %w", f.Key, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit update batch: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	set, args, err := buildFieldSet(fields, func(int) string { return "?" })
	if err != nil {
		return err
	}
	args = append(args, key)

	res, err := s.db.ExecContext(ctx, "UPDATE flights SET "+set+" WHERE key = ?", args...)
	if err != nil {
		return fmt.Errorf("update fields: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetDispatchAck(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE flights SET dispatch_ack = 1, updated_at = ? WHERE key = ?", nowISO(), key)
	if err != nil {
		return fmt.Errorf("set dispatch ack: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetZoneAck(ctx context.Context, key, board string, clearZonePrev bool) error {
	if !boardCols[board] {
		return fmt.Errorf("invalid board column: %s", board)
	}
	query := "UPDATE flights SET " + board + " = 1, updated_at = ? WHERE key = ?"
	if clearZonePrev {
		query = "UPDATE flights SET " + board + " = 1, zone_prev = '', updated_at = ? WHERE key = ?"
	}
	res, err := s.db.ExecContext(ctx, query, nowISO(), key)
	if err != nil {
		return fmt.Errorf("set zone ack: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteFlights(ctx context.Context, keys []string) error {
	for _, batch := range chunkStrings(keys) {
		placeholders := qMarks(len(batch))
		args := make([]any, len(batch))
		for i, k := range batch {
			args[i] = k
		}
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM flights WHERE key IN ("+placeholders+")", args...); err != nil {
			return fmt.Errorf("delete flights: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) FlightCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flights").Scan(&n); err != nil {
		return 0, fmt.Errorf("count flights: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		"SELECT username, pin, role FROM users WHERE username = ?", username).
		Scan(&u.Username, &u.Pin, &u.Role)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, pin, role) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET pin = excluded.pin, role = excluded.role
	`, u.Username, u.Pin, u.Role)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Overrides(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT gate, zone FROM zone_overrides")
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var gate, zone string
		if err := rows.Scan(&gate, &zone); err != nil {
			return nil, err
		}
		out[gate] = zone
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertOverride(ctx context.Context, gate, zone string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zone_overrides (gate, zone) VALUES (?, ?)
		ON CONFLICT(gate) DO UPDATE SET zone = excluded.zone
	`, gate, zone)
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

func (s *SQLiteStore) USAirports(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT code FROM us_airport_codes")
	if err != nil {
		return nil, fmt.Errorf("query us airports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out[code] = true
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddUSAirports(ctx context.Context, codes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin us airports: %w", err)
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO us_airport_codes (code) VALUES (?)", code); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert us airport %s: %w", code, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ArchiveDates(ctx context.Context) ([]ArchiveDate, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ops_date, COUNT(*) FROM archive GROUP BY ops_date ORDER BY ops_date DESC")
	if err != nil {
		return nil, fmt.Errorf("query archive dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ArchiveDate
	for rows.Next() {
		var d ArchiveDate
		if err := rows.Scan(&d.Date, &d.Flights); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ArchiveRowsForDate(ctx context.Context, date string) ([]ArchiveRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ops_date, archived_at, flight_data FROM archive WHERE ops_date = ? ORDER BY id ASC", date)
	if err != nil {
		return nil, fmt.Errorf("query archive rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ArchiveRow
	for rows.Next() {
		var r ArchiveRow
		if err := rows.Scan(&r.ID, &r.OpsDate, &r.ArchivedAt, &r.FlightData); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteArchiveForDate(ctx context.Context, date string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM archive WHERE ops_date = ?", date); err != nil {
		return fmt.Errorf("delete archive rows: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertArchiveRows(ctx context.Context, opsDate string, flights []Flight) error {
	archivedAt := nowISO()
	for _, batch := range chunkFlights(flights) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin archive batch: %w", err)
		}
		for _, f := range batch {
			data, err := json.Marshal(f)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("marshal flight %s: %w", f.Key, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO archive (ops_date, archived_at, flight_data) VALUES (?, ?, ?)",
				opsDate, archivedAt, string(data)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert archive row %s: %w", f.Key, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit archive batch: %w", err)
		}
	}
	return nil
}

// collectFlights drains a flights result set.
func collectFlights(rows *sql.Rows) ([]Flight, error) {
	var out []Flight
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// buildFieldSet renders a whitelisted partial-update SET clause. ph maps a
// 1-based argument position to its placeholder.
func buildFieldSet(fields map[string]any, ph func(int) string) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	cols := make([]string, 0, len(fields))
	for c := range fields {
		if !updatableFields[c] {
			return "", nil, fmt.Errorf("field %s is not updatable", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var set []string
	var args []any
	for i, c := range cols {
		set = append(set, c+" = "+ph(i+1))
		args = append(args, fields[c])
	}
	set = append(set, "updated_at = "+ph(len(cols)+1))
	args = append(args, nowISO())

	return strings.Join(set, ", "), args, nil
}

// qMarks returns n comma-separated "?" placeholders.
func qMarks(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
