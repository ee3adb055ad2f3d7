package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

const postgresSchema = `
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
	id          BIGSERIAL PRIMARY KEY,
	ops_date    TEXT NOT NULL,
	archived_at TEXT NOT NULL,
	flight_data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archive_ops_date ON archive(ops_date);
`

// PostgresStore is the alternate backend, selected by configuration.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool and ensures the schema.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Backend() string { return "postgres" }

func (s *PostgresStore) FlightsBetween(ctx context.Context, fromUTC, toUTC time.Time) ([]Flight, error) {
	query := "SELECT " + flightCols + " FROM flights WHERE time_est BETWEEN $1 AND $2 ORDER BY time_est ASC"
	rows, err := s.pool.Query(ctx, query, utcISO(fromUTC), utcISO(toUTC))
	if err != nil {
		return nil, fmt.Errorf("query flights: %w", err)
	}
	defer rows.Close()
	return collectPgFlights(rows)
}

func (s *PostgresStore) AllFlights(ctx context.Context) ([]Flight, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+flightCols+" FROM flights")
	if err != nil {
		return nil, fmt.Errorf("query flights: %w", err)
	}
	defer rows.Close()
	return collectPgFlights(rows)
}

func (s *PostgresStore) GetFlight(ctx context.Context, key string) (*Flight, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+flightCols+" FROM flights WHERE key = $1", key)
	f, err := scanFlight(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flight: %w", err)
	}
	return &f, nil
}

func (s *PostgresStore) InsertFlights(ctx context.Context, flights []Flight) error {
	insert := "INSERT INTO flights (" + flightCols + ") VALUES (" +
		dollarMarks(flightColCount) + ") ON CONFLICT (key) DO NOTHING"

	for _, chunk := range chunkFlights(flights) {
		batch := &pgx.Batch{}
		for _, f := range chunk {
			batch.Queue(insert, flightArgs(f)...)
		}
		if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert flight batch: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpdateSynced(ctx context.Context, flights []Flight) error {
	var set []string
	for i, c := range syncCols {
		set = append(set, fmt.Sprintf("%s = $%d", c, i+1))
	}
	update := "UPDATE flights SET " + strings.Join(set, ", ") +
		fmt.Sprintf(" WHERE key = $%d", len(syncCols)+1)

	for _, chunk := range chunkFlights(flights) {
		batch := &pgx.Batch{}
		for _, f := range chunk {
			batch.Queue(update, syncArgs(f)...)
		}
		if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("update flight batch: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	set, args, err := buildFieldSet(fields, func(i int) string { return fmt.Sprintf("$%d", i) })
	if err != nil {
		return err
	}
	args = append(args, key)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE flights SET %s WHERE key = $%d", set, len(args)), args...)
	if err != nil {
		return fmt.Errorf("update fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetDispatchAck(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE flights SET dispatch_ack = 1, updated_at = $1 WHERE key = $2", nowISO(), key)
	if err != nil {
		return fmt.Errorf("set dispatch ack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetZoneAck(ctx context.Context, key, board string, clearZonePrev bool) error {
	if !boardCols[board] {
		return fmt.Errorf("invalid board column: %s", board)
	}
	query := "UPDATE flights SET " + board + " = 1, updated_at = $1 WHERE key = $2"
	if clearZonePrev {
		query = "UPDATE flights SET " + board + " = 1, zone_prev = '', updated_at = $1 WHERE key = $2"
	}
	tag, err := s.pool.Exec(ctx, query, nowISO(), key)
	if err != nil {
		return fmt.Errorf("set zone ack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteFlights(ctx context.Context, keys []string) error {
	for _, batch := range chunkStrings(keys) {
		if _, err := s.pool.Exec(ctx,
			"DELETE FROM flights WHERE key = ANY($1)", batch); err != nil {
			return fmt.Errorf("delete flights: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FlightCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM flights").Scan(&n); err != nil {
		return 0, fmt.Errorf("count flights: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		"SELECT username, pin, role FROM users WHERE username = $1", username).
		Scan(&u.Username, &u.Pin, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (username, pin, role) VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET pin = EXCLUDED.pin, role = EXCLUDED.role
	`, u.Username, u.Pin, u.Role)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Overrides(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT gate, zone FROM zone_overrides")
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

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

func (s *PostgresStore) UpsertOverride(ctx context.Context, gate, zone string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO zone_overrides (gate, zone) VALUES ($1, $2)
		ON CONFLICT (gate) DO UPDATE SET zone = EXCLUDED.zone
	`, gate, zone)
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

func (s *PostgresStore) USAirports(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, "SELECT code FROM us_airport_codes")
	if err != nil {
		return nil, fmt.Errorf("query us airports: %w", err)
	}
	defer rows.Close()

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

func (s *PostgresStore) AddUSAirports(ctx context.Context, codes []string) error {
	batch := &pgx.Batch{}
	for _, code := range codes {
		batch.Queue("INSERT INTO us_airport_codes (code) VALUES ($1) ON CONFLICT DO NOTHING", code)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert us airports: %w", err)
	}
	return nil
}

func (s *PostgresStore) ArchiveDates(ctx context.Context) ([]ArchiveDate, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT ops_date, COUNT(*) FROM archive GROUP BY ops_date ORDER BY ops_date DESC")
	if err != nil {
		return nil, fmt.Errorf("query archive dates: %w", err)
	}
	defer rows.Close()

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

func (s *PostgresStore) ArchiveRowsForDate(ctx context.Context, date string) ([]ArchiveRow, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, ops_date, archived_at, flight_data FROM archive WHERE ops_date = $1 ORDER BY id ASC", date)
	if err != nil {
		return nil, fmt.Errorf("query archive rows: %w", err)
	}
	defer rows.Close()

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

func (s *PostgresStore) DeleteArchiveForDate(ctx context.Context, date string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM archive WHERE ops_date = $1", date); err != nil {
		return fmt.Errorf("delete archive rows: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertArchiveRows(ctx context.Context, opsDate string, flights []Flight) error {
	archivedAt := nowISO()
	for _, chunk := range chunkFlights(flights) {
		batch := &pgx.Batch{}
		for _, f := range chunk {
			data, err := json.Marshal(f)
			if err != nil {
				return fmt.Errorf("marshal flight %s: %w", f.Key, err)
			}
			batch.Queue(
				"INSERT INTO archive (ops_date, archived_at, flight_data) VALUES ($1, $2, $3)",
				opsDate, archivedAt, string(data))
		}
		if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert archive batch: %w", err)
		}
	}
	return nil
}

func collectPgFlights(rows pgx.Rows) ([]Flight, error) {
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

// dollarMarks returns "$1, $2, ..., $n".
func dollarMarks(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}
