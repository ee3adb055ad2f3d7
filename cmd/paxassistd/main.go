// Package main runs the passenger-assistance dispatch backend.
//
// The service pulls the airport's flight board from AeroDataBox every minute,
// classifies each watched flight into a terminal zone, tracks gate, zone and
// time changes against the stored state, and serves the dispatch, lead and
// management boards over a REST API. A nightly job moves finished ops days
// into the archive table.
//
// Usage:
//
//	paxassistd [options]
//
// Options:
//
//	-signing-key KEY    HMAC key for session tokens (required, env: PAXASSIST_SIGNING_KEY)
//	-fids-api-key KEY   AeroDataBox API key (required, env: PAXASSIST_FIDS_API_KEY)
//	-tz NAME            Airport timezone (default: America/Toronto, env: PAXASSIST_TZ)
//	-db PATH            SQLite database path (default: paxassist.db, env: PAXASSIST_DB)
//	-backend NAME       Storage backend: sqlite or postgres (default: sqlite)
//	-pg-host HOST       PostgreSQL host (default: localhost, env: POSTGRES_HOST)
//	-pg-port PORT       PostgreSQL port (default: 5432, env: POSTGRES_PORT)
//	-pg-database DB     PostgreSQL database (default: paxassist, env: POSTGRES_DATABASE)
//	-pg-user USER       PostgreSQL user (default: paxassist, env: POSTGRES_USER)
//	-pg-password PASS   PostgreSQL password (env: POSTGRES_PASSWORD)
//	-nats-url URL       NATS server for change events (optional, env: PAXASSIST_NATS_URL)
//	-port N             HTTP port (default: 8080)
//	-sync-spec EXPR     Cron expression for FIDS sync (default: every minute)
//	-seed-user SPEC     Bootstrap user as username:pin:role (optional)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"paxassist/internal/api"
	"paxassist/internal/auth"
	"paxassist/internal/events"
	"paxassist/internal/fids"
	"paxassist/internal/opsday"
	"paxassist/internal/sched"
	"paxassist/internal/store"
	"paxassist/internal/syncer"
)

func main() {
	signingKey := flag.String("signing-key", envOrDefault("PAXASSIST_SIGNING_KEY", ""), "HMAC key for session tokens")
	fidsKey := flag.String("fids-api-key", envOrDefault("PAXASSIST_FIDS_API_KEY", ""), "AeroDataBox API key")
	tz := flag.String("tz", envOrDefault("PAXASSIST_TZ", opsday.DefaultTimezone), "Airport timezone")

	backend := flag.String("backend", envOrDefault("PAXASSIST_BACKEND", "sqlite"), "Storage backend: sqlite or postgres")
	dbPath := flag.String("db", envOrDefault("PAXASSIST_DB", "paxassist.db"), "SQLite database path")
	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "paxassist"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", ""), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "paxassist"), "PostgreSQL database")

	natsURL := flag.String("nats-url", envOrDefault("PAXASSIST_NATS_URL", ""), "NATS server for change events")
	port := flag.Int("port", envOrDefaultInt("PAXASSIST_PORT", 8080), "HTTP port")
	syncSpec := flag.String("sync-spec", "", "Cron expression for FIDS sync (default: every minute)")
	seedUser := flag.String("seed-user", "", "Bootstrap user as username:pin:role")

	flag.Parse()

	if *signingKey == "" {
		fatal("a -signing-key is required")
	}
	if *fidsKey == "" {
		fatal("a -fids-api-key is required")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fatal("invalid timezone %q: %v", *tz, err)
	}

	ctx := context.Background()

	var st store.Store
	switch *backend {
	case "sqlite":
		st, err = store.OpenSQLite(*dbPath)
	case "postgres":
		st, err = store.OpenPostgres(ctx, store.PostgresConfig{
			Host:     *pgHost,
			Port:     *pgPort,
			Database: *pgDB,
			User:     *pgUser,
			Password: *pgPassword,
		})
	default:
		fatal("unknown backend %q", *backend)
	}
	if err != nil {
		fatal("open %s store: %v", *backend, err)
	}
	defer func() { _ = st.Close() }()

	if err := store.SeedReferenceData(ctx, st); err != nil {
		fatal("seed reference data: %v", err)
	}
	if *seedUser != "" {
		if err := seedBootstrapUser(ctx, st, *seedUser); err != nil {
			fatal("seed user: %v", err)
		}
	}

	var pub syncer.Publisher
	if *natsURL != "" {
		np, err := events.Connect(*natsURL)
		if err != nil {
			fatal("connect NATS: %v", err)
		}
		defer np.Close()
		pub = np
		log.Printf("events: publishing changes to %s", *natsURL)
	}

	client := fids.NewClient(fids.Config{APIKey: *fidsKey, Location: loc})
	engine := syncer.New(st, loc, pub)

	scheduler := sched.New(st, engine, client, loc)
	if err := scheduler.Start(*syncSpec); err != nil {
		fatal("start scheduler: %v", err)
	}
	defer scheduler.Stop()

	server := api.NewServer(st, api.Config{
		Port:     *port,
		Location: loc,
		Signer:   auth.NewSigner([]byte(*signingKey)),
		Engine:   engine,
		Fetcher:  client,
	})
	if err := server.Run(); err != nil {
		fatal("server error: %v", err)
	}
}

// seedBootstrapUser parses "username:pin:role" and upserts the account.
func seedBootstrapUser(ctx context.Context, st store.Store, spec string) error {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("want username:pin:role, got %q", spec)
	}
	role := parts[2]
	switch role {
	case store.RoleDispatch, store.RoleLead, store.RoleMgmt:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return st.UpsertUser(ctx, store.User{Username: parts[0], Pin: parts[1], Role: role})
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
