// Package api provides the REST surface for the dispatch, lead and
// management boards. Every response is {ok, ...} or {ok:false, error}; list
// reads carry a generatedAt stamp.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"paxassist/internal/auth"
	"paxassist/internal/store"
	"paxassist/internal/syncer"
)

// ServiceName appears in health responses.
const ServiceName = "paxassist"

// Server wires the store, auth and sync engine behind the HTTP routes.
type Server struct {
	store   store.Store
	signer  *auth.Signer
	overlay *store.Overlay
	loc     *time.Location
	engine  *syncer.Engine
	fetcher syncer.Fetcher
	port    int

	now func() time.Time
}

// Config holds the server wiring.
type Config struct {
	Port     int
	Location *time.Location
	Signer   *auth.Signer
	Engine   *syncer.Engine // manual sync trigger; may be nil
	Fetcher  syncer.Fetcher // provider client for manual sync; may be nil
}

// NewServer builds the API server.
func NewServer(st store.Store, cfg Config) *Server {
	return &Server{
		store:   st,
		signer:  cfg.Signer,
		overlay: store.NewOverlay(),
		loc:     cfg.Location,
		engine:  cfg.Engine,
		fetcher: cfg.Fetcher,
		port:    cfg.Port,
		now:     time.Now,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("api: listening on %s (backend=%s)", addr, s.store.Backend())
	return http.ListenAndServe(addr, s.Router())
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)

	r.Post("/auth/login", s.handleLogin)
	r.Get("/auth/validate", s.requireAny(s.handleValidate))

	r.Route("/dispatch", func(r chi.Router) {
		r.Use(s.requireApp(auth.AppDispatch))
		r.Get("/rows", s.handleDispatchRows)
		r.Patch("/update", s.handleDispatchUpdate)
		r.Post("/ack", s.handleDispatchAck)
	})

	r.Route("/lead", func(r chi.Router) {
		r.Use(s.requireApp(auth.AppLead))
		r.Get("/init", s.handleLeadInit)
		r.Get("/rows", s.handleLeadRows)
		r.Patch("/update", s.handleLeadUpdate)
		r.Post("/ack", s.handleLeadAck)
	})

	r.Route("/archive", func(r chi.Router) {
		r.Use(s.requireApp(auth.AppMgmt))
		r.Get("/dates", s.handleArchiveDates)
		r.Get("/rows", s.handleArchiveRows)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireApp(auth.AppDispatch))
		r.Post("/sync", s.handleAdminSync)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.FlightCount(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"name":    ServiceName,
		"time":    s.now().UTC().Format(time.RFC3339),
		"backend": s.store.Backend(),
		"flights": n,
	})
}

func (s *Server) handleAdminSync(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil || s.fetcher == nil {
		s.fail(w, fmt.Errorf("sync is not configured"))
		return
	}
	stats, err := s.engine.SyncFromProvider(r.Context(), s.fetcher)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"inserted": stats.Inserted,
		"updated":  stats.Updated,
	})
}

// corsMiddleware echoes the requesting origin and short-circuits preflights.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "content-type,authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type claimsKey struct{}

// requireApp gates a subtree on a valid token whose role grants the app.
func (s *Server) requireApp(app string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := s.authenticate(r)
			if err != nil {
				s.fail(w, err)
				return
			}
			if !auth.CanAccess(c.Role, app) {
				s.fail(w, auth.NoAccessError(app))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, c)))
		})
	}
}

// requireAny accepts any valid token regardless of role.
func (s *Server) requireAny(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.authenticate(r)
		if err != nil {
			s.fail(w, err)
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, c)))
	}
}

func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, auth.ErrMissingToken
	}
	return s.signer.Verify(token)
}

func claimsFrom(r *http.Request) *auth.Claims {
	c, _ := r.Context().Value(claimsKey{}).(*auth.Claims)
	return c
}

// authErrorTerms classifies errors that must surface as 401 regardless of
// where they were raised.
var authErrorTerms = []string{
	"missing authorization", "unauthorized", "expired", "no access", "invalid token",
}

func statusFor(err error) int {
	msg := strings.ToLower(err.Error())
	for _, term := range authErrorTerms {
		if strings.Contains(msg, term) {
			return http.StatusUnauthorized
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// fail is the single error boundary for handlers.
func (s *Server) fail(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

// decodeBody reads a JSON object body into dst.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
