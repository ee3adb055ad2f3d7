package api

import (
	"net/http"
	"strings"
	"time"

	"paxassist/internal/store"
)

func (s *Server) handleLeadInit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"zones":      store.Zones,
		"serverTime": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLeadRows(w http.ResponseWriter, r *http.Request) {
	flights, err := s.queryRows(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	zoneFilter := r.URL.Query().Get("zone")
	typeFilter := strings.ToUpper(r.URL.Query().Get("type"))
	search := collapseQuery(r.URL.Query().Get("q"))

	rows := make([]Row, 0, len(flights))
	for _, f := range flights {
		if !leadMatch(f, zoneFilter) {
			continue
		}
		if typeFilter != "" && typeFilter != "ALL" && f.Type != typeFilter {
			continue
		}
		if search != "" && !strings.Contains(collapseQuery(f.Flight), search) {
			continue
		}
		rows = append(rows, toRow(f))
	}
	sortRows(rows)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"rows":        rows,
		"generatedAt": s.now().UTC().Format(time.RFC3339),
	})
}

// leadMatch applies the zone filter: a row belongs to a zone board when its
// current zone matches or its carry-over slot still points there, and drops
// off once that board has acknowledged it.
func leadMatch(f store.Flight, zone string) bool {
	if zone == "" || zone == "ALL" {
		return !f.AckFor(store.BoardForZone(f.ZoneCurrent))
	}
	if f.ZoneCurrent != zone && f.ZonePrev != zone {
		return false
	}
	return !f.AckFor(store.BoardForZone(zone))
}

// collapseQuery uppercases and strips all whitespace for flight search.
func collapseQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "")
}

type leadUpdateRequest struct {
	Key        string  `json:"key"`
	Assignment *string `json:"assignment"`
	Pax        *string `json:"pax"`
	Watchlist  *string `json:"watchlist"`
}

func (s *Server) handleLeadUpdate(w http.ResponseWriter, r *http.Request) {
	var req leadUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	fields := map[string]any{}
	if req.Assignment != nil {
		fields["assignment"] = *req.Assignment
		fields["assign_edited_by"] = claimsFrom(r).Username
		fields["assign_edited_at"] = s.now().UTC().Format(time.RFC3339)
	}
	if req.Pax != nil {
		fields["pax_assisted"] = *req.Pax
	}
	if req.Watchlist != nil {
		fields["watchlist"] = *req.Watchlist
	}
	if len(fields) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if err := s.store.UpdateFields(r.Context(), req.Key, fields); err != nil {
		s.fail(w, err)
		return
	}
	s.overlay.Put(req.Key, fields)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type leadAckRequest struct {
	Key  string `json:"key"`
	Zone string `json:"zone"`
}

func (s *Server) handleLeadAck(w http.ResponseWriter, r *http.Request) {
	var req leadAckRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	board := store.BoardForZone(req.Zone)
	if req.Key == "" || board == "" {
		writeError(w, http.StatusBadRequest, "key and a valid zone are required")
		return
	}

	f, err := s.store.GetFlight(r.Context(), req.Key)
	if err != nil {
		s.fail(w, err)
		return
	}
	// ACKing the carried-over zone discharges the slot, unless the flight
	// has since moved back to it.
	clearPrev := f.ZonePrev == req.Zone && f.ZoneCurrent != req.Zone

	if err := s.store.SetZoneAck(r.Context(), req.Key, board, clearPrev); err != nil {
		s.fail(w, err)
		return
	}

	patch := map[string]any{board: true}
	if clearPrev {
		patch["zone_prev"] = ""
	}
	s.overlay.Put(req.Key, patch)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
