package api

import (
	"encoding/json"
	"net/http"
	"time"

	"paxassist/internal/store"
)

func (s *Server) handleArchiveDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.store.ArchiveDates(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if dates == nil {
		dates = []store.ArchiveDate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "dates": dates})
}

func (s *Server) handleArchiveRows(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	archived, err := s.store.ArchiveRowsForDate(r.Context(), date)
	if err != nil {
		s.fail(w, err)
		return
	}

	rows := make([]Row, 0, len(archived))
	for _, a := range archived {
		var f store.Flight
		if err := json.Unmarshal([]byte(a.FlightData), &f); err != nil {
			continue // tolerate a corrupt snapshot rather than failing the day
		}
		rows = append(rows, toRow(f))
	}
	sortRows(rows)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"opsDate": date,
		"flights": len(rows),
		"rows":    rows,
	})
}
