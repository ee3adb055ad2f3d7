package api

import (
	"net/http"
	"time"

	"paxassist/internal/opsday"
	"paxassist/internal/store"
)

// queryRows resolves the from/to/opsDay query into flights with the patch
// overlay applied.
func (s *Server) queryRows(r *http.Request) ([]store.Flight, error) {
	q := opsday.Query{
		FromTime: r.URL.Query().Get("from"),
		ToTime:   r.URL.Query().Get("to"),
		OpsDay:   r.URL.Query().Get("opsDay"),
	}
	from, to, err := opsday.QueryWindow(s.now(), s.loc, q)
	if err != nil {
		return nil, err
	}
	flights, err := s.store.FlightsBetween(r.Context(), from, to)
	if err != nil {
		return nil, err
	}
	for i := range flights {
		s.overlay.Apply(&flights[i])
	}
	return flights, nil
}

func (s *Server) handleDispatchRows(w http.ResponseWriter, r *http.Request) {
	flights, err := s.queryRows(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	rows := make([]Row, 0, len(flights))
	for _, f := range flights {
		row := toRow(f)
		// The dispatcher ACKed this change already; stop showing it.
		if f.DispatchAck {
			blankSeenChanges(&row)
		}
		rows = append(rows, row)
	}
	sortRows(rows)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"rows":        rows,
		"generatedAt": s.now().UTC().Format(time.RFC3339),
	})
}

type dispatchUpdateRequest struct {
	Key     string  `json:"key"`
	Wchr    *int    `json:"wchr"`
	Wchc    *int    `json:"wchc"`
	Comment *string `json:"comment"`
}

func (s *Server) handleDispatchUpdate(w http.ResponseWriter, r *http.Request) {
	var req dispatchUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	fields := map[string]any{}
	if req.Wchr != nil || req.Wchc != nil {
		// Count edits keep the previous value for the boards to show.
		old, err := s.store.GetFlight(r.Context(), req.Key)
		if err != nil {
			s.fail(w, err)
			return
		}
		if req.Wchr != nil && *req.Wchr != old.Wchr {
			fields["prev_wchr"] = old.Wchr
			fields["wchr"] = *req.Wchr
		}
		if req.Wchc != nil && *req.Wchc != old.Wchc {
			fields["prev_wchc"] = old.Wchc
			fields["wchc"] = *req.Wchc
		}
	}
	if req.Comment != nil {
		fields["comment"] = *req.Comment
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

type keyRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleDispatchAck(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := s.store.SetDispatchAck(r.Context(), req.Key); err != nil {
		s.fail(w, err)
		return
	}
	s.overlay.Put(req.Key, map[string]any{store.BoardDispatch: true})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
