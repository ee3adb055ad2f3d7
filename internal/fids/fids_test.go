package fids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"WS816", "WS 816"},
		{"WS 816", "WS 816"},
		{"ws  816", "WS 816"},
		{"DL 4078", "DL 4078"},
		{"W", "W"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWatched(t *testing.T) {
	for _, n := range []string{"WS 816", "dl123", "AF 356", "2T 001"} {
		if !Watched(n) {
			t.Errorf("Watched(%q) = false, want true", n)
		}
	}
	for _, n := range []string{"AC 123", "UA 999", "X", ""} {
		if Watched(n) {
			t.Errorf("Watched(%q) = true, want false", n)
		}
	}
}

func TestParseStamp(t *testing.T) {
	tests := []struct {
		in   string
		want string // UTC RFC3339
	}{
		{"2025-02-25T11:30:00Z", "2025-02-25T11:30:00Z"},
		{"2025-02-25 06:30-05:00", "2025-02-25T11:30:00Z"},
		{"2025-02-25T06:30-05:00", "2025-02-25T11:30:00Z"},
		{"2025-02-25 11:30Z", "2025-02-25T11:30:00Z"},
		{"2025-02-25 11:30", "2025-02-25T11:30:00Z"},
	}
	for _, tt := range tests {
		got, err := ParseStamp(tt.in)
		if err != nil {
			t.Errorf("ParseStamp(%q): %v", tt.in, err)
			continue
		}
		if got.Format(time.RFC3339) != tt.want {
			t.Errorf("ParseStamp(%q) = %s, want %s", tt.in, got.Format(time.RFC3339), tt.want)
		}
	}

	for _, bad := range []string{"", "yesterday", "25/02/2025"} {
		if _, err := ParseStamp(bad); err == nil {
			t.Errorf("ParseStamp(%q) expected error", bad)
		}
	}
}

func flightJSON(number, codeshare, iata, sched, revised, terminal, gate string) map[string]any {
	movement := map[string]any{
		"airport":       map[string]any{"iata": iata},
		"scheduledTime": map[string]any{"local": sched},
		"terminal":      terminal,
		"gate":          gate,
	}
	if revised != "" {
		movement["revisedTime"] = map[string]any{"local": revised}
	}
	return map[string]any{
		"number":          number,
		"codeshareStatus": codeshare,
		"movement":        movement,
	}
}

func TestFetchWindowFiltersAndReshapes(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("X-RapidAPI-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		resp := map[string]any{
			"arrivals": []any{
				flightJSON("WS816", "IsOperator", "YEG", "2025-02-25 06:30-05:00", "", "1", "B3"),
				flightJSON("WS 816", "IsOperator", "YEG", "2025-02-25 06:30-05:00", "", "1", "B3"), // dupe
				flightJSON("AC101", "IsOperator", "YVR", "2025-02-25 07:00-05:00", "", "1", "D40"), // unwatched
				flightJSON("DL5300", "IsCodeshared", "MSP", "2025-02-25 08:00-05:00", "", "3", ""), // codeshare
			},
			"departures": []any{
				flightJSON("LH471", "IsOperator", "FRA", "2025-02-25 17:30-05:00", "2025-02-25 18:10-05:00", "1", "Gate B-17"),
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	loc, _ := time.LoadLocation("America/Toronto")
	c := NewClient(Config{APIKey: "test-key", Host: srv.URL, Location: loc})

	from, _ := time.Parse(time.RFC3339, "2025-02-25T08:00:00Z")
	to := from.Add(10 * time.Hour) // one segment

	res, err := c.FetchWindow(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (short page ends segment)", requests)
	}

	if len(res.Arrivals) != 1 {
		t.Fatalf("arrivals = %d, want 1 (dedupe, watched filter, codeshare drop)", len(res.Arrivals))
	}
	arr := res.Arrivals[0]
	if arr.Flight != "WS 816" || arr.OriginDest != "YEG" || arr.Gate != "B3" {
		t.Errorf("arrival = %+v", arr)
	}
	if arr.Est != arr.Sched {
		t.Errorf("est should fall back to sched, got %q vs %q", arr.Est, arr.Sched)
	}

	if len(res.Departures) != 1 {
		t.Fatalf("departures = %d, want 1", len(res.Departures))
	}
	dep := res.Departures[0]
	if dep.Flight != "LH 471" || dep.Est != "2025-02-25 18:10-05:00" {
		t.Errorf("departure = %+v", dep)
	}
}

func TestFetchWindowSegments(t *testing.T) {
	var windows []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		windows = append(windows, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"arrivals": []any{}, "departures": []any{}})
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", Host: srv.URL})
	from, _ := time.Parse(time.RFC3339, "2025-02-25T08:00:00Z")
	to := from.Add(40 * time.Hour) // 12h + 12h + 12h + 4h

	if _, err := c.FetchWindow(context.Background(), from, to); err != nil {
		t.Fatal(err)
	}
	if len(windows) != 4 {
		t.Errorf("segments = %d, want 4", len(windows))
	}
}

func TestFetchWindowPagination(t *testing.T) {
	// Full pages of unwatched flights force paging up to the 4-page cap.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if r.URL.Query().Get("limit") != "300" {
			t.Errorf("limit = %s, want 300", r.URL.Query().Get("limit"))
		}
		arrivals := make([]any, 0, 300)
		for i := 0; i < 300; i++ {
			arrivals = append(arrivals,
				flightJSON(fmt.Sprintf("AC%d", offset+i), "IsOperator", "YVR", "2025-02-25 07:00-05:00", "", "1", ""))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"arrivals": arrivals, "departures": []any{}})
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", Host: srv.URL})
	from, _ := time.Parse(time.RFC3339, "2025-02-25T08:00:00Z")

	res, err := c.FetchWindow(context.Background(), from, from.Add(6*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Arrivals) != 0 {
		t.Errorf("unwatched flights kept: %d", len(res.Arrivals))
	}
}

func TestFetchWindowProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", Host: srv.URL})
	from, _ := time.Parse(time.RFC3339, "2025-02-25T08:00:00Z")

	_, err := c.FetchWindow(context.Background(), from, from.Add(time.Hour))
	if err == nil {
		t.Fatal("expected provider error")
	}
	if !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
}
