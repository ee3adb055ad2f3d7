package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleFlight(key, est string) Flight {
	return Flight{
		Key:          key,
		OpsDate:      "2025-02-25",
		Type:         TypeArrival,
		Flight:       "WS 816",
		OriginDest:   "YEG",
		Gate:         "B3",
		Sched:        est,
		TimeEst:      est,
		ZoneCurrent:  ZonePierA,
		ZonePrevious: ZonePierA,
		CreatedAt:    "2025-02-25T10:00:00Z",
		UpdatedAt:    "2025-02-25T10:00:00Z",
	}
}

func TestInsertAndGetFlight(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f := sampleFlight("2025-02-25|ARR|WS 816|06:30", "2025-02-25T11:30:00Z")
	f.Wchr = 2
	f.Comment = "meet at bridge"
	if err := s.InsertFlights(ctx, []Flight{f}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetFlight(ctx, f.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Flight != "WS 816" || got.ZoneCurrent != ZonePierA || got.Wchr != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.ZonePrevious != ZonePierA {
		t.Errorf("zone_previous = %q, want %q", got.ZonePrevious, ZonePierA)
	}
}

func TestGetFlightNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetFlight(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertIgnoresDuplicateKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f := sampleFlight("k1", "2025-02-25T11:30:00Z")
	f.Comment = "original"
	if err := s.InsertFlights(ctx, []Flight{f}); err != nil {
		t.Fatal(err)
	}

	dup := f
	dup.Comment = "overwrite attempt"
	if err := s.InsertFlights(ctx, []Flight{dup}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetFlight(ctx, "k1")
	if got.Comment != "original" {
		t.Errorf("duplicate insert overwrote row: comment = %q", got.Comment)
	}
}

func TestFlightsBetweenOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	flights := []Flight{
		sampleFlight("k-late", "2025-02-25T18:00:00Z"),
		sampleFlight("k-early", "2025-02-25T09:00:00Z"),
		sampleFlight("k-outside", "2025-02-26T12:00:00Z"),
	}
	if err := s.InsertFlights(ctx, flights); err != nil {
		t.Fatal(err)
	}

	from, _ := time.Parse(time.RFC3339, "2025-02-25T08:00:00Z")
	to, _ := time.Parse(time.RFC3339, "2025-02-25T23:00:00Z")
	got, err := s.FlightsBetween(ctx, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d flights, want 2", len(got))
	}
	if got[0].Key != "k-early" || got[1].Key != "k-late" {
		t.Errorf("order = %s, %s; want k-early, k-late", got[0].Key, got[1].Key)
	}
}

func TestUpdateSyncedDoesNotTouchManualOrInitialZone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f := sampleFlight("k1", "2025-02-25T11:30:00Z")
	f.Wchr = 3
	f.Comment = "gate meet"
	f.Assignment = "amal"
	if err := s.InsertFlights(ctx, []Flight{f}); err != nil {
		t.Fatal(err)
	}

	upd := f
	upd.Gate = "B20"
	upd.ZoneCurrent = ZoneTB
	upd.ZonePrevious = "should be ignored"
	upd.Wchr = 99
	upd.Comment = "should be ignored"
	upd.AlertText = "Gate: B3 -> B20"
	if err := s.UpdateSynced(ctx, []Flight{upd}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetFlight(ctx, "k1")
	if got.Gate != "B20" || got.ZoneCurrent != ZoneTB || got.AlertText != "Gate: B3 -> B20" {
		t.Errorf("sync fields not applied: %+v", got)
	}
	if got.Wchr != 3 || got.Comment != "gate meet" || got.Assignment != "amal" {
		t.Errorf("manual fields touched by sync: wchr=%d comment=%q assignment=%q",
			got.Wchr, got.Comment, got.Assignment)
	}
	if got.ZonePrevious != ZonePierA {
		t.Errorf("zone_previous touched by sync: %q", got.ZonePrevious)
	}
}

func TestUpdateFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f := sampleFlight("k1", "2025-02-25T11:30:00Z")
	if err := s.InsertFlights(ctx, []Flight{f}); err != nil {
		t.Fatal(err)
	}

	err := s.UpdateFields(ctx, "k1", map[string]any{
		"wchr":      4,
		"prev_wchr": 0,
		"comment":   "two chairs at door",
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetFlight(ctx, "k1")
	if got.Wchr != 4 || got.Comment != "two chairs at door" {
		t.Errorf("update fields: %+v", got)
	}
	if got.UpdatedAt == f.UpdatedAt {
		t.Error("updated_at not bumped")
	}
}

func TestUpdateFieldsRejectsNonManualColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.InsertFlights(ctx, []Flight{sampleFlight("k1", "2025-02-25T11:30:00Z")}); err != nil {
		t.Fatal(err)
	}

	for _, col := range []string{"gate", "zone_current", "dispatch_ack", "alert_text", "key"} {
		if err := s.UpdateFields(ctx, "k1", map[string]any{col: "x"}); err == nil {
			t.Errorf("UpdateFields allowed column %q", col)
		}
	}
}

func TestAcks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f := sampleFlight("k1", "2025-02-25T11:30:00Z")
	f.ZonePrev = ZoneTB
	if err := s.InsertFlights(ctx, []Flight{f}); err != nil {
		t.Fatal(err)
	}

	if err := s.SetDispatchAck(ctx, "k1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetZoneAck(ctx, "k1", BoardTB, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetZoneAck(ctx, "k1", BoardPierA, false); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetFlight(ctx, "k1")
	if !got.DispatchAck || !got.TBAck || !got.PierAAck {
		t.Errorf("acks not set: %+v", got)
	}
	if got.ZonePrev != "" {
		t.Errorf("zone_prev = %q, want cleared", got.ZonePrev)
	}

	if err := s.SetZoneAck(ctx, "k1", "users; DROP TABLE flights", false); err == nil {
		t.Error("SetZoneAck accepted invalid board column")
	}
	if err := s.SetDispatchAck(ctx, "missing"); err != ErrNotFound {
		t.Errorf("ack on missing key: err = %v, want ErrNotFound", err)
	}
}

func TestUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, User{Username: "rita", Pin: "4417", Role: RoleLead}); err != nil {
		t.Fatal(err)
	}
	u, err := s.GetUser(ctx, "rita")
	if err != nil {
		t.Fatal(err)
	}
	if u.Pin != "4417" || u.Role != RoleLead {
		t.Errorf("user = %+v", u)
	}

	if err := s.UpsertUser(ctx, User{Username: "rita", Pin: "9900", Role: RoleMgmt}); err != nil {
		t.Fatal(err)
	}
	u, _ = s.GetUser(ctx, "rita")
	if u.Pin != "9900" || u.Role != RoleMgmt {
		t.Errorf("upsert did not replace: %+v", u)
	}

	if _, err := s.GetUser(ctx, "ghost"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReferenceData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertOverride(ctx, "B99", "Pier A"); err != nil {
		t.Fatal(err)
	}
	ov, err := s.Overrides(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ov["B99"] != "Pier A" {
		t.Errorf("overrides = %v", ov)
	}

	if err := SeedReferenceData(ctx, s); err != nil {
		t.Fatal(err)
	}
	us, err := s.USAirports(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !us["JFK"] || !us["ORD"] {
		t.Errorf("seed missing expected codes: %d loaded", len(us))
	}

	// Seeding again must not error or duplicate.
	if err := SeedReferenceData(ctx, s); err != nil {
		t.Fatal(err)
	}
	again, _ := s.USAirports(ctx)
	if len(again) != len(us) {
		t.Errorf("second seed changed set: %d -> %d", len(us), len(again))
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f1 := sampleFlight("k1", "2025-02-24T12:00:00Z")
	f1.Wchr = 2
	f2 := sampleFlight("k2", "2025-02-24T16:00:00Z")
	if err := s.InsertArchiveRows(ctx, "2025-02-24", []Flight{f1, f2}); err != nil {
		t.Fatal(err)
	}

	dates, err := s.ArchiveDates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 1 || dates[0].Date != "2025-02-24" || dates[0].Flights != 2 {
		t.Errorf("dates = %+v", dates)
	}

	rows, err := s.ArchiveRowsForDate(ctx, "2025-02-24")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	// Archive payloads carry the same field names as live flights.
	var back Flight
	if err := json.Unmarshal([]byte(rows[0].FlightData), &back); err != nil {
		t.Fatalf("unmarshal archive payload: %v", err)
	}
	if back.Key != "k1" || back.Wchr != 2 {
		t.Errorf("archive payload = %+v", back)
	}

	if err := s.DeleteArchiveForDate(ctx, "2025-02-24"); err != nil {
		t.Fatal(err)
	}
	if dates, _ := s.ArchiveDates(ctx); len(dates) != 0 {
		t.Errorf("archive not cleared: %+v", dates)
	}
}

func TestDeleteFlights(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertFlights(ctx, []Flight{
		sampleFlight("k1", "2025-02-25T11:00:00Z"),
		sampleFlight("k2", "2025-02-25T12:00:00Z"),
		sampleFlight("k3", "2025-02-25T13:00:00Z"),
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFlights(ctx, []string{"k1", "k3"}); err != nil {
		t.Fatal(err)
	}
	n, _ := s.FlightCount(ctx)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if _, err := s.GetFlight(ctx, "k2"); err != nil {
		t.Errorf("k2 should survive: %v", err)
	}
}
