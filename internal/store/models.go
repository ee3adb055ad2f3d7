package store

import "time"

// Flight types.
const (
	TypeArrival   = "ARR"
	TypeDeparture = "DEP"
)

// Canonical zone labels.
const (
	ZonePierA      = "Pier A"
	ZoneTB         = "TB"
	ZoneGates      = "Gates"
	ZoneT1         = "T1"
	ZoneUnassigned = "Unassigned"
)

// Zones lists the canonical zones in display order.
var Zones = []string{ZonePierA, ZoneTB, ZoneGates, ZoneT1, ZoneUnassigned}

// Board ACK column names. Dispatch is the global board; the rest map 1:1
// to zones via BoardForZone.
const (
	BoardDispatch   = "dispatch_ack"
	BoardPierA      = "piera_ack"
	BoardTB         = "tb_ack"
	BoardT1         = "t1_ack"
	BoardUnassigned = "unassigned_ack"
	BoardGates      = "gates_ack"
)

// BoardForZone returns the ACK column for a zone, or "" for unknown zones.
func BoardForZone(zone string) string {
	switch zone {
	case ZonePierA:
		return BoardPierA
	case ZoneTB:
		return BoardTB
	case ZoneGates:
		return BoardGates
	case ZoneT1:
		return BoardT1
	case ZoneUnassigned:
		return BoardUnassigned
	}
	return ""
}

// Flight is the central row of the live table. The key is
// "YYYY-MM-DD|TYPE|FLIGHT|HH:mm" with date and time in the airport's local
// timezone; it never changes for the life of the row.
//
// FIDS-sourced and derived columns are owned by the sync engine. Manual
// columns are owned by the user endpoints and are never written by sync.
type Flight struct {
	Key        string `json:"key"`
	OpsDate    string `json:"ops_date"` // YYYY-MM-DD local
	Type       string `json:"type"`     // ARR or DEP
	Flight     string `json:"flight"`   // formatted with a space, e.g. "WS 816"
	OriginDest string `json:"origin_dest"`
	Gate       string `json:"gate"`
	Sched      string `json:"sched"`    // UTC ISO-8601
	TimeEst    string `json:"time_est"` // UTC ISO-8601

	ZoneCurrent  string `json:"zone_current"`
	ZonePrevious string `json:"zone_previous"` // initial zone, set once at insert
	ZonePrev     string `json:"zone_prev"`     // carry-over slot, at most one deep

	GateChanged     bool   `json:"gate_changed"`
	GateChgFromGate string `json:"gate_chg_from_gate"`
	GateChgToGate   string `json:"gate_chg_to_gate"`
	GateChgFromZone string `json:"gate_chg_from_zone"`
	GateChgToZone   string `json:"gate_chg_to_zone"`
	GateChgAt       string `json:"gate_chg_at"`

	ZoneChanged bool   `json:"zone_changed"`
	ZoneChgFrom string `json:"zone_chg_from"`
	ZoneChgTo   string `json:"zone_chg_to"`
	ZoneChgAt   string `json:"zone_chg_at"`

	TimeChanged  bool   `json:"time_changed"`
	TimePrevEst  string `json:"time_prev_est"`
	TimeDeltaMin int    `json:"time_delta_min"`
	TimeChgAt    string `json:"time_chg_at"`

	AlertText string `json:"alert_text"`

	Wchr           int    `json:"wchr"`
	Wchc           int    `json:"wchc"`
	PrevWchr       int    `json:"prev_wchr"`
	PrevWchc       int    `json:"prev_wchc"`
	Comment        string `json:"comment"`
	Assignment     string `json:"assignment"`
	PaxAssisted    string `json:"pax_assisted"`
	Watchlist      string `json:"watchlist"`
	AssignEditedBy string `json:"assign_edited_by"`
	AssignEditedAt string `json:"assign_edited_at"`

	DispatchAck   bool `json:"dispatch_ack"`
	PierAAck      bool `json:"piera_ack"`
	TBAck         bool `json:"tb_ack"`
	T1Ack         bool `json:"t1_ack"`
	UnassignedAck bool `json:"unassigned_ack"`
	GatesAck      bool `json:"gates_ack"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AckFor returns the ACK flag for a board column name.
func (f *Flight) AckFor(board string) bool {
	switch board {
	case BoardDispatch:
		return f.DispatchAck
	case BoardPierA:
		return f.PierAAck
	case BoardTB:
		return f.TBAck
	case BoardT1:
		return f.T1Ack
	case BoardUnassigned:
		return f.UnassignedAck
	case BoardGates:
		return f.GatesAck
	}
	return false
}

// ClearAcks resets all six board flags.
func (f *Flight) ClearAcks() {
	f.DispatchAck = false
	f.PierAAck = false
	f.TBAck = false
	f.T1Ack = false
	f.UnassignedAck = false
	f.GatesAck = false
}

// User roles.
const (
	RoleDispatch = "Dispatch"
	RoleLead     = "Lead"
	RoleMgmt     = "Mgmt"
)

// User is an operator account. PINs are stored as-is to match the existing
// records; see internal/auth for the comparison.
type User struct {
	Username string `json:"username"`
	Pin      string `json:"-"`
	Role     string `json:"role"`
}

// ArchiveRow is one archived flight, serialized at archive time.
type ArchiveRow struct {
	ID         int64  `json:"id"`
	OpsDate    string `json:"ops_date"` // YYYY-MM-DD local
	ArchivedAt string `json:"archived_at"`
	FlightData string `json:"flight_data"` // JSON snapshot of the Flight row
}

// ArchiveDate is one distinct archived ops day with its row count.
type ArchiveDate struct {
	Date    string `json:"date"`
	Flights int    `json:"flights"`
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
