package api

import (
	"sort"

	"paxassist/internal/store"
)

// Row is the camelCased board projection of a flight.
type Row struct {
	Key        string `json:"key"`
	OpsDate    string `json:"opsDate"`
	Type       string `json:"type"`
	Flight     string `json:"flight"`
	OriginDest string `json:"originDest"`
	Gate       string `json:"gate"`
	Sched      string `json:"sched"`
	TimeEst    string `json:"timeEst"`

	ZoneCurrent  string `json:"zoneCurrent"`
	ZonePrevious string `json:"zonePrevious"`
	ZonePrev     string `json:"zonePrev"`

	GateChanged     bool   `json:"gateChanged"`
	GateChgFromGate string `json:"gateChgFromGate"`
	GateChgToGate   string `json:"gateChgToGate"`
	GateChgFromZone string `json:"gateChgFromZone"`
	GateChgToZone   string `json:"gateChgToZone"`

	ZoneChanged bool   `json:"zoneChanged"`
	ZoneChgFrom string `json:"zoneChgFrom"`
	ZoneChgTo   string `json:"zoneChgTo"`

	TimeChanged  bool   `json:"timeChanged"`
	TimePrevEst  string `json:"timePrevEst"`
	TimeDeltaMin int    `json:"timeDeltaMin"`

	AlertText string `json:"alertText"`

	Wchr           int    `json:"wchr"`
	Wchc           int    `json:"wchc"`
	PrevWchr       int    `json:"prevWchr"`
	PrevWchc       int    `json:"prevWchc"`
	Comment        string `json:"comment"`
	Assignment     string `json:"assignment"`
	PaxAssisted    string `json:"paxAssisted"`
	Watchlist      string `json:"watchlist"`
	AssignEditedBy string `json:"assignEditedBy"`
	AssignEditedAt string `json:"assignEditedAt"`

	DispatchAck   bool `json:"dispatchAck"`
	PierAAck      bool `json:"pierAAck"`
	TBAck         bool `json:"tbAck"`
	T1Ack         bool `json:"t1Ack"`
	UnassignedAck bool `json:"unassignedAck"`
	GatesAck      bool `json:"gatesAck"`

	UpdatedAt string `json:"updatedAt"`
}

func toRow(f store.Flight) Row {
	return Row{
		Key:        f.Key,
		OpsDate:    f.OpsDate,
		Type:       f.Type,
		Flight:     f.Flight,
		OriginDest: f.OriginDest,
		Gate:       f.Gate,
		Sched:      f.Sched,
		TimeEst:    f.TimeEst,

		ZoneCurrent:  f.ZoneCurrent,
		ZonePrevious: f.ZonePrevious,
		ZonePrev:     f.ZonePrev,

		GateChanged:     f.GateChanged,
		GateChgFromGate: f.GateChgFromGate,
		GateChgToGate:   f.GateChgToGate,
		GateChgFromZone: f.GateChgFromZone,
		GateChgToZone:   f.GateChgToZone,

		ZoneChanged: f.ZoneChanged,
		ZoneChgFrom: f.ZoneChgFrom,
		ZoneChgTo:   f.ZoneChgTo,

		TimeChanged:  f.TimeChanged,
		TimePrevEst:  f.TimePrevEst,
		TimeDeltaMin: f.TimeDeltaMin,

		AlertText: f.AlertText,

		Wchr:           f.Wchr,
		Wchc:           f.Wchc,
		PrevWchr:       f.PrevWchr,
		PrevWchc:       f.PrevWchc,
		Comment:        f.Comment,
		Assignment:     f.Assignment,
		PaxAssisted:    f.PaxAssisted,
		Watchlist:      f.Watchlist,
		AssignEditedBy: f.AssignEditedBy,
		AssignEditedAt: f.AssignEditedAt,

		DispatchAck:   f.DispatchAck,
		PierAAck:      f.PierAAck,
		TBAck:         f.TBAck,
		T1Ack:         f.T1Ack,
		UnassignedAck: f.UnassignedAck,
		GatesAck:      f.GatesAck,

		UpdatedAt: f.UpdatedAt,
	}
}

// blankSeenChanges clears the alert and change fields for a row the
// dispatcher already acknowledged.
func blankSeenChanges(row *Row) {
	row.AlertText = ""
	row.GateChanged = false
	row.GateChgFromGate = ""
	row.GateChgToGate = ""
	row.GateChgFromZone = ""
	row.GateChgToZone = ""
	row.ZoneChanged = false
	row.ZoneChgFrom = ""
	row.ZoneChgTo = ""
	row.TimeChanged = false
	row.TimePrevEst = ""
	row.TimeDeltaMin = 0
}

// sortRows orders rows by estimated time ascending, then key for stability.
func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TimeEst != rows[j].TimeEst {
			return rows[i].TimeEst < rows[j].TimeEst
		}
		return rows[i].Key < rows[j].Key
	})
}
