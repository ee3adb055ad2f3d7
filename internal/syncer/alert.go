package syncer

import (
	"fmt"
	"strings"

	"paxassist/internal/store"
)

// BuildAlert renders the human-readable alert line from the row's three
// change-flag triples. It is a pure function of those columns and is rebuilt
// on every sync that touches the row.
func BuildAlert(f *store.Flight) string {
	var parts []string
	if f.GateChanged && (f.GateChgFromGate != "" || f.GateChgToGate != "") {
		parts = append(parts, fmt.Sprintf("Gate: %s -> %s", f.GateChgFromGate, f.GateChgToGate))
	}
	if f.ZoneChanged && (f.ZoneChgFrom != "" || f.ZoneChgTo != "") {
		parts = append(parts, fmt.Sprintf("Zone: %s -> %s", f.ZoneChgFrom, f.ZoneChgTo))
	}
	if f.TimeChanged {
		parts = append(parts, fmt.Sprintf("TimeDelta: %d min", f.TimeDeltaMin))
	}
	return strings.Join(parts, " | ")
}
