// Package zone classifies a flight to the terminal zone that handles it.
// Classification is a pure function of the FIDS gate/terminal, the flight
// direction, the origin-or-destination region and the gate override table.
package zone

import (
	"strconv"
	"strings"

	"paxassist/internal/store"
)

// Regions derived from the origin/destination IATA code.
const (
	RegionDomestic = "DOM"
	RegionUS       = "US"
	RegionIntl     = "INTL"
)

// Override values with special meaning. Any other override value is returned
// verbatim as the zone.
const (
	OverrideSwingDoor  = "SWINGDOOR"
	OverrideUnassigned = "UNASSIGNED"
)

var pierAGates = map[string]bool{
	"B2A": true, "B2C": true, "B3": true, "B4": true, "B5": true,
	"B20": true, "B22": true,
}

var tbGates = map[string]bool{
	"A6": true, "A7": true, "A8": true, "A9": true, "A10": true,
	"A11": true, "A12": true, "A13": true, "A14": true, "A15": true,
}

// Input carries everything the classifier looks at.
type Input struct {
	Type      string // store.TypeArrival or store.TypeDeparture
	Gate      string // raw FIDS gate
	Terminal  string // raw FIDS terminal
	Region    string // RegionDomestic, RegionUS, RegionIntl or ""
	Overrides map[string]string
}

// NormalizeGate canonicalizes a raw FIDS gate string: uppercase, a leading
// "GATE " stripped, whitespace and hyphens removed.
func NormalizeGate(gate string) string {
	g := strings.ToUpper(strings.TrimSpace(gate))
	g = strings.TrimPrefix(g, "GATE ")
	g = strings.ReplaceAll(g, " ", "")
	g = strings.ReplaceAll(g, "-", "")
	return g
}

// Region maps an IATA code to its region: the US set, Canadian 'Y' codes,
// everything else international. Empty codes stay empty.
func Region(iata string, us map[string]bool) string {
	code := strings.ToUpper(strings.TrimSpace(iata))
	if code == "" {
		return ""
	}
	if us[code] {
		return RegionUS
	}
	if code[0] == 'Y' {
		return RegionDomestic
	}
	return RegionIntl
}

// Classify returns the canonical zone for the input. First match wins:
// override, no-gate terminal fallback, named gate sets, numeric gate ranges,
// terminal fallback.
func Classify(in Input) string {
	gate := NormalizeGate(in.Gate)

	if v, ok := in.Overrides[gate]; ok && gate != "" {
		switch collapse(v) {
		case OverrideSwingDoor:
			return resolveSwingDoor(in.Type, in.Region)
		case OverrideUnassigned:
			return store.ZoneUnassigned
		}
		return v
	}

	if gate == "" {
		if isT1(in.Terminal) {
			return store.ZoneT1
		}
		return store.ZoneUnassigned
	}

	if pierAGates[gate] {
		return store.ZonePierA
	}
	if tbGates[gate] {
		return store.ZoneTB
	}

	if n, ok := gateNumber(gate); ok {
		switch {
		case n >= 23 && n <= 41:
			return store.ZoneGates
		case n >= 15 && n <= 19:
			return resolveSwingDoor(in.Type, in.Region)
		}
	}

	if isT1(in.Terminal) {
		return store.ZoneT1
	}
	return store.ZoneUnassigned
}

// resolveSwingDoor decides which side of the swing doors handles the flight.
func resolveSwingDoor(typ, region string) string {
	switch region {
	case RegionUS:
		return store.ZoneTB
	case RegionIntl:
		if typ == store.TypeArrival {
			return store.ZoneTB
		}
		return store.ZonePierA
	case RegionDomestic:
		return store.ZonePierA
	}
	return store.ZoneTB
}

func isT1(terminal string) bool {
	t := strings.ToUpper(strings.TrimSpace(terminal))
	return t == "1" || t == "T1"
}

// collapse uppercases and strips all whitespace for override-token matching.
func collapse(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "")
}

// gateNumber extracts the numeric portion of a normalized gate, e.g. 24 from
// "C24".
func gateNumber(gate string) (int, bool) {
	start := -1
	for i, r := range gate {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			n, err := strconv.Atoi(gate[start:i])
			return n, err == nil
		}
	}
	if start < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(gate[start:])
	return n, err == nil
}
