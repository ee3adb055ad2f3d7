package store

import (
	"sync"
	"time"
)

// overlayTTL bounds how long a patch masks the store. The store remains the
// source of truth; the overlay only papers over read-after-write latency in
// the deployment environment.
const overlayTTL = 12 * time.Second

type patchEntry struct {
	fields    map[string]any
	expiresAt time.Time
}

// Overlay is a process-local write-through patch map. Every successful
// mutation installs the projected view of the columns it changed; reads merge
// the patch onto the row fetched from the store until the patch expires.
type Overlay struct {
	mu      sync.Mutex
	ttl     time.Duration
	patches map[string]patchEntry
}

// NewOverlay returns an overlay with the standard TTL.
func NewOverlay() *Overlay {
	return &Overlay{ttl: overlayTTL, patches: make(map[string]patchEntry)}
}

// Put installs or extends the patch for a key, merging onto any live patch.
func (o *Overlay) Put(key string, fields map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	merged := make(map[string]any, len(fields))
	if prev, ok := o.patches[key]; ok && now.Before(prev.expiresAt) {
		for k, v := range prev.fields {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	o.patches[key] = patchEntry{fields: merged, expiresAt: now.Add(o.ttl)}
}

// Apply merges a live patch for f.Key onto f. Expired patches are dropped.
func (o *Overlay) Apply(f *Flight) {
	o.mu.Lock()
	entry, ok := o.patches[f.Key]
	if ok && !time.Now().Before(entry.expiresAt) {
		delete(o.patches, f.Key)
		ok = false
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	for col, v := range entry.fields {
		switch col {
		case "wchr":
			f.Wchr = asInt(v)
		case "wchc":
			f.Wchc = asInt(v)
		case "prev_wchr":
			f.PrevWchr = asInt(v)
		case "prev_wchc":
			f.PrevWchc = asInt(v)
		case "comment":
			f.Comment = asString(v)
		case "assignment":
			f.Assignment = asString(v)
		case "pax_assisted":
			f.PaxAssisted = asString(v)
		case "watchlist":
			f.Watchlist = asString(v)
		case "assign_edited_by":
			f.AssignEditedBy = asString(v)
		case "assign_edited_at":
			f.AssignEditedAt = asString(v)
		case "zone_prev":
			f.ZonePrev = asString(v)
		case BoardDispatch:
			f.DispatchAck = asBool(v)
		case BoardPierA:
			f.PierAAck = asBool(v)
		case BoardTB:
			f.TBAck = asBool(v)
		case BoardT1:
			f.T1Ack = asBool(v)
		case BoardUnassigned:
			f.UnassignedAck = asBool(v)
		case BoardGates:
			f.GatesAck = asBool(v)
		}
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	}
	return false
}
