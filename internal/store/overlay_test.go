package store

import (
	"testing"
	"time"
)

func TestOverlayApply(t *testing.T) {
	o := NewOverlay()
	o.Put("k1", map[string]any{"wchr": 3, "comment": "curbside"})
	o.Put("k1", map[string]any{"wchc": 1}) // merges with the live patch

	f := Flight{Key: "k1", Wchr: 0, Comment: "old"}
	o.Apply(&f)
	if f.Wchr != 3 || f.Wchc != 1 || f.Comment != "curbside" {
		t.Errorf("apply = %+v", f)
	}

	other := Flight{Key: "k2", Comment: "untouched"}
	o.Apply(&other)
	if other.Comment != "untouched" {
		t.Error("patch leaked onto another key")
	}
}

func TestOverlayAcksAndZonePrev(t *testing.T) {
	o := NewOverlay()
	o.Put("k1", map[string]any{BoardDispatch: true, BoardTB: true, "zone_prev": ""})

	f := Flight{Key: "k1", ZonePrev: ZoneTB}
	o.Apply(&f)
	if !f.DispatchAck || !f.TBAck {
		t.Errorf("acks = %+v", f)
	}
	if f.ZonePrev != "" {
		t.Errorf("zone_prev = %q, want cleared", f.ZonePrev)
	}
}

func TestOverlayExpiry(t *testing.T) {
	o := NewOverlay()
	o.ttl = 10 * time.Millisecond
	o.Put("k1", map[string]any{"wchr": 5})

	time.Sleep(20 * time.Millisecond)

	f := Flight{Key: "k1", Wchr: 1}
	o.Apply(&f)
	if f.Wchr != 1 {
		t.Errorf("expired patch applied: wchr = %d", f.Wchr)
	}
}
