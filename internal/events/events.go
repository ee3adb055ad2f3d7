// Package events publishes flight-change notifications to NATS so other
// airport systems can react without polling the API. Publishing is fire and
// forget; a broker outage never blocks or fails a sync run.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"paxassist/internal/store"
)

// SubjectFlightChanges is the subject change events go out on.
const SubjectFlightChanges = "paxassist.flight.changes"

// ChangeEvent is the wire shape of one flagged flight.
type ChangeEvent struct {
	Key         string `json:"key"`
	Flight      string `json:"flight"`
	Type        string `json:"type"`
	ZoneCurrent string `json:"zoneCurrent"`
	GateChanged bool   `json:"gateChanged"`
	ZoneChanged bool   `json:"zoneChanged"`
	TimeChanged bool   `json:"timeChanged"`
	AlertText   string `json:"alertText"`
	At          string `json:"at"`
}

// NATSPublisher sends change events to a NATS server.
type NATSPublisher struct {
	conn *nats.Conn
}

// Connect dials the NATS server. The connection reconnects on its own; a URL
// of "" is a configuration error handled by the caller.
func Connect(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("paxassist"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

// FlightChanged publishes one change event. Errors are logged and dropped.
func (p *NATSPublisher) FlightChanged(_ context.Context, f store.Flight) {
	ev := ChangeEvent{
		Key:         f.Key,
		Flight:      f.Flight,
		Type:        f.Type,
		ZoneCurrent: f.ZoneCurrent,
		GateChanged: f.GateChanged,
		ZoneChanged: f.ZoneChanged,
		TimeChanged: f.TimeChanged,
		AlertText:   f.AlertText,
		At:          f.UpdatedAt,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("events: marshal %s: %v", f.Key, err)
		return
	}
	if err := p.conn.Publish(SubjectFlightChanges, b); err != nil {
		log.Printf("events: publish %s: %v", f.Key, err)
	}
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
