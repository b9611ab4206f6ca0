package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one message delivered to subscribers.
type Event struct {
	Room      string    `json:"room"`
	UnitID    uuid.UUID `json:"unitId"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Event type names match the real-time transport contract (spec §6).
const (
	EventTypeReadingBatch      = "sensor:readings:batch"
	EventTypeAlertTriggered    = "alert:triggered"
	EventTypeAlertEscalated    = "alert:escalated"
	EventTypeAlertResolved     = "alert:resolved"
	EventTypeAlertAcknowledged = "alert:acknowledged"
	EventTypeUnitStateChanged  = "unit:state:changed"
	EventTypeMetricsUpdated    = "metrics:updated"
)

// roomsForUnit returns the tenant, site, and unit room names a reading or
// alert event for this unit should fan out to (spec §4.7: clients can
// subscribe at any of the three granularities). siteID is the zero UUID
// when the caller does not have it on hand (the stream buffer's flush path
// only tracks tenant/unit), in which case the site room is omitted.
func roomsForUnit(tenantID, siteID, unitID uuid.UUID) []string {
	tenantRoom := "tenant:" + tenantID.String()
	rooms := []string{tenantRoom, tenantRoom + ":unit:" + unitID.String()}
	if siteID != uuid.Nil {
		rooms = append(rooms, tenantRoom+":site:"+siteID.String())
	}
	return rooms
}

// Client is a single subscriber connection, transport-agnostic: Hub only
// ever writes to send and reads subscription changes from setRooms.
type Client struct {
	hub   *Hub
	send  chan Event
	rooms map[string]bool
	mu    sync.RWMutex
}

// Recv returns the channel of events delivered to this client, for
// transports (and tests) that want to read them directly rather than via
// writePump.
func (c *Client) Recv() <-chan Event {
	return c.send
}

func (c *Client) wantsRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

func (c *Client) setRooms(rooms []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = make(map[string]bool, len(rooms))
	for _, r := range rooms {
		c.rooms[r] = true
	}
}

// Hub is the subscription fan-out point for live readings and alert
// transitions. One Hub serves every tenant; room names are namespaced by
// tenant ID so a client can never subscribe across tenants without the
// server explicitly handing it that tenant's room name.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger
	mu         sync.RWMutex
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wantsRoom(ev.Room) {
					continue
				}
				select {
				case c.send <- ev:
				default:
					h.logger.Warn("subscriber send buffer full, dropping slow client")
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// PublishReadingBatch fans a flushed buffer batch out to the tenant and
// unit rooms for that unit.
func (h *Hub) PublishReadingBatch(batch Batch) {
	for _, room := range roomsForUnit(batch.TenantID, uuid.Nil, batch.UnitID) {
		h.broadcast <- Event{Room: room, UnitID: batch.UnitID, Type: EventTypeReadingBatch, Timestamp: time.Now(), Data: batch.Samples}
	}
}

// PublishAlertChange fans an alert lifecycle transition out to the same
// rooms under eventType, one of the alert:* contract names so subscribers
// can tell a trigger from an escalation from a resolution (spec §6).
func (h *Hub) PublishAlertChange(tenantID, siteID, unitID uuid.UUID, eventType string, alert any) {
	for _, room := range roomsForUnit(tenantID, siteID, unitID) {
		h.broadcast <- Event{Room: room, UnitID: unitID, Type: eventType, Timestamp: time.Now(), Data: alert}
	}
}

// UnitStateChange is the payload of a unit:state:changed event (spec §4.8).
type UnitStateChange struct {
	PreviousState string    `json:"previousState"`
	NewState      string    `json:"newState"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// PublishUnitStateChanged fans a dashboard-state transition out to the
// tenant and unit rooms (and the site room, when known).
func (h *Hub) PublishUnitStateChanged(tenantID, siteID, unitID uuid.UUID, previousState, newState, reason string) {
	data := UnitStateChange{PreviousState: previousState, NewState: newState, Reason: reason, Timestamp: time.Now()}
	for _, room := range roomsForUnit(tenantID, siteID, unitID) {
		h.broadcast <- Event{Room: room, UnitID: unitID, Type: EventTypeUnitStateChanged, Timestamp: data.Timestamp, Data: data}
	}
}

// PublishMetricsUpdated fans an updated metric bucket out to the tenant and
// unit rooms after an aggregator upsert (spec §4.5 / §6).
func (h *Hub) PublishMetricsUpdated(tenantID, siteID, unitID uuid.UUID, bucket any) {
	for _, room := range roomsForUnit(tenantID, siteID, unitID) {
		h.broadcast <- Event{Room: room, UnitID: unitID, Type: EventTypeMetricsUpdated, Timestamp: time.Now(), Data: bucket}
	}
}

// NewClient registers a client subscribed to rooms.
func (h *Hub) NewClient(rooms []string) *Client {
	c := &Client{hub: h, send: make(chan Event, 256)}
	c.setRooms(rooms)
	h.register <- c
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}
