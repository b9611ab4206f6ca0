package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/frostguard/core/pkg/hierarchy"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler upgrades a request to a persistent bidirectional connection and
// subscribes the client to its tenant's room by default (spec §4.7: a
// dashboard client without an explicit subscribe message should still see
// tenant-wide activity).
type Handler struct {
	Hub    *Hub
	Logger *slog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info := hierarchy.FromContext(r.Context())
	if info == nil {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	tenantRoom := "tenant:" + info.ID.String()
	client := h.Hub.NewClient([]string{tenantRoom})

	go writePump(conn, client, h.Logger)
	go readPump(conn, client, h.Hub, tenantRoom, h.Logger)
}

// subscribeMessage is the only inbound frame the transport understands: a
// client narrows or widens its room set by sending a new room list. Rooms
// outside the client's own tenant are dropped from the list.
type subscribeMessage struct {
	Subscribe []string `json:"subscribe"`
}

func writePump(conn *websocket.Conn, c *Client, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(conn *websocket.Conn, c *Client, hub *Hub, tenantRoom string, logger *slog.Logger) {
	defer func() {
		hub.Unregister(c)
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Subscribe != nil {
			rooms := make([]string, 0, len(msg.Subscribe))
			for _, room := range msg.Subscribe {
				if room == tenantRoom || strings.HasPrefix(room, tenantRoom+":") {
					rooms = append(rooms, room)
				}
			}
			c.setRooms(rooms)
			logger.Debug("stream client updated subscription", "rooms", rooms)
		}
	}
}
