package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"parkinglot/internal/domain/parking"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024

	statusTimeout = 2 * time.Second
)

const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventError        = "error"
)

// Event is pushed to every client subscribed to LotID. Availability is read
// from the store after the change committed; the hub keeps no spot state.
type Event struct {
	Type         string               `json:"type"`
	LotID        int64                `json:"lot_id,omitempty"`
	Payload      any                  `json:"payload,omitempty"`
	Availability *parking.StatusCount `json:"availability,omitempty"`
	At           time.Time            `json:"at"`
}

type clientMessage struct {
	Type  string `json:"type"`
	LotID int64  `json:"lot_id"`
}

// StatusSource reports the current spot counts of a lot.
type StatusSource interface {
	CountByStatus(ctx context.Context, lotID int64) (parking.StatusCount, error)
}

// connection represents a single WebSocket client
type connection struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte
	lots   map[int64]bool
	all    bool
}

func (c *connection) wants(lotID int64) bool {
	return c.all || c.lots[lotID]
}

// Hub fans lot events out to subscribed WebSocket clients.
type Hub struct {
	mu          sync.RWMutex
	connections map[*connection]struct{}
	status      StatusSource
}

func NewHub(status StatusSource) *Hub {
	return &Hub{
		connections: make(map[*connection]struct{}),
		status:      status,
	}
}

// Broadcast implements the services' Broadcaster.
func (h *Hub) Broadcast(lotID int64, eventType string, payload any) {
	ev := &Event{Type: eventType, LotID: lotID, Payload: payload, At: time.Now().UTC()}
	if eventType != parking.EventLotDeleted {
		ev.Availability = h.availability(lotID)
	}
	h.publish(ev)
}

// ConnectionCount reports how many clients are connected.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Close drops every client; their read loops then unregister them.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		_ = c.conn.Close()
	}
}

func (h *Hub) availability(lotID int64) *parking.StatusCount {
	if h.status == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	counts, err := h.status.CountByStatus(ctx, lotID)
	if err != nil {
		return nil
	}
	return &counts
}

func (h *Hub) publish(ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("live: marshal event type=%s err=%v", ev.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if !c.wants(ev.LotID) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// slow client, drop
		}
	}
}

func (h *Hub) sendTo(c *connection, ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = struct{}{}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c]; ok {
		delete(h.connections, c)
		close(c.send)
	}
}

// ServeWS registers a new connection and starts read/write loops. A zero lot
// id subscribes to every lot.
func (h *Hub) ServeWS(conn *websocket.Conn, userID int64, initialLots []int64) {
	c := &connection{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 64),
		lots:   make(map[int64]bool),
	}
	for _, id := range initialLots {
		if id == 0 {
			c.all = true
			continue
		}
		c.lots[id] = true
	}

	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *connection) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("live: read error user_id=%d err=%v", c.userID, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendTo(c, &Event{Type: EventError, Payload: "invalid json", At: time.Now().UTC()})
			continue
		}

		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if msg.LotID == 0 {
				c.all = true
			} else {
				c.lots[msg.LotID] = true
			}
			h.mu.Unlock()

			ack := &Event{Type: EventSubscribed, LotID: msg.LotID, At: time.Now().UTC()}
			if msg.LotID != 0 {
				ack.Availability = h.availability(msg.LotID)
			}
			h.sendTo(c, ack)
		case "unsubscribe":
			h.mu.Lock()
			if msg.LotID == 0 {
				c.all = false
			} else {
				delete(c.lots, msg.LotID)
			}
			h.mu.Unlock()
			h.sendTo(c, &Event{Type: EventUnsubscribed, LotID: msg.LotID, At: time.Now().UTC()})
		default:
			h.sendTo(c, &Event{Type: EventError, Payload: "unknown message type: " + msg.Type, At: time.Now().UTC()})
		}
	}
}

func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
