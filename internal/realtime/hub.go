package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Tables that clients may subscribe to.
const (
	TopicStudents        = "estudiantes"
	TopicClinicalRecords = "expedientes"
	TopicConsultations   = "consultas"
	TopicInventory       = "inventario"
)

// Change types carried by events.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

var knownTopics = map[string]struct{}{
	TopicStudents:        {},
	TopicClinicalRecords: {},
	TopicConsultations:   {},
	TopicInventory:       {},
}

// Event is a row change pushed to subscribers of a table.
type Event struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	RecordID  string          `json:"record_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is an inbound subscription command.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type client struct {
	id     string
	topics map[string]struct{}
	send   chan []byte
}

// Options tunes the hub.
type Options struct {
	SendBuffer   int
	PingInterval time.Duration
	// OnClientCount observes connects (+1) and disconnects (-1).
	OnClientCount func(delta int)
	Logger        *zap.Logger
}

// Hub tracks websocket clients and their table subscriptions.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*client]struct{}
	clients map[*client]struct{}
	opts    Options
	logger  *zap.Logger
}

// NewHub creates a hub ready to accept connections.
func NewHub(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics:  make(map[string]map[*client]struct{}),
		clients: make(map[*client]struct{}),
		opts:    opts,
		logger:  logger,
	}
}

// Publish encodes data and broadcasts the change to the table's subscribers.
func (h *Hub) Publish(_ context.Context, eventType, table, recordID string, data interface{}) error {
	event := Event{Type: eventType, Table: table, RecordID: recordID, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		event.Data = raw
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[table] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("realtime client buffer full, dropping event", zap.String("client", c.id), zap.String("table", table))
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TopicCount returns the number of subscribers of a table.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Serve runs the read and write pumps for an upgraded connection and blocks
// until the client disconnects or ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	c := &client{id: uuid.NewString(), topics: map[string]struct{}{}, send: make(chan []byte, h.opts.SendBuffer)}
	h.register(c)
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.writePump(ctx, c, conn)

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("realtime read failed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
		h.process(c, msg)
	}
}

func (h *Hub) writePump(ctx context.Context, c *client, conn *websocket.Conn) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case payload := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) process(c *client, msg ClientMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range msg.Topics {
		if _, ok := knownTopics[topic]; !ok {
			continue
		}
		switch msg.Action {
		case "subscribe":
			if h.topics[topic] == nil {
				h.topics[topic] = make(map[*client]struct{})
			}
			h.topics[topic][c] = struct{}{}
			c.topics[topic] = struct{}{}
		case "unsubscribe":
			h.removeTopic(c, topic)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.opts.OnClientCount != nil {
		h.opts.OnClientCount(1)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	for topic := range c.topics {
		h.removeTopic(c, topic)
	}
	delete(h.clients, c)
	h.mu.Unlock()
	if h.opts.OnClientCount != nil {
		h.opts.OnClientCount(-1)
	}
}

// removeTopic must be called with h.mu held.
func (h *Hub) removeTopic(c *client, topic string) {
	delete(c.topics, topic)
	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}
