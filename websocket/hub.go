package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/social_messaging/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	EventMessage        = "message"
	EventMessageRead    = "message_read"
	EventMessageDeleted = "message_deleted"
	EventNotification   = "notification"
	EventConnected      = "connected"
)

const (
	// clientQueueSize bounds the frames waiting for one connection.
	clientQueueSize = 64
	writeWait       = 10 * time.Second
)

var ErrHubBusy = errors.New("realtime hub queue is full")

// Conn is the subset of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one registered connection. Register and Unregister must be given the
// same pointer.
type Client struct {
	UserID uuid.UUID
	Conn   Conn
	send   chan Event
	done   chan struct{}
}

// Done is closed once the hub will no longer write to the client's connection. It is
// only closed for clients whose Register returned true.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Event is the frame pushed to clients. Only users listed in Audience receive it.
type Event struct {
	ID       uuid.UUID   `json:"id"`
	Type     string      `json:"event"`
	Data     interface{} `json:"data"`
	Audience []uuid.UUID `json:"-"`
}

type Hub struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}
	queueSize  int
	log        *logrus.Entry
}

func NewHub(bufferSize int, log *logrus.Entry) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, bufferSize),
		done:       make(chan struct{}),
		queueSize:  clientQueueSize,
		log:        log,
	}
}

// Register returns false when the hub has already stopped. Once it returns true, every
// event published afterwards is considered for the client.
func (h *Hub) Register(c *Client) bool {
	c.send = make(chan Event, h.queueSize)
	c.done = make(chan struct{})
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event without waiting for delivery.
func (h *Hub) Publish(ev Event) error {
	select {
	case h.broadcast <- ev:
		metrics.EventsPublished.WithLabelValues(ev.Type, "accepted").Inc()
		return nil
	default:
		metrics.EventsPublished.WithLabelValues(ev.Type, "dropped").Inc()
		return ErrHubBusy
	}
}

// Run owns the connection map until ctx is cancelled, then closes every connection.
// It never writes to a connection itself; each client has its own writer goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.log.WithField("user_id", client.UserID).Debug("Client unregistered")
			h.remove(client)
		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

func (h *Hub) add(c *Client) {
	conns, ok := h.clients[c.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[c.UserID] = conns
	}
	conns[c] = struct{}{}
	metrics.ConnectedClients.Inc()
	h.log.WithField("user_id", c.UserID).Debug("Client registered")

	go h.writePump(c)
}

func (h *Hub) deliver(ev Event) {
	seen := make(map[uuid.UUID]struct{}, len(ev.Audience))
	for _, userID := range ev.Audience {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		for client := range h.clients[userID] {
			select {
			case client.send <- ev:
			default:
				h.log.WithField("user_id", userID).Warn("Client queue full, dropping connection")
				client.Conn.Close()
				h.remove(client)
			}
		}
	}
}

// writePump writes queued events until the hub closes the queue. After a failed write
// the connection is closed and the rest of the queue is discarded.
func (h *Hub) writePump(c *Client) {
	defer close(c.done)
	broken := false
	for ev := range c.send {
		if broken {
			continue
		}
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteJSON(ev); err != nil {
			h.log.WithError(err).WithField("user_id", c.UserID).Warn("Error sending event to client")
			broken = true
			c.Conn.Close()
			h.Unregister(c)
			continue
		}
		metrics.EventsDelivered.WithLabelValues(ev.Type).Inc()
	}
}

func (h *Hub) remove(c *Client) {
	conns, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	metrics.ConnectedClients.Dec()
	if len(conns) == 0 {
		delete(h.clients, c.UserID)
	}
}

func (h *Hub) closeAll() {
	for _, conns := range h.clients {
		for client := range conns {
			client.Conn.Close()
			h.remove(client)
		}
	}
}
