package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/logging"
	"github.com/gorilla/websocket"
)

const (
	defaultQueueSize = 64
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 4096
)

// RoomAuthorizer decides whether userID may join room.
type RoomAuthorizer func(ctx context.Context, userID int64, room string) error

type HubOption func(*Hub)

func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

func WithAuthorizer(a RoomAuthorizer) HubOption {
	return func(h *Hub) {
		h.authorize = a
	}
}

// Hub tracks room membership of socket clients. Each client owns a bounded
// queue; a publish to a full queue drops the frame for that client.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[*client]struct{}
	queueSize int
	authorize RoomAuthorizer
	logger    logging.Logger
}

func NewHub(logger logging.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		rooms:     map[string]map[*client]struct{}{},
		queueSize: defaultQueueSize,
		logger:    logger.With("module", "events"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Publish encodes the event once and offers it to every client in room.
func (h *Hub) Publish(ctx context.Context, room, name string, data any) {
	frame, err := json.Marshal(Event{Name: name, Data: data})
	if err != nil {
		h.logger.Error(ctx, "encode event", "event", name, "error", err)
		return
	}

	h.mu.RLock()
	subs := make([]*client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	for _, c := range subs {
		if !c.deliver(frame) {
			h.logger.Warn(ctx, "event dropped", "event", name, "room", room, "user_id", c.userID)
		}
	}
}

// RoomSize reports the number of clients currently in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = map[*client]struct{}{}
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, room)
}

func (h *Hub) removeLocked(c *client, room string) {
	if subs := h.rooms[room]; subs != nil {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	for room := range c.rooms {
		h.removeLocked(c, room)
	}
	h.mu.Unlock()
	c.close()
}

type clientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

type ackData struct {
	Room    string `json:"room"`
	Message string `json:"message,omitempty"`
}

// Serve runs the client loop for an upgraded connection until the peer
// goes away or ctx is done. It owns conn and closes it.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, userID int64) {
	c := newClient(userID, h.queueSize)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop(conn)
	}()

	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	h.logger.Debug(ctx, "client connected", "user_id", userID)
	h.readLoop(ctx, conn, c)
	h.drop(c)
	<-done
	_ = conn.Close()
	h.logger.Debug(ctx, "client disconnected", "user_id", userID)
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug(ctx, "socket read", "user_id", c.userID, "error", err)
			}
			return
		}
		h.handle(ctx, c, msg)
	}
}

func (h *Hub) handle(ctx context.Context, c *client, msg clientMessage) {
	switch msg.Action {
	case "join":
		if _, _, err := ParseRoom(msg.Room); err != nil {
			c.reply("error", ackData{Room: msg.Room, Message: "unknown room"})
			return
		}
		if h.authorize != nil {
			if err := h.authorize(ctx, c.userID, msg.Room); err != nil {
				c.reply("error", ackData{Room: msg.Room, Message: "access denied"})
				return
			}
		}
		h.join(c, msg.Room)
		c.reply("joined", ackData{Room: msg.Room})
	case "leave":
		h.leave(c, msg.Room)
		c.reply("left", ackData{Room: msg.Room})
	default:
		c.reply("error", ackData{Room: msg.Room, Message: "unknown action"})
	}
}

type client struct {
	userID int64
	send   chan []byte
	rooms  map[string]struct{} // guarded by Hub.mu

	closeMu sync.Mutex
	closed  bool
}

func newClient(userID int64, queueSize int) *client {
	return &client{
		userID: userID,
		send:   make(chan []byte, queueSize),
		rooms:  map[string]struct{}{},
	}
}

// deliver enqueues frame without blocking and reports whether it fit.
func (c *client) deliver(frame []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) reply(name string, data any) {
	frame, err := json.Marshal(Event{Name: name, Data: data})
	if err == nil {
		c.deliver(frame)
	}
}

func (c *client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) writeLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				// drain so deliver never blocks on a dead socket
				for range c.send {
				}
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				for range c.send {
				}
				return
			}
		}
	}
}
