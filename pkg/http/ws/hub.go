package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub routes payloads to connected users by identity. One hub instance is
// created per connection purpose (matchmaking, match play), so a user can
// hold one live connection of each kind.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection // user_id -> connection
	matches     map[uuid.UUID][]uuid.UUID // match_id -> []user_id
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		matches:     make(map[uuid.UUID][]uuid.UUID),
		logger:      logger,
	}
}

// RegisterConnection adds a connection for a user.
func (h *Hub) RegisterConnection(userID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if old, exists := h.connections[userID]; exists {
		old.Close()
	}

	h.connections[userID] = conn
	h.logger.Info().Str("user_id", userID.String()).Msg("connection registered")
}

// UnregisterConnection removes a connection and its match memberships.
// The connection argument guards against a reconnect race: if the user has
// already re-registered with a newer connection, the newer one stays.
func (h *Hub) UnregisterConnection(userID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, exists := h.connections[userID]
	if !exists || (conn != nil && current != conn) {
		return
	}

	current.Close()
	delete(h.connections, userID)
	h.logger.Info().Str("user_id", userID.String()).Msg("connection unregistered")

	for matchID, users := range h.matches {
		for i, uid := range users {
			if uid == userID {
				h.matches[matchID] = append(users[:i], users[i+1:]...)
				break
			}
		}
	}
}

// JoinMatch associates a user with a match for targeted broadcasts.
func (h *Hub) JoinMatch(matchID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := h.matches[matchID]
	for _, uid := range users {
		if uid == userID {
			return // already joined
		}
	}
	h.matches[matchID] = append(users, userID)
}

// LeaveMatch removes a user from a match group.
func (h *Hub) LeaveMatch(matchID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := h.matches[matchID]
	for i, uid := range users {
		if uid == userID {
			h.matches[matchID] = append(users[:i], users[i+1:]...)
			break
		}
	}
	if len(h.matches[matchID]) == 0 {
		delete(h.matches, matchID)
	}
}

// BroadcastToMatch sends a payload to all connected players in a match.
// Disconnected members are skipped; the match keeps running without them.
func (h *Hub) BroadcastToMatch(matchID uuid.UUID, payload any) error {
	h.mu.RLock()
	users := make([]uuid.UUID, len(h.matches[matchID]))
	copy(users, h.matches[matchID])
	h.mu.RUnlock()

	var firstErr error
	for _, userID := range users {
		if err := h.SendToUser(userID, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendToUser delivers a payload to a specific user's connection.
func (h *Hub) SendToUser(userID uuid.UUID, payload any) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}

	return conn.Send(payload)
}

// Connection represents a WebSocket connection with a buffered send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan any
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan any, 256),
		logger: logger,
	}
}

// Send queues a payload for delivery.
func (c *Connection) Send(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- payload:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	if c.conn != nil {
		c.conn.Close()
	}
}

// WritePump sends payloads from the send queue until the queue closes.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for payload := range c.sendCh {
		if err := c.conn.WriteJSON(payload); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump receives messages and calls the handler until the peer disconnects.
func (c *Connection) ReadPump(handler func(ClientMessage) error) {
	defer c.conn.Close()

	// Set read deadline to 60 seconds, extend on pong
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		// Malformed frames are dropped; the connection stays open.
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("malformed client message")
			continue
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "User connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
