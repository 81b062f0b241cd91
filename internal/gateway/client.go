package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/agentloop/internal/logging"
)

// writeTimeout bounds a single frame write to a slow client.
const writeTimeout = 10 * time.Second

// Client is one authenticated socket. Writes are serialized; reads happen
// only on the connection's own read loop.
type Client struct {
	ConnID string
	Info   ClientInfo
	Auth   AuthResult
	Since  time.Time

	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// NewClient wraps a socket that has completed the connect handshake.
func NewClient(conn *websocket.Conn, info ClientInfo, auth AuthResult) *Client {
	return &Client{
		ConnID: uuid.NewString(),
		Info:   info,
		Auth:   auth,
		Since:  time.Now(),
		conn:   conn,
	}
}

// Send writes frame to the socket.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(frame)
}

// SendEvent pushes a named event.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Respond answers request reqID with payload.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError answers request reqID with an error.
func (c *Client) RespondError(reqID string, shape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, shape))
}

// ReadFrame blocks for the next message. A message that arrives but does not
// parse yields an error wrapping ErrMalformedFrame and leaves the socket
// usable.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	return ParseFrame(msg)
}

// Close closes the socket once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ClientRegistry is the set of live connections.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

// NewClientRegistry returns an empty registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client), log: log}
}

// Add tracks c under its connection ID.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	n := len(r.clients)
	r.mu.Unlock()

	r.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Int("connected", n).Msg("client connected")
}

// Remove forgets connID and reports whether it was tracked.
func (r *ClientRegistry) Remove(connID string) bool {
	r.mu.Lock()
	c, ok := r.clients[connID]
	delete(r.clients, connID)
	n := len(r.clients)
	r.mu.Unlock()

	if ok {
		r.log.Info().
			Str("connId", connID).
			Dur("duration", time.Since(c.Since)).
			Int("connected", n).
			Msg("client disconnected")
	}
	return ok
}

// Count returns the number of live connections.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes and forgets every connection, returning how many there
// were.
func (r *ClientRegistry) CloseAll() int {
	r.mu.Lock()
	closing := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range closing {
		c.Close()
	}
	return len(closing)
}
