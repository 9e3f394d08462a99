package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

// Connection represents an accepted client WebSocket connection.
type Connection struct {
	id            string
	userID        string
	remoteAddr    string
	conn          *ws.Conn
	connectedAt   time.Time
	lastMessageAt atomic.Value // time.Time
	messagesSent  atomic.Int64
	messagesRecv  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	sendMu sync.RWMutex // Coordinates Send with Close
	closed atomic.Bool
}

// NewConnection creates a new Connection wrapping a websocket.Conn.
func NewConnection(wsConn *ws.Conn, userID string, r *http.Request) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Connection{
		id:          uuid.NewString(),
		userID:      userID,
		conn:        wsConn,
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
	if r != nil {
		c.remoteAddr = r.RemoteAddr
	}
	c.lastMessageAt.Store(c.connectedAt)

	return c
}

// ID returns the unique connection ID.
func (c *Connection) ID() string {
	return c.id
}

// UserID returns the session this connection was routed to.
func (c *Connection) UserID() string {
	return c.userID
}

// RemoteAddr returns the client address captured at upgrade time.
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// ConnectedAt returns the connection establishment time.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// LastMessageAt returns the last message time.
func (c *Connection) LastMessageAt() time.Time {
	t, ok := c.lastMessageAt.Load().(time.Time)
	if !ok {
		return c.connectedAt
	}
	return t
}

// Context returns the connection context. It is cancelled on Close.
func (c *Connection) Context() context.Context {
	return c.ctx
}

// IsClosed returns whether the connection is closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Send sends a message to the client.
func (c *Connection) Send(msgType MessageType, data []byte) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	wsType := ws.MessageText
	if msgType == MessageBinary {
		wsType = ws.MessageBinary
	}

	if err := c.conn.Write(c.ctx, wsType, data); err != nil {
		return err
	}

	c.messagesSent.Add(1)
	c.lastMessageAt.Store(time.Now())
	return nil
}

// SendText sends a text message.
func (c *Connection) SendText(text string) error {
	return c.Send(MessageText, []byte(text))
}

// SendJSON sends v encoded as a JSON text message.
func (c *Connection) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(MessageText, data)
}

// Read reads the next message from the connection.
func (c *Connection) Read() (MessageType, []byte, error) {
	// Read blocks on I/O, so it does not take sendMu. Close cancels the
	// context, which unblocks it.
	if c.closed.Load() {
		return 0, nil, ErrConnectionClosed
	}

	wsType, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return 0, nil, err
	}

	c.messagesRecv.Add(1)
	c.lastMessageAt.Store(time.Now())

	if wsType == ws.MessageBinary {
		return MessageBinary, data, nil
	}
	return MessageText, data, nil
}

// Close closes the connection with the given close code and reason.
func (c *Connection) Close(code CloseCode, reason string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed.Swap(true) {
		return ErrConnectionClosed
	}

	c.cancel()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close(ws.StatusCode(code), reason)
}

// CloseNormal closes the connection with normal closure.
func (c *Connection) CloseNormal() error {
	return c.Close(CloseNormalClosure, "")
}

// Info returns public information about this connection.
func (c *Connection) Info() *ConnectionInfo {
	return &ConnectionInfo{
		ID:               c.id,
		UserID:           c.userID,
		RemoteAddr:       c.remoteAddr,
		ConnectedAt:      c.connectedAt,
		LastMessageAt:    c.LastMessageAt(),
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesRecv.Load(),
	}
}
