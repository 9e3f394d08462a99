package websocket

import (
	"log/slog"
	"net/http"
	"sync"

	ws "github.com/coder/websocket"

	"github.com/getmockd/mockfirebolt/pkg/logging"
)

// DefaultMaxMessageSize is the read limit applied to accepted connections.
const DefaultMaxMessageSize = 1 << 20 // 1MB

// Server accepts the connections routed to a single user.
type Server struct {
	userID         string
	handler        Handler
	log            *slog.Logger
	maxMessageSize int64

	mu          sync.RWMutex
	connections map[string]*Connection
	current     *Connection
	listeners   []ConnectionListener
	closed      bool
}

// Option configures a Server.
type Option func(*Server)

// WithHandler sets the handler that answers inbound messages.
func WithHandler(h Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMaxMessageSize sets the per-message read limit in bytes. Values <= 0
// keep DefaultMaxMessageSize.
func WithMaxMessageSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxMessageSize = n
		}
	}
}

// NewServer creates a Server for userID.
func NewServer(userID string, opts ...Option) *Server {
	s := &Server{
		userID:         userID,
		log:            logging.Nop(),
		maxMessageSize: DefaultMaxMessageSize,
		connections:    make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID returns the user this server accepts connections for.
func (s *Server) UserID() string {
	return s.userID
}

// SetHandler replaces the message handler. Connections already being
// served pick up the new handler with their next message.
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// OnConnection registers a listener called for every emitted connection.
func (s *Server) OnConnection(fn ConnectionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// HandleUpgrade completes the WebSocket handshake for r. The returned
// connection is not yet registered or served; pass it to EmitConnection.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return nil, ErrServerClosed
	}

	wsConn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for mocking
		CompressionMode:    ws.CompressionDisabled,
	})
	if err != nil {
		return nil, err
	}
	wsConn.SetReadLimit(s.maxMessageSize)

	return NewConnection(wsConn, s.userID, r), nil
}

// EmitConnection registers conn as the user's current connection, notifies
// listeners and starts serving it in a new goroutine.
func (s *Server) EmitConnection(conn *Connection, r *http.Request) {
	s.mu.Lock()
	s.connections[conn.ID()] = conn
	s.current = conn
	listeners := make([]ConnectionListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	s.log.Info("connection established", "userId", s.userID, "connId", conn.ID(), "remoteAddr", conn.RemoteAddr())

	for _, fn := range listeners {
		fn(conn, r)
	}

	go s.serve(conn)
}

// serve runs the read loop for conn until it closes.
func (s *Server) serve(conn *Connection) {
	defer func() {
		s.remove(conn)
		_ = conn.CloseNormal()
		s.log.Info("connection closed", "userId", s.userID, "connId", conn.ID())
	}()

	for {
		msgType, data, err := conn.Read()
		if err != nil {
			return
		}

		s.mu.RLock()
		h := s.handler
		s.mu.RUnlock()
		if h == nil {
			s.log.Debug("no handler; message dropped", "userId", s.userID, "bytes", len(data))
			continue
		}

		if !s.dispatch(h, conn, msgType, data) {
			return
		}
	}
}

// dispatch runs h for one message. A panicking handler closes conn with
// CloseInternalError and dispatch returns false.
func (s *Server) dispatch(h Handler, conn *Connection, msgType MessageType, data []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panic", "userId", s.userID, "connId", conn.ID(), "panic", r)
			_ = conn.Close(CloseInternalError, "internal error")
			ok = false
		}
	}()
	h.HandleMessage(conn.Context(), conn, msgType, data)
	return true
}

// remove unregisters conn. If it was current, the most recently connected
// remaining connection becomes current.
func (s *Server) remove(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.connections, conn.ID())
	if s.current != conn {
		return
	}
	s.current = nil
	for _, c := range s.connections {
		if s.current == nil || c.ConnectedAt().After(s.current.ConnectedAt()) {
			s.current = c
		}
	}
}

// Current returns the connection most recently emitted on this server that
// is still open, or nil.
func (s *Server) Current() *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Connections returns all open connections.
func (s *Server) Connections() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conns := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	return conns
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// Broadcast sends a message to every open connection and returns how many
// sends succeeded.
func (s *Server) Broadcast(msgType MessageType, data []byte) int {
	sent := 0
	for _, conn := range s.Connections() {
		if err := conn.Send(msgType, data); err == nil {
			sent++
		}
	}
	return sent
}

// Close stops accepting upgrades and closes every open connection.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	for _, conn := range s.Connections() {
		_ = conn.Close(CloseGoingAway, "server shutting down")
	}
}
