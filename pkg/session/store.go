package session

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/getmockd/mockfirebolt/pkg/logging"
	"github.com/getmockd/mockfirebolt/pkg/mockstate"
	"github.com/getmockd/mockfirebolt/pkg/websocket"
)

// Store is a thread-safe in-memory registry of sessions keyed by user id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	factory        HandlerFactory
	maxMessageSize int64
	log            *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithHandlerFactory sets the factory used to attach a message handler to
// every new session.
func WithHandlerFactory(f HandlerFactory) Option {
	return func(s *Store) {
		s.factory = f
	}
}

// WithMaxMessageSize sets the read limit of each session's server. Zero
// keeps websocket.DefaultMaxMessageSize.
func WithMaxMessageSize(n int64) Option {
	return func(s *Store) {
		s.maxMessageSize = n
	}
}

// WithLogger sets the logger passed to each session's server.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddUser registers a session for userID. If one already exists it is
// returned unchanged and created is false.
func (s *Store) AddUser(userID string) (sess *Session, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[userID]; ok {
		return existing, false
	}

	sess = &Session{
		UserID: userID,
		State:  mockstate.New(userID),
		Server: websocket.NewServer(userID,
			websocket.WithLogger(s.log),
			websocket.WithMaxMessageSize(s.maxMessageSize),
		),
	}
	if s.factory != nil {
		sess.Server.SetHandler(s.factory(sess))
	}
	s.sessions[userID] = sess

	s.log.Debug("user registered", "userId", userID)
	return sess, true
}

// IsKnownUser reports whether userID has been registered.
func (s *Store) IsKnownUser(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[userID]
	return ok
}

// Get returns the session for userID.
func (s *Store) Get(userID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// ServerForUser returns the WebSocket server for userID, or nil if the user
// is not registered.
func (s *Store) ServerForUser(userID string) *websocket.Server {
	if sess, ok := s.Get(userID); ok {
		return sess.Server
	}
	return nil
}

// ConnForUser returns the user's currently connected client, or nil if the
// user is unknown or has no open connection.
func (s *Store) ConnForUser(userID string) *websocket.Connection {
	if srv := s.ServerForUser(userID); srv != nil {
		return srv.Current()
	}
	return nil
}

// Users returns the registered user ids in sorted order.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve maps a requested user id to a registered one. Empty or unknown
// ids resolve to fallback; reason says which rule applied ("" when userID
// was used as is).
func (s *Store) Resolve(userID, fallback string) (resolved string, reason string) {
	switch {
	case userID == "":
		return fallback, "empty"
	case !s.IsKnownUser(userID):
		return fallback, "unknown"
	default:
		return userID, ""
	}
}

// Close shuts down every session's server.
func (s *Store) Close() {
	s.mu.RLock()
	servers := make([]*websocket.Server, 0, len(s.sessions))
	for _, sess := range s.sessions {
		servers = append(servers, sess.Server)
	}
	s.mu.RUnlock()

	for _, srv := range servers {
		srv.Close()
	}
}
