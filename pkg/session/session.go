// Package session holds the registry of mock users. Each registered user
// gets a Session owning an isolated mock state and a dedicated WebSocket
// server; sessions live for the whole process.
package session

import (
	"github.com/getmockd/mockfirebolt/pkg/mockstate"
	"github.com/getmockd/mockfirebolt/pkg/websocket"
)

// Session is one registered user.
type Session struct {
	// UserID is the registry key, taken verbatim from the upgrade path.
	UserID string

	// State is the user's mock state. It is owned by this session.
	State *mockstate.State

	// Server accepts the WebSocket connections routed to this user.
	Server *websocket.Server
}

// HandlerFactory builds the message handler for a new session. It is called
// once per AddUser that creates a session.
type HandlerFactory func(s *Session) websocket.Handler
