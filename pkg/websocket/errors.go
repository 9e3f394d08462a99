package websocket

import "errors"

// Common errors for the websocket package.
var (
	// ErrConnectionClosed indicates the connection is closed.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrServerClosed indicates the server no longer accepts connections.
	ErrServerClosed = errors.New("server closed")
)
