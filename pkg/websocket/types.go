package websocket

import (
	"context"
	"net/http"
	"time"
)

// MessageType represents the type of WebSocket message.
type MessageType int

const (
	// MessageText indicates a UTF-8 encoded text message.
	MessageText MessageType = 1
	// MessageBinary indicates a binary message.
	MessageBinary MessageType = 2
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// CloseCode represents a WebSocket close status code per RFC 6455.
type CloseCode int

const (
	// CloseNormalClosure indicates a normal closure (1000).
	CloseNormalClosure CloseCode = 1000
	// CloseGoingAway indicates the endpoint is going away (1001).
	CloseGoingAway CloseCode = 1001
	// CloseInternalError indicates internal server error (1011).
	CloseInternalError CloseCode = 1011
)

// Handler answers messages received on a session's connections.
type Handler interface {
	HandleMessage(ctx context.Context, conn *Connection, msgType MessageType, data []byte)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn *Connection, msgType MessageType, data []byte)

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(ctx context.Context, conn *Connection, msgType MessageType, data []byte) {
	f(ctx, conn, msgType, data)
}

// ConnectionListener is notified when a connection is emitted on a Server.
type ConnectionListener func(conn *Connection, r *http.Request)

// ConnectionInfo is public information about a connection.
type ConnectionInfo struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	RemoteAddr       string    `json:"remoteAddr,omitempty"`
	ConnectedAt      time.Time `json:"connectedAt"`
	LastMessageAt    time.Time `json:"lastMessageAt"`
	MessagesSent     int64     `json:"messagesSent"`
	MessagesReceived int64     `json:"messagesReceived"`
}
