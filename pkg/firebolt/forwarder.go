package firebolt

import (
	"context"
	"log/slog"

	"github.com/getmockd/mockfirebolt/pkg/logging"
	"github.com/getmockd/mockfirebolt/pkg/websocket"
)

// Requester sends payloads to a real device.
type Requester interface {
	// SendRequest forwards payload and waits for the correlated reply.
	SendRequest(ctx context.Context, payload []byte) ([]byte, error)
	// Notify forwards payload without waiting for a reply.
	Notify(ctx context.Context, payload []byte) error
}

// Forwarder relays a session's messages to a real device.
type Forwarder struct {
	upstream Requester
	log      *slog.Logger
}

// NewForwarder creates a Forwarder that relays through upstream.
func NewForwarder(upstream Requester, log *slog.Logger) *Forwarder {
	if log == nil {
		log = logging.Nop()
	}
	return &Forwarder{upstream: upstream, log: log}
}

// HandleMessage implements websocket.Handler.
func (f *Forwarder) HandleMessage(ctx context.Context, conn *websocket.Connection, msgType websocket.MessageType, data []byte) {
	reply, fail := f.Forward(ctx, data)
	switch {
	case fail != nil:
		if err := conn.SendJSON(fail); err != nil {
			f.log.Warn("failed to send proxy error", "connId", conn.ID(), "error", err)
		}
	case reply != nil:
		if err := conn.Send(msgType, reply); err != nil {
			f.log.Warn("failed to relay proxy reply", "connId", conn.ID(), "error", err)
		}
	}
}

// Forward relays one message. It returns the raw upstream reply, or a
// JSON-RPC error response when the forward failed for a request that
// expects an answer. Both are nil for notifications.
func (f *Forwarder) Forward(ctx context.Context, data []byte) ([]byte, *Response) {
	req, err := ParseRequest(data)
	if err == nil && req.IsNotification() {
		if err := f.upstream.Notify(ctx, data); err != nil {
			f.log.Warn("failed to forward notification", "method", req.Method, "error", err)
		}
		return nil, nil
	}

	reply, err := f.upstream.SendRequest(ctx, data)
	if err != nil {
		f.log.Warn("proxy request failed", "error", err)
		var id []byte
		if req != nil {
			id = req.ID
		}
		return nil, NewError(id, CodeProxyError, err.Error())
	}
	return reply, nil
}
