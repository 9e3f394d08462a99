package firebolt

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getmockd/mockfirebolt/pkg/logging"
	"github.com/getmockd/mockfirebolt/pkg/mockstate"
	"github.com/getmockd/mockfirebolt/pkg/websocket"
)

// Responder answers requests from a session's mock state.
type Responder struct {
	state *mockstate.State
	log   *slog.Logger
}

// NewResponder creates a Responder backed by state.
func NewResponder(state *mockstate.State, log *slog.Logger) *Responder {
	if log == nil {
		log = logging.Nop()
	}
	return &Responder{state: state, log: log}
}

// HandleMessage implements websocket.Handler.
func (r *Responder) HandleMessage(_ context.Context, conn *websocket.Connection, _ websocket.MessageType, data []byte) {
	resp := r.Respond(data)
	if resp == nil {
		return
	}
	if err := conn.SendJSON(resp); err != nil {
		r.log.Warn("failed to send mock response", "userId", r.state.UserID(), "error", err)
	}
}

// Respond computes the reply for one inbound message. It returns nil for
// notifications.
func (r *Responder) Respond(data []byte) *Response {
	req, err := ParseRequest(data)
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return NewError(req.ID, CodeInvalidRequest, "Invalid Request")
	case err != nil:
		return NewError(nil, CodeParseError, "Parse error")
	}

	if req.IsNotification() {
		r.log.Debug("notification received", "userId", r.state.UserID(), "method", req.Method)
		return nil
	}

	canned, ok := r.state.Get(req.Method)
	if !ok {
		r.log.Debug("no mock response configured", "userId", r.state.UserID(), "method", req.Method)
		return NewError(req.ID, CodeMethodNotFound, "Method not found: "+req.Method)
	}

	if canned.Error != nil {
		resp := NewError(req.ID, canned.Error.Code, canned.Error.Message)
		resp.Error.Data = canned.Error.Data
		return resp
	}
	return NewResult(req.ID, canned.Result)
}
