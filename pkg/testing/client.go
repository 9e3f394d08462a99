package testing

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"

	"github.com/getmockd/mockfirebolt/pkg/firebolt"
)

// DefaultTimeout bounds every client operation.
const DefaultTimeout = 5 * time.Second

// Client is a Firebolt session opened against a MockServer.
type Client struct {
	server *MockServer
	conn   *ws.Conn
	nextID atomic.Int64
}

// Connect opens a session as userID. It fails the test if the handshake
// fails. The connection is closed when the test completes.
func (m *MockServer) Connect(userID string) *Client {
	m.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	conn, _, err := ws.Dial(ctx, m.URL(userID), nil)
	if err != nil {
		m.t.Fatalf("mockfirebolt: connect as %q: %v", userID, err)
		return nil
	}
	m.t.Cleanup(func() { _ = conn.CloseNow() })
	return &Client{server: m, conn: conn}
}

// Call sends a JSON-RPC request and waits for its response. Messages that
// arrive first without the request's id are discarded.
func (c *Client) Call(method string, params any) (json.RawMessage, *firebolt.Error) {
	t := c.server.t
	t.Helper()

	id := c.nextID.Add(1)
	req := map[string]any{"jsonrpc": firebolt.Version, "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	c.send(req)

	want, _ := json.Marshal(id)
	for {
		data := c.Next()
		if firebolt.MessageID(data) != string(want) {
			continue
		}
		var resp firebolt.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("mockfirebolt: decode response: %v", err)
			return nil, nil
		}
		return resp.Result, resp.Error
	}
}

// Notify sends a JSON-RPC notification.
func (c *Client) Notify(method string, params any) {
	c.server.t.Helper()
	req := map[string]any{"jsonrpc": firebolt.Version, "method": method}
	if params != nil {
		req["params"] = params
	}
	c.send(req)
}

// Next returns the next message received by the client.
func (c *Client) Next() []byte {
	t := c.server.t
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	_, data, err := c.conn.Read(ctx)
	if err != nil {
		t.Fatalf("mockfirebolt: read: %v", err)
		return nil
	}
	return data
}

func (c *Client) send(v any) {
	t := c.server.t
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("mockfirebolt: encode request: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, ws.MessageText, data); err != nil {
		t.Fatalf("mockfirebolt: write: %v", err)
	}
}
