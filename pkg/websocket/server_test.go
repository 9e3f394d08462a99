package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Helper Functions
// =============================================================================

func newTestServer(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := srv.HandleUpgrade(w, r)
		if err != nil {
			return
		}
		srv.EmitConnection(conn, r)
	}))
	t.Cleanup(hs.Close)
	return hs
}

func dial(t *testing.T, hs *httptest.Server) *ws.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	c, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, conn *Connection, msgType MessageType, data []byte) {
		_ = conn.Send(msgType, data)
	})
}

// =============================================================================
// Tests
// =============================================================================

func TestServer_EchoRoundTrip(t *testing.T) {
	srv := NewServer("123", WithHandler(echoHandler()))
	hs := newTestServer(t, srv)
	client := dial(t, hs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Write(ctx, ws.MessageText, []byte(`{"id":1}`)))
	typ, data, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, ws.MessageText, typ)
	assert.Equal(t, `{"id":1}`, string(data))
}

func TestServer_MaxMessageSizeClosesOversizedReads(t *testing.T) {
	srv := NewServer("123", WithHandler(echoHandler()), WithMaxMessageSize(16))
	hs := newTestServer(t, srv)
	client := dial(t, hs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Write(ctx, ws.MessageText, []byte(`{"id":1}`)))
	_, data, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(data))

	_ = client.Write(ctx, ws.MessageText, []byte(strings.Repeat("x", 64)))
	_, _, err = client.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, ws.StatusMessageTooBig, ws.CloseStatus(err))
	assert.Eventually(t, func() bool { return srv.ConnectionCount() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestServer_HandlerPanicClosesWithInternalError(t *testing.T) {
	srv := NewServer("123", WithHandler(HandlerFunc(func(context.Context, *Connection, MessageType, []byte) {
		panic("boom")
	})))
	hs := newTestServer(t, srv)
	client := dial(t, hs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Write(ctx, ws.MessageText, []byte(`{"id":1}`)))
	_, _, err := client.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, ws.StatusCode(CloseInternalError), ws.CloseStatus(err))
	assert.Eventually(t, func() bool { return srv.ConnectionCount() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestConnection_Info(t *testing.T) {
	srv := NewServer("123", WithHandler(echoHandler()))
	hs := newTestServer(t, srv)
	client := dial(t, hs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Write(ctx, ws.MessageText, []byte(`{"id":1}`)))
	_, _, err := client.Read(ctx)
	require.NoError(t, err)

	conn := srv.Current()
	require.NotNil(t, conn)
	info := conn.Info()
	assert.Equal(t, conn.ID(), info.ID)
	assert.Equal(t, "123", info.UserID)
	assert.NotEmpty(t, info.RemoteAddr)
	assert.False(t, info.ConnectedAt.IsZero())
	assert.Eventually(t, func() bool {
		i := conn.Info()
		return i.MessagesReceived == 1 && i.MessagesSent == 1
	}, 5*time.Second, 5*time.Millisecond)
}

func TestServer_ListenersAndCurrent(t *testing.T) {
	srv := NewServer("456")
	connected := make(chan *Connection, 1)
	srv.OnConnection(func(c *Connection, r *http.Request) {
		require.NotNil(t, r)
		connected <- c
	})

	hs := newTestServer(t, srv)
	client := dial(t, hs)

	var conn *Connection
	select {
	case conn = <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("listener was not called")
	}

	assert.Equal(t, "456", conn.UserID())
	assert.Same(t, conn, srv.Current())
	assert.Equal(t, 1, srv.ConnectionCount())

	require.NoError(t, client.Close(ws.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return srv.Current() == nil }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, srv.ConnectionCount())
}

func TestServer_CurrentFallsBackToRemaining(t *testing.T) {
	srv := NewServer("789")
	hs := newTestServer(t, srv)

	dial(t, hs)
	assert.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	firstConn := srv.Current()

	second := dial(t, hs)
	assert.Eventually(t, func() bool { return srv.ConnectionCount() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.NotSame(t, firstConn, srv.Current())

	require.NoError(t, second.Close(ws.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return srv.Current() == firstConn }, 5*time.Second, 10*time.Millisecond)
}

func TestServer_Broadcast(t *testing.T) {
	srv := NewServer("123")
	hs := newTestServer(t, srv)
	a := dial(t, hs)
	b := dial(t, hs)
	assert.Eventually(t, func() bool { return srv.ConnectionCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, srv.Broadcast(MessageText, []byte("event")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range []*ws.Conn{a, b} {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "event", string(data))
	}
}

func TestServer_CloseRejectsUpgrades(t *testing.T) {
	srv := NewServer("123")
	hs := newTestServer(t, srv)
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(hs.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	conn := NewConnection(nil, "123", nil)

	assert.False(t, conn.IsClosed())
	assert.NoError(t, conn.CloseNormal())
	assert.True(t, conn.IsClosed())
	assert.ErrorIs(t, conn.CloseNormal(), ErrConnectionClosed)
	assert.ErrorIs(t, conn.SendText("late"), ErrConnectionClosed)
	assert.Error(t, conn.Context().Err())
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "text", MessageText.String())
	assert.Equal(t, "binary", MessageBinary.String())
	assert.Equal(t, "unknown", MessageType(9).String())
}
