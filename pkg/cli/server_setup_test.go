package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockfirebolt/pkg/config"
	"github.com/getmockd/mockfirebolt/pkg/mockstate"
	"github.com/getmockd/mockfirebolt/pkg/proxy"
)

// =============================================================================
// Helpers
// =============================================================================

func newTestApp(t *testing.T, cfg config.Config) (*app, string) {
	t.Helper()
	a, err := newApp(cfg, nil)
	require.NoError(t, err)

	hs := httptest.NewServer(a.router)
	t.Cleanup(func() {
		hs.Close()
		a.shutdown(context.Background())
	})
	return a, "ws" + strings.TrimPrefix(hs.URL, "http")
}

type client struct {
	t    *testing.T
	conn *ws.Conn
	ctx  context.Context
}

func dialClient(t *testing.T, url string) *client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	c, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.CloseNow() })
	return &client{t: t, conn: c, ctx: ctx}
}

func (c *client) send(msg string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.Write(c.ctx, ws.MessageText, []byte(msg)))
}

func (c *client) read() string {
	c.t.Helper()
	_, data, err := c.conn.Read(c.ctx)
	require.NoError(c.t, err)
	return string(data)
}

// fakeDevice is an upstream that answers device.name and, on "trigger",
// emits an event before replying.
func fakeDevice(t *testing.T) (target string, tokens chan string) {
	t.Helper()
	tokens = make(chan string, 4)
	up := gorilla.Upgrader{}

	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				ID     json.RawMessage `json:"id"`
				Method string          `json:"method"`
			}
			_ = json.Unmarshal(data, &req)

			if req.Method == "trigger" {
				_ = c.WriteMessage(gorilla.TextMessage, []byte(`{"jsonrpc":"2.0","method":"device.onNameChanged","params":{"value":"Den"}}`))
			}
			reply := `{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"Real Device"}`
			if err := c.WriteMessage(gorilla.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(hs.Close)
	return strings.TrimPrefix(hs.URL, "http://"), tokens
}

// =============================================================================
// Mock mode
// =============================================================================

func TestNewApp_RegistersUsers(t *testing.T) {
	cfg := config.Default()
	cfg.Users = append(cfg.Users, "extra")

	a, err := newApp(cfg, nil)
	require.NoError(t, err)

	for _, u := range append([]string{config.DefaultUserID, "extra"}, config.DefaultUsers...) {
		assert.True(t, a.store.IsKnownUser(u), u)
	}
	assert.Nil(t, a.proxy)
	assert.False(t, a.router.ProxyMode())
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultUserID = ""

	_, err := newApp(cfg, nil)
	assert.Error(t, err)
}

func TestApp_MockAnswersPerUser(t *testing.T) {
	a, base := newTestApp(t, config.Default())

	sess, _ := a.store.Get("123")
	require.NoError(t, sess.State.Set("device.name", mockstate.Response{Result: json.RawMessage(`"Kitchen"`)}))

	c := dialClient(t, base+"/123")
	c.send(`{"jsonrpc":"2.0","id":1,"method":"device.name"}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"Kitchen"}`, c.read())

	// Default user has no such mock.
	d := dialClient(t, base+"/unknown-user")
	d.send(`{"jsonrpc":"2.0","id":2,"method":"device.name"}`)
	var resp struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(d.read()), &resp))
	assert.Equal(t, -32601, resp.Error.Code)
}

// =============================================================================
// Proxy mode
// =============================================================================

func proxyConfig(target string) config.Config {
	cfg := config.Default()
	cfg.Proxy.Target = target
	cfg.Proxy.RequestTimeout = 5 * time.Second
	return cfg
}

func TestApp_ProxyRelaysToDevice(t *testing.T) {
	target, tokens := fakeDevice(t)
	a, base := newTestApp(t, proxyConfig(target))
	require.NotNil(t, a.proxy)

	c := dialClient(t, base+"/123?token=abc")
	assert.Equal(t, "abc", <-tokens)
	assert.Equal(t, proxy.StateConnected, a.proxy.State())

	c.send(`{"jsonrpc":"2.0","id":7,"method":"device.name"}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":"Real Device"}`, c.read())

	// Proxy mode pins every connection to the default user.
	assert.NotNil(t, a.store.ConnForUser(config.DefaultUserID))
	assert.Nil(t, a.store.ConnForUser("123"))
}

func TestApp_ProxyRelaysDeviceEvents(t *testing.T) {
	target, _ := fakeDevice(t)
	_, base := newTestApp(t, proxyConfig(target))

	c := dialClient(t, base+"/")
	c.send(`{"jsonrpc":"2.0","id":1,"method":"trigger"}`)

	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"device.onNameChanged","params":{"value":"Den"}}`, c.read())
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"Real Device"}`, c.read())
}

func TestApp_ProxyUnreachableDropsConnection(t *testing.T) {
	// Point at a port nothing listens on.
	ln := httptest.NewServer(http.NotFoundHandler())
	dead := strings.TrimPrefix(ln.URL, "http://")
	ln.Close()

	cfg := proxyConfig(dead)
	cfg.Proxy.DialTimeout = time.Second

	_, base := newTestApp(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := ws.Dial(ctx, base+"/", nil)
	assert.Error(t, err)
}

func TestApp_ShutdownClosesProxy(t *testing.T) {
	target, _ := fakeDevice(t)
	a, err := newApp(proxyConfig(target), nil)
	require.NoError(t, err)

	require.NoError(t, a.proxy.Initialize(context.Background()))
	require.NotNil(t, a.proxy.GetProxyWSConnection())

	a.shutdown(context.Background())
	assert.Nil(t, a.proxy.GetProxyWSConnection())
	assert.Equal(t, proxy.StateClosed, a.proxy.State())
}
