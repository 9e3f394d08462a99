package testing

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getmockd/mockfirebolt/pkg/config"
	"github.com/getmockd/mockfirebolt/pkg/firebolt"
	"github.com/getmockd/mockfirebolt/pkg/router"
	"github.com/getmockd/mockfirebolt/pkg/session"
	"github.com/getmockd/mockfirebolt/pkg/websocket"
)

// MockServer is an in-process mockfirebolt for tests. It is shut down
// automatically when the test completes.
type MockServer struct {
	t       testing.TB
	store   *session.Store
	httpSrv *httptest.Server
	baseURL string
}

// New starts a MockServer with the default and starter users registered.
func New(t testing.TB) *MockServer {
	t.Helper()

	store := session.NewStore(session.WithHandlerFactory(func(s *session.Session) websocket.Handler {
		return firebolt.NewResponder(s.State, nil)
	}))
	store.AddUser(config.DefaultUserID)
	for _, u := range config.DefaultUsers {
		store.AddUser(u)
	}

	m := &MockServer{
		t:     t,
		store: store,
	}
	m.httpSrv = httptest.NewServer(router.New(store, config.DefaultUserID))
	m.baseURL = "ws" + strings.TrimPrefix(m.httpSrv.URL, "http")

	t.Cleanup(m.Stop)
	return m
}

// URL returns the WebSocket URL for userID.
func (m *MockServer) URL(userID string) string {
	return m.baseURL + "/" + userID
}

// AddUser registers userID if it is not registered yet.
func (m *MockServer) AddUser(userID string) {
	m.store.AddUser(userID)
}

// Store returns the underlying session store.
func (m *MockServer) Store() *session.Store {
	return m.store
}

// Mock starts configuring the answer to method for userID. An unregistered
// userID configures the default user, matching connection routing.
func (m *MockServer) Mock(userID, method string) *MockBuilder {
	userID, _ = m.store.Resolve(userID, config.DefaultUserID)
	sess, _ := m.store.Get(userID)
	return &MockBuilder{server: m, session: sess, method: method}
}

// Push sends msg to the live connection of userID. It fails the test if
// the user has no connection.
func (m *MockServer) Push(userID string, msg any) {
	m.t.Helper()

	conn := m.store.ConnForUser(userID)
	if conn == nil {
		m.t.Fatalf("mockfirebolt: user %q has no live connection", userID)
		return
	}
	if err := conn.SendJSON(msg); err != nil {
		m.t.Fatalf("mockfirebolt: push to %q failed: %v", userID, err)
	}
}

// Stop closes every session and the listener. It is safe to call twice.
func (m *MockServer) Stop() {
	m.store.Close()
	m.httpSrv.Close()
}
