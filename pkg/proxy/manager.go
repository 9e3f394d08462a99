package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/getmockd/mockfirebolt/pkg/config"
	"github.com/getmockd/mockfirebolt/pkg/logging"
)

// State is the lifecycle state of a Manager.
type State int

// Manager states.
const (
	StateUninitialized State = iota
	StateTokenResolved
	StateConnected
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateTokenResolved:
		return "TokenResolved"
	case StateConnected:
		return "Connected"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Config configures a Manager.
type Config struct {
	// Target is the upstream device as host:port.
	Target string
	// Token is the fallback used when the upgrade request has no token
	// query parameter.
	Token string
	// RequestTimeout bounds SendRequest. Defaults to config.DefaultRequestTimeout.
	RequestTimeout time.Duration
	// DialTimeout bounds Initialize. Defaults to config.DefaultDialTimeout.
	DialTimeout time.Duration
}

// Manager owns the single upstream connection to a real device.
type Manager struct {
	cfg    Config
	log    *slog.Logger
	dialer *websocket.Dialer

	// current is replaced wholesale on Initialize, SetProxyWSConnection
	// and Close; readers see the old or the new handle, never a mix.
	current   atomic.Pointer[upstream]
	token     atomic.Pointer[string]
	wasClosed atomic.Bool
	onMessage atomic.Pointer[func([]byte)]

	// initMu serializes dialling so concurrent upgrades open one connection.
	initMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithDialer sets the dialer used by Initialize.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// NewManager creates a Manager for cfg. It does not connect.
func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = config.DefaultRequestTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = config.DefaultDialTimeout
	}

	m := &Manager{
		cfg:    cfg,
		log:    logging.Nop(),
		dialer: &websocket.Dialer{}, // DialContext's deadline bounds the handshake
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Target returns the configured upstream address.
func (m *Manager) Target() string {
	return m.cfg.Target
}

// Token returns the most recently resolved token, or "".
func (m *Manager) Token() string {
	if t := m.token.Load(); t != nil {
		return *t
	}
	return ""
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	switch {
	case m.current.Load() != nil:
		return StateConnected
	case m.wasClosed.Load():
		return StateClosed
	case m.token.Load() != nil:
		return StateTokenResolved
	default:
		return StateUninitialized
	}
}

// SetUnsolicitedHandler sets the function that receives upstream messages
// not answering any pending request, such as device events.
func (m *Manager) SetUnsolicitedHandler(fn func(data []byte)) {
	if fn == nil {
		m.onMessage.Store(nil)
		return
	}
	m.onMessage.Store(&fn)
}

func (m *Manager) unsolicited(data []byte) {
	if fn := m.onMessage.Load(); fn != nil {
		(*fn)(data)
		return
	}
	m.log.Debug("unmatched upstream message dropped", "bytes", len(data))
}

// GetToken resolves the token for r (see ResolveToken) using the configured
// fallback, and remembers it for the next Initialize. When resolution fails
// the last resolved token is kept, so a later tokenless upgrade re-dials with
// it.
func (m *Manager) GetToken(r *http.Request) (string, error) {
	token, err := ResolveToken(r, m.cfg.Token)
	if err != nil {
		return "", err
	}

	m.token.Store(&token)
	m.wasClosed.Store(false)

	if exp, ok := TokenExpiry(token); ok && exp.Before(time.Now()) {
		m.log.Warn("proxy token is expired", "expiredAt", exp)
	}
	return token, nil
}

// Prime prepares the manager for a proxied connection: it resolves the
// token from r and, if no upstream connection exists, opens one. A missing
// token is logged and tolerated; a failed dial is returned.
func (m *Manager) Prime(ctx context.Context, r *http.Request) error {
	if _, err := m.GetToken(r); err != nil {
		m.log.Warn("continuing without proxy token", "reason", err.Error())
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.current.Load() != nil {
		return nil
	}
	return m.dialLocked(ctx)
}

// Initialize opens a new upstream connection using the configured target
// and the resolved token, replacing any existing one. On failure the
// manager keeps its previous state and may be retried.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	return m.dialLocked(ctx)
}

func (m *Manager) dialLocked(ctx context.Context) error {
	unreachable := fmt.Sprintf("%s at %s", MsgUpstreamUnreachable, m.cfg.Target)

	if err := config.ValidateTarget(m.cfg.Target); err != nil {
		return newError(KindUpstreamUnreachable, unreachable, err)
	}

	u := url.URL{Scheme: "ws", Host: m.cfg.Target, Path: "/"}
	header := http.Header{}
	if token := m.Token(); token != "" {
		u.RawQuery = url.Values{TokenParam: []string{token}}.Encode()
		header.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := m.dialer.DialContext(dialCtx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		m.log.Warn("proxy connection failed", "target", m.cfg.Target, "error", err)
		return newError(KindUpstreamUnreachable, unreachable, err)
	}

	m.install(conn)
	m.log.Info("proxy connection established", "target", m.cfg.Target)
	return nil
}

// install makes conn the current upstream and discards the previous one.
func (m *Manager) install(conn Conn) {
	u := newUpstream(conn, m)
	if old := m.current.Swap(u); old != nil {
		_ = old.shutdown(errors.New("upstream connection replaced"))
	}
	go u.readLoop()
}

// dropped is called by u's read loop when the connection fails.
func (m *Manager) dropped(u *upstream, err error) {
	if m.current.CompareAndSwap(u, nil) {
		m.wasClosed.Store(true)
		m.log.Warn("proxy connection lost", "target", m.cfg.Target, "error", err)
	}
	_ = u.shutdown(err)
}

// GetProxyWSConnection returns the current upstream handle, or nil. It
// never blocks and never connects.
func (m *Manager) GetProxyWSConnection() Conn {
	if u := m.current.Load(); u != nil {
		return u.conn
	}
	return nil
}

// SetProxyWSConnection installs conn as the upstream connection, bypassing
// Initialize. A nil conn is the same as Close.
func (m *Manager) SetProxyWSConnection(conn Conn) {
	if conn == nil {
		_ = m.Close()
		return
	}
	m.install(conn)
}

// SendRequest forwards payload upstream and waits for the correlated reply.
// It fails with KindNotConnected when no connection exists, and with
// KindTimeout when neither a reply nor ctx cancellation arrives before the
// request timeout, or the upstream fails first.
func (m *Manager) SendRequest(ctx context.Context, payload []byte) ([]byte, error) {
	u := m.current.Load()
	if u == nil {
		return nil, newError(KindNotConnected, MsgNotConnected, nil)
	}

	p, err := u.register(payload, m.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	if err := u.write(textMessage, payload); err != nil {
		return m.abandon(u, p, err)
	}

	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()

	select {
	case r := <-p.reply:
		return r.data, r.err
	case <-timer.C:
		return m.abandon(u, p, context.DeadlineExceeded)
	case <-ctx.Done():
		return m.abandon(u, p, ctx.Err())
	}
}

// abandon discards p unless a reply won the race, in which case that reply
// is returned.
func (m *Manager) abandon(u *upstream, p *pendingRequest, cause error) ([]byte, error) {
	if u.discard(p) {
		m.log.Debug("proxy request abandoned", "id", p.key, "bytes", len(p.payload), "cause", cause)
		return nil, timeoutError(cause)
	}
	r := <-p.reply
	return r.data, r.err
}

// Notify forwards payload without waiting for a reply.
func (m *Manager) Notify(_ context.Context, payload []byte) error {
	u := m.current.Load()
	if u == nil {
		return newError(KindNotConnected, MsgNotConnected, nil)
	}
	if err := u.write(textMessage, payload); err != nil {
		return timeoutError(err)
	}
	return nil
}

// PendingCount returns the number of in-flight requests.
func (m *Manager) PendingCount() int {
	if u := m.current.Load(); u != nil {
		return u.pendingCount()
	}
	return 0
}

// Close tears down the upstream connection and fails every pending request
// with a timeout. It is a no-op when already closed.
func (m *Manager) Close() error {
	u := m.current.Swap(nil)
	if u == nil {
		return nil
	}
	m.wasClosed.Store(true)
	m.log.Info("proxy connection closed", "target", m.cfg.Target)
	return u.shutdown(errClosed)
}
