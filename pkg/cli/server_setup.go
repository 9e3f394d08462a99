package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getmockd/mockfirebolt/pkg/api"
	"github.com/getmockd/mockfirebolt/pkg/cli/internal/output"
	"github.com/getmockd/mockfirebolt/pkg/config"
	"github.com/getmockd/mockfirebolt/pkg/firebolt"
	"github.com/getmockd/mockfirebolt/pkg/logging"
	"github.com/getmockd/mockfirebolt/pkg/proxy"
	"github.com/getmockd/mockfirebolt/pkg/router"
	"github.com/getmockd/mockfirebolt/pkg/session"
	"github.com/getmockd/mockfirebolt/pkg/websocket"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 10 * time.Second

// app holds the assembled runtime for the serve command.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	store  *session.Store
	proxy  *proxy.Manager // nil unless proxying
	router *router.Router
	api    *api.API

	socketServer *http.Server
	httpServer   *http.Server
	errCh        chan error
}

// newApp wires the session store, handlers, proxy manager, router and API
// for cfg. Nothing listens until start is called.
func newApp(cfg config.Config, log *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = logging.Nop()
	}
	a := &app{cfg: cfg, log: log, errCh: make(chan error, 2)}

	if cfg.ProxyEnabled() {
		a.proxy = proxy.NewManager(proxy.Config{
			Target:         cfg.Proxy.Target,
			Token:          cfg.Proxy.Token,
			RequestTimeout: cfg.Proxy.RequestTimeout,
			DialTimeout:    cfg.Proxy.DialTimeout,
		}, proxy.WithLogger(log.With("component", "proxy")))
		a.proxy.SetUnsolicitedHandler(a.relayDeviceMessage)
	}

	a.store = session.NewStore(
		session.WithHandlerFactory(a.handlerFor),
		session.WithMaxMessageSize(cfg.MaxMessageSize),
		session.WithLogger(log.With("component", "session")),
	)

	a.store.AddUser(cfg.DefaultUserID)
	for _, u := range cfg.Users {
		a.store.AddUser(u)
	}

	routerOpts := []router.Option{router.WithLogger(log)}
	apiOpts := []api.Option{api.WithLogger(log)}
	if a.proxy != nil {
		routerOpts = append(routerOpts, router.WithProxy(a.proxy))
		apiOpts = append(apiOpts, api.WithProxyStatus(a.proxy))
	}
	a.router = router.New(a.store, cfg.DefaultUserID, routerOpts...)
	a.api = api.New(a.store, cfg.DefaultUserID, apiOpts...)

	return a, nil
}

// handlerFor picks the message handler for a new session: relay to the
// device in proxy mode, answer from mock state otherwise.
func (a *app) handlerFor(sess *session.Session) websocket.Handler {
	log := a.log.With("component", "firebolt", "userId", sess.UserID)
	if a.proxy != nil {
		return firebolt.NewForwarder(a.proxy, log)
	}
	return firebolt.NewResponder(sess.State, log)
}

// relayDeviceMessage sends an unsolicited device message, such as an event,
// to the default user's live connection.
func (a *app) relayDeviceMessage(data []byte) {
	conn := a.store.ConnForUser(a.cfg.DefaultUserID)
	if conn == nil {
		a.log.Debug("device message dropped: no live connection", "bytes", len(data))
		return
	}
	if err := conn.Send(websocket.MessageText, data); err != nil {
		a.log.Warn("device message relay failed", "connId", conn.ID(), "error", err)
	}
}

// start binds both ports and begins serving. An address already in use is
// reported before anything is served.
func (a *app) start() error {
	socketLn, err := net.Listen("tcp", ":"+strconv.Itoa(a.cfg.SocketPort))
	if err != nil {
		return fmt.Errorf("socket port %d: %w", a.cfg.SocketPort, err)
	}
	httpLn, err := net.Listen("tcp", ":"+strconv.Itoa(a.cfg.HTTPPort))
	if err != nil {
		_ = socketLn.Close()
		return fmt.Errorf("http port %d: %w", a.cfg.HTTPPort, err)
	}

	a.socketServer = &http.Server{Handler: a.router, ReadHeaderTimeout: readHeaderTimeout}
	a.httpServer = &http.Server{Handler: a.api, ReadHeaderTimeout: readHeaderTimeout}

	go a.serve(a.socketServer, socketLn)
	go a.serve(a.httpServer, httpLn)

	a.logStartup()
	return nil
}

func (a *app) serve(srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.errCh <- err
	}
}

func (a *app) logStartup() {
	logging.Important(a.log, "Welcome to Mock Firebolt")
	a.log.Info("websocket server listening", "port", a.cfg.SocketPort, "defaultUserId", a.cfg.DefaultUserID)
	a.log.Info("http api listening", "port", a.cfg.HTTPPort)
	a.log.Info("registered users", "users", a.store.Users())
	if a.proxy != nil {
		logging.Important(a.log, "proxy mode enabled", "target", a.cfg.Proxy.Target, "requestTimeout", a.cfg.Proxy.RequestTimeout)
	}
}

// runMainLoop blocks until SIGINT, SIGTERM or a server failure, then shuts
// everything down.
func (a *app) runMainLoop() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case sig := <-sigChan:
		a.log.Info("shutting down", "signal", sig.String())
	case serveErr = <-a.errCh:
		a.log.Error("server failed", "error", serveErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.shutdown(ctx)

	return serveErr
}

// shutdown stops the listeners, closes every session connection and the
// upstream connection. Pending proxied requests fail.
func (a *app) shutdown(ctx context.Context) {
	for _, srv := range []*http.Server{a.socketServer, a.httpServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			output.Warn("server shutdown error: %v", err)
		}
	}

	a.store.Close()

	if a.proxy != nil {
		if err := a.proxy.Close(); err != nil {
			output.Warn("proxy close error: %v", err)
		}
	}

	a.log.Info("server stopped")
}
