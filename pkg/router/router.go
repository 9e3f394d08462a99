// Package router binds inbound WebSocket upgrades on the socket port to the
// per-user server that should accept them.
//
// The user id is the whole request path after the leading slash. Empty and
// unregistered ids fall back to the default user. In proxy mode every
// upgrade goes to the default user and the proxy is primed before the
// handshake completes; if priming fails or the default user was never
// registered, the raw connection is destroyed without a response.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getmockd/mockfirebolt/pkg/logging"
	"github.com/getmockd/mockfirebolt/pkg/session"
)

// ProxyPrimer prepares the upstream connection for a proxied upgrade.
// *proxy.Manager implements it.
type ProxyPrimer interface {
	Prime(ctx context.Context, r *http.Request) error
}

// Router is the http.Handler for the socket port.
type Router struct {
	store         *session.Store
	defaultUserID string
	proxy         ProxyPrimer
	log           *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithProxy enables proxy mode.
func WithProxy(p ProxyPrimer) Option {
	return func(rt *Router) {
		rt.proxy = p
	}
}

// WithLogger sets the router logger.
func WithLogger(log *slog.Logger) Option {
	return func(rt *Router) {
		if log != nil {
			rt.log = log
		}
	}
}

// New creates a Router over store.
func New(store *session.Store, defaultUserID string, opts ...Option) *Router {
	rt := &Router{
		store:         store,
		defaultUserID: defaultUserID,
		log:           logging.Nop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.log = rt.log.With("component", "router")
	return rt
}

// ProxyMode reports whether upgrades are forced to the default user.
func (rt *Router) ProxyMode() bool {
	return rt.proxy != nil
}

// UserIDFromPath returns the requested user id: the path with its leading
// slash removed. "/" yields "".
func UserIDFromPath(path string) string {
	return strings.TrimPrefix(path, "/")
}

// Resolve returns the user id whose server should accept r. It never fails
// outside proxy mode. In proxy mode it primes the proxy and returns the
// priming error.
func (rt *Router) Resolve(r *http.Request) (string, error) {
	requested := UserIDFromPath(r.URL.Path)

	if rt.proxy != nil {
		if requested != "" && requested != rt.defaultUserID {
			rt.log.Info("proxy mode: routing to default user", "requested", requested, "userId", rt.defaultUserID)
		}
		if err := rt.proxy.Prime(r.Context(), r); err != nil {
			return "", err
		}
		return rt.defaultUserID, nil
	}

	userID, reason := rt.store.Resolve(requested, rt.defaultUserID)
	switch reason {
	case "empty":
		rt.log.Info("no user id in path, using default user", "userId", userID)
	case "unknown":
		rt.log.Warn("unknown user id, using default user", "requested", requested, "userId", userID)
	}
	return userID, nil
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !isUpgrade(r) {
		w.Header().Set("Connection", "Upgrade")
		w.Header().Set("Upgrade", "websocket")
		http.Error(w, "WebSocket upgrade required", http.StatusUpgradeRequired)
		return
	}

	userID, err := rt.Resolve(r)
	if err != nil {
		rt.log.Error("proxy initialization failed; dropping connection", "path", r.URL.Path, "error", err)
		destroy(w)
		return
	}

	srv := rt.store.ServerForUser(userID)
	if srv == nil {
		rt.log.Error("default user is not registered; dropping connection", "userId", userID)
		destroy(w)
		return
	}

	conn, err := srv.HandleUpgrade(w, r)
	if err != nil {
		rt.log.Warn("websocket handshake failed", "userId", userID, "error", err)
		return
	}
	srv.EmitConnection(conn, r)
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		headerContainsToken(r.Header.Get("Connection"), "upgrade")
}

func headerContainsToken(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// destroy closes the underlying connection without writing a response.
func destroy(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}
