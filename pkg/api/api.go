// Package api serves the HTTP collaborator surface on the HTTP port: user
// registration, per-user mock state, and pushing messages to a live session.
//
// The target user is taken from the x-user-id header. A missing or unknown
// id falls back to the default user, as on the socket port.
package api

import (
	"log/slog"
	"net/http"

	"github.com/getmockd/mockfirebolt/pkg/logging"
	"github.com/getmockd/mockfirebolt/pkg/proxy"
	"github.com/getmockd/mockfirebolt/pkg/session"
)

// UserHeader carries the target user id on API requests.
const UserHeader = "x-user-id"

// ProxyStatus reports the proxy connection state for the health endpoint.
// *proxy.Manager implements it.
type ProxyStatus interface {
	State() proxy.State
	Target() string
}

// API is the HTTP handler for the collaborator surface.
type API struct {
	store         *session.Store
	defaultUserID string
	proxy         ProxyStatus
	log           *slog.Logger
	handler       http.Handler
}

// Option configures an API.
type Option func(*API)

// WithProxyStatus reports proxy health from p.
func WithProxyStatus(p ProxyStatus) Option {
	return func(a *API) {
		a.proxy = p
	}
}

// WithLogger sets the API logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// New creates the API over store.
func New(store *session.Store, defaultUserID string, opts ...Option) *API {
	a := &API{
		store:         store,
		defaultUserID: defaultUserID,
		log:           logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("component", "api")

	mux := http.NewServeMux()
	a.registerRoutes(mux)
	a.handler = corsMiddleware(mux)
	return a
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *API) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/healthz", a.handleHealth)

	mux.HandleFunc("GET /api/v1/users", a.handleListUsers)
	mux.HandleFunc("GET /api/v1/users/{userId}", a.handleGetUser)
	mux.HandleFunc("PUT /api/v1/users/{userId}", a.handleAddUser)

	mux.HandleFunc("GET /api/v1/state", a.handleGetState)
	mux.HandleFunc("DELETE /api/v1/state", a.handleResetState)
	mux.HandleFunc("PUT /api/v1/state/methods/{method}", a.handleSetMethod)
	mux.HandleFunc("DELETE /api/v1/state/methods/{method}", a.handleDeleteMethod)

	mux.HandleFunc("POST /api/v1/event", a.handlePushEvent)
}

// userFor returns the user an API request targets.
func (a *API) userFor(r *http.Request) *session.Session {
	requested := r.Header.Get(UserHeader)
	userID, reason := a.store.Resolve(requested, a.defaultUserID)
	if reason == "unknown" {
		a.log.Warn("unknown user id, using default user", "requested", requested, "userId", userID)
	}
	sess, _ := a.store.Get(userID)
	return sess
}

// corsMiddleware allows browser tooling on any origin to call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+UserHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
