package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/getmockd/mockfirebolt/pkg/httputil"
	"github.com/getmockd/mockfirebolt/pkg/mockstate"
	"github.com/getmockd/mockfirebolt/pkg/websocket"
)

// HealthResponse is returned by GET /api/v1/healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	ProxyMode   bool   `json:"proxyMode"`
	ProxyTarget string `json:"proxyTarget,omitempty"`
	ProxyState  string `json:"proxyState,omitempty"`
}

// UsersResponse is returned by GET /api/v1/users.
type UsersResponse struct {
	DefaultUserID string   `json:"defaultUserId"`
	Users         []string `json:"users"`
}

// UserResponse is returned by PUT /api/v1/users/{userId}.
type UserResponse struct {
	UserID  string `json:"userId"`
	Created bool   `json:"created"`
}

// UserDetailResponse is returned by GET /api/v1/users/{userId}.
type UserDetailResponse struct {
	UserID      string                      `json:"userId"`
	Connections []*websocket.ConnectionInfo `json:"connections"`
}

// StateResponse is returned by GET /api/v1/state.
type StateResponse struct {
	UserID  string                        `json:"userId"`
	Methods map[string]mockstate.Response `json:"methods"`
}

// MethodRequest is the body of PUT /api/v1/state/methods/{method}.
type MethodRequest struct {
	Result json.RawMessage          `json:"result,omitempty"`
	Error  *mockstate.ErrorResponse `json:"error,omitempty"`
}

// EventResponse is returned by POST /api/v1/event.
type EventResponse struct {
	UserID string `json:"userId"`
	ConnID string `json:"connId"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if a.proxy != nil {
		resp.ProxyMode = true
		resp.ProxyTarget = a.proxy.Target()
		resp.ProxyState = a.proxy.State().String()
	}
	httputil.WriteOK(w, resp)
}

func (a *API) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, UsersResponse{
		DefaultUserID: a.defaultUserID,
		Users:         a.store.Users(),
	})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	srv := a.store.ServerForUser(userID)
	if srv == nil {
		httputil.WriteNotFound(w, "unknown_user", "user "+userID+" is not registered")
		return
	}

	conns := srv.Connections()
	infos := make([]*websocket.ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		infos = append(infos, c.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	httputil.WriteOK(w, UserDetailResponse{UserID: userID, Connections: infos})
}

func (a *API) handleAddUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		httputil.WriteBadRequest(w, "invalid_user", "user id is required")
		return
	}

	_, created := a.store.AddUser(userID)
	resp := UserResponse{UserID: userID, Created: created}
	if created {
		a.log.Info("user added", "userId", userID)
		httputil.WriteCreated(w, resp)
		return
	}
	httputil.WriteOK(w, resp)
}

func (a *API) handleGetState(w http.ResponseWriter, r *http.Request) {
	sess := a.userFor(r)
	if sess == nil {
		httputil.WriteNotFound(w, "unknown_user", "default user is not registered")
		return
	}

	methods := make(map[string]mockstate.Response)
	for _, m := range sess.State.Methods() {
		if resp, ok := sess.State.Get(m); ok {
			methods[m] = resp
		}
	}
	httputil.WriteOK(w, StateResponse{UserID: sess.UserID, Methods: methods})
}

func (a *API) handleResetState(w http.ResponseWriter, r *http.Request) {
	sess := a.userFor(r)
	if sess == nil {
		httputil.WriteNotFound(w, "unknown_user", "default user is not registered")
		return
	}
	sess.State.Reset()
	httputil.WriteNoContent(w)
}

func (a *API) handleSetMethod(w http.ResponseWriter, r *http.Request) {
	sess := a.userFor(r)
	if sess == nil {
		httputil.WriteNotFound(w, "unknown_user", "default user is not registered")
		return
	}

	var req MethodRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid_body", err.Error())
		return
	}

	method := r.PathValue("method")
	resp := mockstate.Response{Result: req.Result, Error: req.Error}
	if err := sess.State.Set(method, resp); err != nil {
		httputil.WriteBadRequest(w, "invalid_response", err.Error())
		return
	}

	a.log.Debug("mock response set", "userId", sess.UserID, "method", method)
	httputil.WriteOK(w, resp)
}

func (a *API) handleDeleteMethod(w http.ResponseWriter, r *http.Request) {
	sess := a.userFor(r)
	if sess == nil {
		httputil.WriteNotFound(w, "unknown_user", "default user is not registered")
		return
	}

	method := r.PathValue("method")
	if !sess.State.Delete(method) {
		httputil.WriteNotFound(w, "unknown_method", "no mock response for "+method)
		return
	}
	httputil.WriteNoContent(w)
}

func (a *API) handlePushEvent(w http.ResponseWriter, r *http.Request) {
	sess := a.userFor(r)
	if sess == nil {
		httputil.WriteNotFound(w, "unknown_user", "default user is not registered")
		return
	}

	var msg json.RawMessage
	if err := httputil.DecodeJSON(r, &msg); err != nil {
		httputil.WriteBadRequest(w, "invalid_body", err.Error())
		return
	}

	conn := a.store.ConnForUser(sess.UserID)
	if conn == nil {
		httputil.WriteNotFound(w, "no_connection", "user "+sess.UserID+" has no live websocket connection")
		return
	}

	if err := conn.Send(websocket.MessageText, msg); err != nil {
		a.log.Warn("event push failed", "userId", sess.UserID, "connId", conn.ID(), "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "send_failed", err.Error())
		return
	}

	httputil.WriteOK(w, EventResponse{UserID: sess.UserID, ConnID: conn.ID()})
}
