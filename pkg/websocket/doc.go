// Package websocket provides the per-user WebSocket server instances that
// accept mockfirebolt sessions.
//
// Each registered user owns one Server. The router hands a raw upgrade
// request to the user's Server, which completes the handshake and returns a
// Connection; EmitConnection then registers the connection, notifies
// OnConnection listeners and starts the read loop that feeds every inbound
// message to the Server's Handler.
//
// Usage:
//
//	srv := websocket.NewServer("123", websocket.WithHandler(responder))
//	srv.OnConnection(func(c *websocket.Connection, r *http.Request) {
//		log.Info("connected", "id", c.ID())
//	})
//
//	// In the upgrade handler:
//	conn, err := srv.HandleUpgrade(w, r)
//	if err == nil {
//		srv.EmitConnection(conn, r)
//	}
//
// The package uses github.com/coder/websocket for the server side of the
// protocol.
package websocket
