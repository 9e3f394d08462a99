// Package proxy relays a mocked session to one real device over a single
// upstream WebSocket connection.
//
// The Manager owns the upstream connection and every in-flight request.
// Its lifecycle is
//
//	Uninitialized → TokenResolved → Connected → (Connected | Closed)
//
// and Closed can move back to Connected on a later Initialize or Prime: the
// manager is reused across upgrades for the life of the process. There is no
// automatic reconnect; a dropped upstream is re-dialled lazily by the next
// Prime.
//
// SendRequest forwards a payload and waits for the reply with the same
// JSON-RPC id (id-less payloads take the next id-less reply). A request resolves exactly once, with its reply or with a
// Timeout-kind error when the deadline or an upstream failure comes first.
//
// Every failure is an *Error carrying a Kind, so callers switch on the kind
// instead of inspecting messages:
//
//	reply, err := m.SendRequest(ctx, payload)
//	switch proxy.KindOf(err) {
//	case proxy.KindNotConnected:
//		// Prime or Initialize first.
//	case proxy.KindTimeout:
//		// Transient; the caller may retry.
//	}
package proxy
