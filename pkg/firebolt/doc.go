// Package firebolt implements the JSON-RPC 2.0 message handling of a mocked
// Firebolt device session.
//
// Two websocket.Handler implementations are provided:
//
//   - Responder answers each request from the session's mock state.
//   - Forwarder relays each request to a real device through an upstream
//     Requester (the proxy manager) and writes the device's reply back.
package firebolt
