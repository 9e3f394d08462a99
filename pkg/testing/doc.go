// Package testing provides a testing SDK for using mockfirebolt in Go tests.
//
// It runs the session router and store in-process on an httptest server, so
// an app under test can open real Firebolt WebSocket sessions against it.
//
// # Basic Usage
//
//	func TestDeviceName(t *testing.T) {
//	    fb := mftesting.New(t)
//
//	    fb.Mock("123", "device.name").WithResult("Living Room").Reply()
//
//	    c := fb.Connect("123")
//	    result, rpcErr := c.Call("device.name", nil)
//	    if rpcErr != nil {
//	        t.Fatal(rpcErr.Message)
//	    }
//	    // result is the raw JSON "Living Room"
//	}
//
// # Users
//
// The default user and the starter users are registered by New. Connecting
// as any other id uses the default user, exactly as the real server does;
// call AddUser first to give that id its own state.
//
// # Events
//
// Push sends a message to the user's live connection, the way the HTTP API's
// event endpoint does. Client.Next reads the next message the client
// received.
package testing
