package testing

import (
	"encoding/json"

	"github.com/getmockd/mockfirebolt/pkg/mockstate"
	"github.com/getmockd/mockfirebolt/pkg/session"
)

// MockBuilder configures the canned answer for one method.
type MockBuilder struct {
	server  *MockServer
	session *session.Session
	method  string
	resp    mockstate.Response
	err     error
}

// WithResult answers the method with v encoded as JSON.
func (b *MockBuilder) WithResult(v any) *MockBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.err = err
		return b
	}
	b.resp = mockstate.Response{Result: data}
	return b
}

// WithRawResult answers the method with raw JSON.
func (b *MockBuilder) WithRawResult(raw string) *MockBuilder {
	b.resp = mockstate.Response{Result: json.RawMessage(raw)}
	return b
}

// WithError answers the method with a JSON-RPC error.
func (b *MockBuilder) WithError(code int, message string) *MockBuilder {
	b.resp = mockstate.Response{Error: &mockstate.ErrorResponse{Code: code, Message: message}}
	return b
}

// Err returns the first error recorded by the builder.
func (b *MockBuilder) Err() error {
	return b.err
}

// Reply stores the answer. It fails the test on an invalid configuration.
func (b *MockBuilder) Reply() {
	t := b.server.t
	t.Helper()

	if b.session == nil {
		t.Fatalf("mockfirebolt: default user is not registered")
		return
	}
	if b.err != nil {
		t.Fatalf("mockfirebolt: mock %s: %v", b.method, b.err)
		return
	}
	if err := b.session.State.Set(b.method, b.resp); err != nil {
		t.Fatalf("mockfirebolt: mock %s: %v", b.method, err)
	}
}
