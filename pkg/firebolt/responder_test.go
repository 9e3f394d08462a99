package firebolt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockfirebolt/pkg/mockstate"
)

func TestResponder_Result(t *testing.T) {
	state := mockstate.New("123")
	require.NoError(t, state.Set("device.name", mockstate.Response{Result: json.RawMessage(`"Living Room"`)}))

	resp := NewResponder(state, nil).Respond([]byte(`{"jsonrpc":"2.0","id":7,"method":"device.name"}`))
	require.NotNil(t, resp)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":"Living Room"}`, string(out))
}

func TestResponder_CannedError(t *testing.T) {
	state := mockstate.New("123")
	require.NoError(t, state.Set("lifecycle.close", mockstate.Response{
		Error: &mockstate.ErrorResponse{Code: -50100, Message: "not supported", Data: json.RawMessage(`{"why":"test"}`)},
	}))

	resp := NewResponder(state, nil).Respond([]byte(`{"jsonrpc":"2.0","id":"a","method":"lifecycle.close"}`))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -50100, resp.Error.Code)
	assert.Equal(t, "not supported", resp.Error.Message)
	assert.JSONEq(t, `{"why":"test"}`, string(resp.Error.Data))
	assert.Equal(t, `"a"`, string(resp.ID))
}

func TestResponder_MethodNotFound(t *testing.T) {
	resp := NewResponder(mockstate.New("123"), nil).Respond([]byte(`{"jsonrpc":"2.0","id":1,"method":"nope"}`))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "nope")
}

func TestResponder_NotificationHasNoReply(t *testing.T) {
	resp := NewResponder(mockstate.New("123"), nil).Respond([]byte(`{"jsonrpc":"2.0","method":"lifecycle.ready"}`))
	assert.Nil(t, resp)
}

func TestResponder_Malformed(t *testing.T) {
	r := NewResponder(mockstate.New("123"), nil)

	resp := r.Respond([]byte(`not json`))
	require.NotNil(t, resp)
	assert.Equal(t, CodeParseError, resp.Error.Code)
	assert.Equal(t, "null", string(resp.ID))

	resp = r.Respond([]byte(`{"jsonrpc":"2.0","id":3}`))
	require.NotNil(t, resp)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
	assert.Equal(t, "3", string(resp.ID))
}

func TestMessageID(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"number", `{"id":42,"result":1}`, "42"},
		{"string", `{"id":"abc"}`, `"abc"`},
		{"null", `{"id":null}`, ""},
		{"absent", `{"method":"x"}`, ""},
		{"not object", `[1,2]`, ""},
		{"garbage", `}{`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MessageID([]byte(tt.data)))
		})
	}
}
