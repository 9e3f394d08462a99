package firebolt

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	// CodeProxyError is returned when a forwarded request fails upstream.
	CodeProxyError = -32000
)

// ErrInvalidRequest indicates a message that is JSON but not a request.
var ErrInvalidRequest = errors.New("invalid JSON-RPC request")

var nullID = json.RawMessage("null")

// Request is a JSON-RPC request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id and therefore
// expects no reply.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// ParseRequest decodes data as a single JSON-RPC request.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.Method == "" {
		return &req, ErrInvalidRequest
	}
	return &req, nil
}

// MessageID extracts the id member of any JSON-RPC message. It returns ""
// when the message has no id, a null id, or is not a JSON object.
func MessageID(data []byte) string {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	id := bytes.TrimSpace(envelope.ID)
	if len(id) == 0 || bytes.Equal(id, nullID) {
		return ""
	}
	return string(id)
}

// NewResult builds a success response.
func NewResult(id, result json.RawMessage) *Response {
	return &Response{JSONRPC: Version, ID: normalizeID(id), Result: result}
}

// NewError builds an error response.
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Error:   &Error{Code: code, Message: message},
	}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}
