// Package mockstate holds the isolated mock state of one simulated device.
//
// A State maps JSON-RPC method names to canned responses. Each session owns
// exactly one State; nothing is shared between users.
package mockstate

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

// Errors returned by State.
var (
	ErrEmptyMethod     = errors.New("method name cannot be empty")
	ErrInvalidResponse = errors.New("response must set exactly one of result or error")
)

// ErrorResponse is a canned JSON-RPC error.
type ErrorResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is the canned answer for one method.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorResponse  `json:"error,omitempty"`
}

func (r Response) validate() error {
	hasResult := len(r.Result) > 0
	hasError := r.Error != nil
	if hasResult == hasError {
		return ErrInvalidResponse
	}
	if hasResult && !json.Valid(r.Result) {
		return ErrInvalidResponse
	}
	return nil
}

// State is the mock state of one user.
type State struct {
	userID  string
	mu      sync.RWMutex
	methods map[string]Response
}

// New creates an empty State for userID.
func New(userID string) *State {
	return &State{
		userID:  userID,
		methods: make(map[string]Response),
	}
}

// UserID returns the owning user.
func (s *State) UserID() string {
	return s.userID
}

// Set stores the response for method, replacing any previous one.
func (s *State) Set(method string, resp Response) error {
	if method == "" {
		return ErrEmptyMethod
	}
	if err := resp.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = resp
	return nil
}

// Get returns the response stored for method.
func (s *State) Get(method string) (Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.methods[method]
	return resp, ok
}

// Delete removes the response for method. It reports whether one existed.
func (s *State) Delete(method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.methods[method]
	delete(s.methods, method)
	return ok
}

// Methods returns the configured method names in sorted order.
func (s *State) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset removes every configured response.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods = make(map[string]Response)
}
