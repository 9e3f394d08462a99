package proxy

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/getmockd/mockfirebolt/pkg/firebolt"
)

// Conn is an upstream connection handle. *websocket.Conn from
// github.com/gorilla/websocket satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

var errUpstreamClosed = errors.New("upstream connection closed")

type result struct {
	data []byte
	err  error
}

// pendingRequest is an in-flight forwarded payload. reply has capacity one
// and is written only by whoever removed the record from upstream.pending.
type pendingRequest struct {
	key      string
	payload  []byte
	deadline time.Time
	reply    chan result
}

// upstream wraps one live Conn with its pending requests.
type upstream struct {
	conn Conn
	m    *Manager

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string][]*pendingRequest // reply id ("" for id-less) -> FIFO
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

func newUpstream(conn Conn, m *Manager) *upstream {
	return &upstream{
		conn:    conn,
		m:       m,
		pending: make(map[string][]*pendingRequest),
	}
}

// register records a pending request keyed by the payload's JSON-RPC id.
func (u *upstream) register(payload []byte, timeout time.Duration) (*pendingRequest, error) {
	p := &pendingRequest{
		key:      firebolt.MessageID(payload),
		payload:  payload,
		deadline: time.Now().Add(timeout),
		reply:    make(chan result, 1),
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil, timeoutError(errUpstreamClosed)
	}
	u.pending[p.key] = append(u.pending[p.key], p)
	return p, nil
}

// discard removes p. It reports false if p was already resolved, in which
// case its result is (or is about to be) in p.reply.
func (u *upstream) discard(p *pendingRequest) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	queue := u.pending[p.key]
	for i, q := range queue {
		if q != p {
			continue
		}
		queue = append(queue[:i], queue[i+1:]...)
		if len(queue) == 0 {
			delete(u.pending, p.key)
		} else {
			u.pending[p.key] = queue
		}
		return true
	}
	return false
}

// popLocked removes and returns the oldest request waiting on key.
func (u *upstream) popLocked(key string) *pendingRequest {
	queue := u.pending[key]
	if len(queue) == 0 {
		return nil
	}
	p := queue[0]
	if len(queue) == 1 {
		delete(u.pending, key)
	} else {
		u.pending[key] = queue[1:]
	}
	return p
}

// deliver routes an upstream message to the request it answers. An id-less
// message answers the oldest id-less request. Messages that answer nothing,
// including late replies to timed-out ids, go to the manager's unsolicited
// handler.
func (u *upstream) deliver(data []byte) {
	key := firebolt.MessageID(data)

	u.mu.Lock()
	p := u.popLocked(key)
	u.mu.Unlock()

	if p != nil {
		p.reply <- result{data: data}
		return
	}
	u.m.unsolicited(data)
}

func (u *upstream) pendingCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, queue := range u.pending {
		n += len(queue)
	}
	return n
}

func (u *upstream) write(messageType int, data []byte) error {
	u.writeMu.Lock()
	defer u.writeMu.Unlock()
	return u.conn.WriteMessage(messageType, data)
}

// readLoop feeds replies to pending requests until the connection fails.
func (u *upstream) readLoop() {
	for {
		_, data, err := u.conn.ReadMessage()
		if err != nil {
			u.m.dropped(u, err)
			return
		}
		u.deliver(data)
	}
}

// shutdown closes the connection and fails every pending request with a
// timeout carrying cause. Safe to call more than once.
func (u *upstream) shutdown(cause error) error {
	u.closeOnce.Do(func() {
		u.mu.Lock()
		u.closed = true
		pending := u.pending
		u.pending = make(map[string][]*pendingRequest)
		u.mu.Unlock()

		for _, queue := range pending {
			for _, p := range queue {
				p.reply <- result{err: timeoutError(cause)}
			}
		}

		u.closeErr = u.conn.Close()
	})
	return u.closeErr
}

// textMessage is the frame type used for every forwarded payload.
const textMessage = websocket.TextMessage
