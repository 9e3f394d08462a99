package proxy

import "errors"

// Kind classifies proxy failures.
type Kind int

// Failure kinds.
const (
	KindNone Kind = iota
	// KindTokenMissing: no token in the request or the fallback source.
	// Recoverable; the caller may continue without a token.
	KindTokenMissing
	// KindNotConnected: SendRequest called before a connection exists.
	// A caller ordering error; do not retry blindly.
	KindNotConnected
	// KindTimeout: no reply before the deadline, or the upstream failed
	// while the request was pending. Transient.
	KindTimeout
	// KindUpstreamUnreachable: the target is malformed or could not be dialled.
	KindUpstreamUnreachable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindTokenMissing:
		return "TokenMissing"
	case KindNotConnected:
		return "NotConnected"
	case KindTimeout:
		return "Timeout"
	case KindUpstreamUnreachable:
		return "UpstreamUnreachable"
	default:
		return "Unknown"
	}
}

// Failure messages.
const (
	MsgTokenMissing        = "Unable to get token from connection param or not present in env"
	MsgNotConnected        = "websocketConnection not established"
	MsgTimeout             = "Connection to proxy server timedout"
	MsgUpstreamUnreachable = "Unable to connect to proxy server"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrTokenMissing        = &Error{Kind: KindTokenMissing, Msg: MsgTokenMissing}
	ErrNotConnected        = &Error{Kind: KindNotConnected, Msg: MsgNotConnected}
	ErrTimeout             = &Error{Kind: KindTimeout, Msg: MsgTimeout}
	ErrUpstreamUnreachable = &Error{Kind: KindUpstreamUnreachable, Msg: MsgUpstreamUnreachable}
)

// errClosed is the cause attached to requests failed by Close.
var errClosed = errors.New("proxy manager closed")

// Error is the single failure type returned by the Manager.
type Error struct {
	Kind Kind
	// Msg is the user-facing message returned by Error.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

// Error returns Msg. The cause is available through Unwrap.
func (e *Error) Error() string {
	return e.Msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of err, or KindNone if err is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNone
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func timeoutError(cause error) *Error {
	return newError(KindTimeout, MsgTimeout, cause)
}
