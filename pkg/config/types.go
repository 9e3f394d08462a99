package config

import "time"

// Default values.
const (
	DefaultSocketPort     = 9998
	DefaultHTTPPort       = 3333
	DefaultUserID         = "12345"
	DefaultRequestTimeout = 8 * time.Second
	DefaultDialTimeout    = 5 * time.Second
	DefaultMaxMessageSize = 1 << 20 // 1MB
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// DefaultUsers are the starter users registered at startup alongside the
// default user.
var DefaultUsers = []string{"123", "456", "789", "123~A", "456~A", "789~A"}

// Config is the complete process configuration.
type Config struct {
	// SocketPort is the port the WebSocket upgrade endpoint listens on.
	SocketPort int `yaml:"socketPort"`
	// HTTPPort is the port the HTTP API listens on.
	HTTPPort int `yaml:"httpPort"`
	// DefaultUserID is the session used for empty or unknown user ids,
	// and for every connection when proxying.
	DefaultUserID string `yaml:"defaultUserId"`
	// Users are registered at startup in addition to DefaultUserID.
	Users []string `yaml:"users"`
	// MaxMessageSize is the largest inbound WebSocket message in bytes.
	// Larger messages close the connection.
	MaxMessageSize int64 `yaml:"maxMessageSize"`

	Proxy ProxyConfig `yaml:"proxy"`
	Log   LogConfig   `yaml:"log"`
}

// ProxyConfig configures passthrough to a real device.
type ProxyConfig struct {
	// Target is the upstream device as host:port. Proxy mode is enabled
	// when it is non-empty.
	Target string `yaml:"target"`
	// Token is the fallback bearer token used when the upgrade request
	// carries no token query parameter.
	Token string `yaml:"token"`
	// RequestTimeout bounds how long a forwarded request waits for its reply.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// DialTimeout bounds the upstream WebSocket handshake.
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		SocketPort:     DefaultSocketPort,
		HTTPPort:       DefaultHTTPPort,
		DefaultUserID:  DefaultUserID,
		Users:          append([]string(nil), DefaultUsers...),
		MaxMessageSize: DefaultMaxMessageSize,
		Proxy: ProxyConfig{
			RequestTimeout: DefaultRequestTimeout,
			DialTimeout:    DefaultDialTimeout,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// ProxyEnabled reports whether connections are relayed to a real device.
func (c *Config) ProxyEnabled() bool {
	return c.Proxy.Target != ""
}
