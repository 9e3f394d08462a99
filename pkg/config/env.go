package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvSocketPort   = "MOCKFIREBOLT_SOCKET_PORT"
	EnvHTTPPort     = "MOCKFIREBOLT_HTTP_PORT"
	EnvDefaultUser  = "MOCKFIREBOLT_DEFAULT_USER"
	EnvProxy        = "MOCKFIREBOLT_PROXY"
	EnvProxyTimeout = "MOCKFIREBOLT_PROXY_TIMEOUT"
	EnvMaxMessage   = "MOCKFIREBOLT_MAX_MESSAGE_SIZE"
	EnvLogLevel     = "MOCKFIREBOLT_LOG_LEVEL"
	EnvToken        = "TOKEN"
)

// LookupFunc matches os.LookupEnv. Tests pass a map-backed function instead
// of mutating the process environment.
type LookupFunc func(key string) (string, bool)

// LoadEnv overlays environment variables onto cfg using os.LookupEnv.
func LoadEnv(cfg *Config) {
	LoadEnvFrom(cfg, os.LookupEnv)
}

// LoadEnvFrom overlays variables from lookup onto cfg. It only sets values
// that are present and parse cleanly.
func LoadEnvFrom(cfg *Config, lookup LookupFunc) {
	if v, ok := lookup(EnvSocketPort); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.SocketPort = port
		}
	}

	if v, ok := lookup(EnvHTTPPort); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = port
		}
	}

	if v, ok := lookup(EnvDefaultUser); ok && v != "" {
		cfg.DefaultUserID = v
	}

	if v, ok := lookup(EnvProxy); ok && v != "" {
		cfg.Proxy.Target = v
	}

	if v, ok := lookup(EnvProxyTimeout); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Proxy.RequestTimeout = d
		}
	}

	if v, ok := lookup(EnvMaxMessage); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxMessageSize = n
		}
	}

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}

	// The token is read from a bare TOKEN variable for compatibility with
	// existing test harnesses.
	if v, ok := lookup(EnvToken); ok && v != "" {
		cfg.Proxy.Token = v
	}
}
