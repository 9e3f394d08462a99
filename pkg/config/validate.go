package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrInvalidProxyTarget indicates the proxy target is not a host:port pair.
var ErrInvalidProxyTarget = errors.New("invalid proxy target")

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if err := validatePort("socket port", c.SocketPort); err != nil {
		return err
	}
	if err := validatePort("HTTP port", c.HTTPPort); err != nil {
		return err
	}
	if c.SocketPort != 0 && c.SocketPort == c.HTTPPort {
		return fmt.Errorf("socket port and HTTP port must differ (both %d)", c.SocketPort)
	}
	if c.DefaultUserID == "" {
		return errors.New("default user id must not be empty")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive, got %d", c.MaxMessageSize)
	}
	if c.ProxyEnabled() {
		if err := ValidateTarget(c.Proxy.Target); err != nil {
			return err
		}
		if c.Proxy.RequestTimeout <= 0 {
			return fmt.Errorf("proxy request timeout must be positive, got %s", c.Proxy.RequestTimeout)
		}
	}
	return nil
}

// ValidateTarget reports whether target is a usable host:port address.
func ValidateTarget(target string) error {
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidProxyTarget, target, err)
	}
	if host == "" {
		return fmt.Errorf("%w %q: missing host", ErrInvalidProxyTarget, target)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w %q: port must be between 1 and 65535", ErrInvalidProxyTarget, target)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid %s %d: must be between 0 and 65535", name, port)
	}
	return nil
}
