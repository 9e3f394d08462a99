// Package config holds the process configuration for mockfirebolt.
//
// A Config is assembled once at startup from, in increasing precedence:
// built-in defaults, an optional YAML file, environment variables, and
// command-line flags. The result is passed into the components that need it;
// nothing reads the environment after startup.
package config
