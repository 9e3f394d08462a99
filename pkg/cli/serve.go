package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockfirebolt/pkg/config"
	"github.com/getmockd/mockfirebolt/pkg/logging"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 10 * time.Second

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

// serveFlags holds the parsed command-line flags for the serve command.
type serveFlags struct {
	configFile   string
	socketPort   int
	httpPort     int
	defaultUser  string
	users        []string
	proxy        string
	proxyTimeout time.Duration
	token        string
	logLevel     string
	logFormat    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server (default command)",
	Long: `Start the mock server.

Clients connect to ws://host:<socket-port>/<userId>. Unknown or missing user
ids use the default user. With --proxy, every connection uses the default
user and its messages are relayed to the real device at the given host:port.`,
	Example: `  # Start with defaults
  mockfirebolt serve

  # Register extra users
  mockfirebolt serve --user 111 --user 222~A

  # Relay to a real device, token from the environment
  TOKEN=eyJ... mockfirebolt serve --proxy 192.168.1.42:9998

  # Start from a config file
  mockfirebolt serve --config mockfirebolt.yaml`,
	Args: cobra.NoArgs,
	RunE: runServeCmd,
}

func init() {
	addServeFlags(rootCmd)
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

// addServeFlags binds the serve flags on cmd. The root command carries them
// too so that a bare "mockfirebolt --proxy ..." works.
func addServeFlags(cmd *cobra.Command) {
	f := &serveFlagVals
	fs := cmd.Flags()

	fs.StringVarP(&f.configFile, "config", "c", "", "Path to YAML configuration file")
	fs.IntVar(&f.socketPort, "socket-port", config.DefaultSocketPort, "WebSocket server port")
	fs.IntVar(&f.httpPort, "http-port", config.DefaultHTTPPort, "HTTP API port")
	fs.StringVar(&f.defaultUser, "default-user", config.DefaultUserID, "User id for missing or unknown ids")
	fs.StringArrayVar(&f.users, "user", nil, "Additional user id to register (repeatable)")
	fs.StringVar(&f.proxy, "proxy", "", "Relay connections to a real device at host:port")
	fs.DurationVar(&f.proxyTimeout, "proxy-timeout", config.DefaultRequestTimeout, "Timeout for relayed requests")
	fs.StringVar(&f.token, "token", "", "Bearer token for the device (or set TOKEN)")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, important, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", config.DefaultLogFormat, "Log format (text, json)")
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(&serveFlagVals, cmd.Flags().Changed, config.LoadEnv)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
	})

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	if err := a.start(); err != nil {
		return err
	}
	return a.runMainLoop()
}

// buildConfig assembles the effective configuration: defaults, then the
// config file, then the environment, then any flag set on the command line.
func buildConfig(f *serveFlags, changed func(name string) bool, loadEnv func(*config.Config)) (config.Config, error) {
	cfg := config.Default()

	if f.configFile != "" {
		if err := config.LoadFile(&cfg, f.configFile); err != nil {
			return cfg, err
		}
	}

	if loadEnv != nil {
		loadEnv(&cfg)
	}

	if changed("socket-port") {
		cfg.SocketPort = f.socketPort
	}
	if changed("http-port") {
		cfg.HTTPPort = f.httpPort
	}
	if changed("default-user") {
		cfg.DefaultUserID = f.defaultUser
	}
	if changed("user") {
		cfg.Users = append(cfg.Users, f.users...)
	}
	if changed("proxy") {
		cfg.Proxy.Target = f.proxy
	}
	if changed("proxy-timeout") {
		cfg.Proxy.RequestTimeout = f.proxyTimeout
	}
	if changed("token") {
		cfg.Proxy.Token = f.token
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
