package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockfirebolt/pkg/config"
)

func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := buildConfig(&serveFlags{}, changedSet(), nil)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultSocketPort, cfg.SocketPort)
	assert.Equal(t, config.DefaultHTTPPort, cfg.HTTPPort)
	assert.Equal(t, config.DefaultUserID, cfg.DefaultUserID)
	assert.Equal(t, config.DefaultUsers, cfg.Users)
	assert.False(t, cfg.ProxyEnabled())
}

func TestBuildConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mockfirebolt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
socketPort: 7000
httpPort: 7001
defaultUserId: file-user
proxy:
  target: 10.0.0.1:9998
`), 0o600))

	env := func(cfg *config.Config) {
		config.LoadEnvFrom(cfg, func(key string) (string, bool) {
			switch key {
			case config.EnvHTTPPort:
				return "7101", true
			case config.EnvToken:
				return "env-token", true
			}
			return "", false
		})
	}

	f := &serveFlags{
		configFile:   path,
		socketPort:   7200,
		httpPort:     1,
		proxy:        "10.0.0.2:9998",
		proxyTimeout: 2 * time.Second,
		users:        []string{"extra"},
	}

	cfg, err := buildConfig(f, changedSet("socket-port", "proxy", "proxy-timeout", "user"), env)
	require.NoError(t, err)

	assert.Equal(t, 7200, cfg.SocketPort, "flag beats file")
	assert.Equal(t, 7101, cfg.HTTPPort, "env beats file; unchanged flag ignored")
	assert.Equal(t, "file-user", cfg.DefaultUserID)
	assert.Equal(t, "10.0.0.2:9998", cfg.Proxy.Target)
	assert.Equal(t, 2*time.Second, cfg.Proxy.RequestTimeout)
	assert.Equal(t, "env-token", cfg.Proxy.Token)
	assert.Contains(t, cfg.Users, "extra")
	assert.Contains(t, cfg.Users, "123")
}

func TestBuildConfig_Invalid(t *testing.T) {
	_, err := buildConfig(&serveFlags{proxy: "not-a-target"}, changedSet("proxy"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidProxyTarget)

	_, err = buildConfig(&serveFlags{configFile: filepath.Join(t.TempDir(), "missing.yaml")}, changedSet(), nil)
	assert.ErrorIs(t, err, config.ErrFileNotFound)
}

func TestPrintVersion(t *testing.T) {
	out := VersionOutput{Version: "1.2.0", Commit: "abc123", Date: "2026-01-01", Go: "go1.26", OS: "linux", Arch: "amd64"}

	var buf bytes.Buffer
	require.NoError(t, printVersion(&buf, out, false))
	assert.Equal(t, "mockfirebolt v1.2.0 (abc123, 2026-01-01)\ngo1.26 linux/amd64\n", buf.String())

	buf.Reset()
	require.NoError(t, printVersion(&buf, out, true))
	assert.Contains(t, buf.String(), `"commit": "abc123"`)
}

func TestRootCommandHasServeFlags(t *testing.T) {
	for _, name := range []string{"config", "socket-port", "http-port", "default-user", "user", "proxy", "proxy-timeout", "token", "log-level", "log-format"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), "root --%s", name)
		assert.NotNil(t, serveCmd.Flags().Lookup(name), "serve --%s", name)
	}
}
