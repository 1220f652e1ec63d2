package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fleeterrors "github.com/mcpfleet/mcpfleet/internal/errors"
)

func TestParse_JSON(t *testing.T) {
	data := []byte(`{
		"mcpServers": {
			"sqlite": {
				"command": "uvx",
				"args": ["mcp-server-sqlite", "--db-path", "test.db"],
				"env": {"LOG_LEVEL": "debug"},
				"timeout": 45,
				"maxConcurrency": 2
			},
			"filesystem": {
				"command": "npx",
				"args": ["-y", "@modelcontextprotocol/server-filesystem", "."],
				"cwd": "/tmp"
			}
		},
		"defaults": {
			"timeout": "90s",
			"maxConcurrency": 4,
			"gracePeriod": 3
		}
	}`)

	cfg, err := Parse(data, ".json")
	require.NoError(t, err)

	require.Len(t, cfg.Servers, 2)

	sqlite := cfg.Servers["sqlite"]
	require.Equal(t, "sqlite", sqlite.Name)
	require.Equal(t, "uvx", sqlite.Command)
	require.Equal(t, []string{"mcp-server-sqlite", "--db-path", "test.db"}, sqlite.Args)
	require.Equal(t, "debug", sqlite.Env["LOG_LEVEL"])
	require.Equal(t, 45*time.Second, sqlite.Timeout.Std())
	require.Equal(t, 2, sqlite.MaxConcurrency)

	fs := cfg.Servers["filesystem"]
	require.Equal(t, "filesystem", fs.Name)
	require.Equal(t, "/tmp", fs.Cwd)
	require.Zero(t, fs.Timeout)

	require.Equal(t, 90*time.Second, cfg.Defaults.Timeout.Std())
	require.Equal(t, 4, cfg.Defaults.MaxConcurrency)
	require.Equal(t, 3*time.Second, cfg.Defaults.GracePeriod.Std())

	// Unset defaults fall back to builtins.
	require.Equal(t, DefaultHandshakeTimeout, cfg.Defaults.HandshakeTimeout.Std())
}

func TestParse_YAML(t *testing.T) {
	data := []byte(`
mcpServers:
  weather:
    command: python
    args: ["-m", "weather_server"]
    timeout: 15s
defaults:
  maxConcurrency: 3
`)

	cfg, err := Parse(data, ".yaml")
	require.NoError(t, err)

	weather := cfg.Servers["weather"]
	require.Equal(t, "weather", weather.Name)
	require.Equal(t, "python", weather.Command)
	require.Equal(t, 15*time.Second, weather.Timeout.Std())
	require.Equal(t, 3, cfg.Defaults.MaxConcurrency)
	require.Equal(t, DefaultTimeout, cfg.Defaults.Timeout.Std())
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvToolTimeout, "300")
	t.Setenv(EnvMaxConcurrency, "2")

	data := []byte(`{"mcpServers": {"alpha": {"command": "alpha-server"}}}`)

	cfg, err := Parse(data, ".json")
	require.NoError(t, err)

	require.Equal(t, 300*time.Second, cfg.Defaults.Timeout.Std())
	require.Equal(t, 2, cfg.Defaults.MaxConcurrency)
}

func TestParse_EnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv(EnvToolTimeout, "not-a-number")
	t.Setenv(EnvMaxConcurrency, "-3")

	data := []byte(`{"mcpServers": {"alpha": {"command": "alpha-server"}}}`)

	cfg, err := Parse(data, ".json")
	require.NoError(t, err)

	require.Equal(t, DefaultTimeout, cfg.Defaults.Timeout.Std())
	require.Equal(t, DefaultMaxConcurrency, cfg.Defaults.MaxConcurrency)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no servers", `{"mcpServers": {}}`},
		{"missing command", `{"mcpServers": {"alpha": {"args": ["x"]}}}`},
		{"slash in name", `{"mcpServers": {"a/b": {"command": "x"}}}`},
		{"negative concurrency", `{"mcpServers": {"alpha": {"command": "x", "maxConcurrency": -1}}}`},
		{"malformed JSON", `{"mcpServers": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), ".json")
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/server_config.json")
	require.Error(t, err)

	var cfgErr *fleeterrors.ConfigError

	require.ErrorAs(t, err, &cfgErr)
}

func TestNew_DuplicateName(t *testing.T) {
	_, err := New([]*ServerSpec{
		{Name: "alpha", Command: "a"},
		{Name: "alpha", Command: "b"},
	})
	require.ErrorIs(t, err, fleeterrors.ErrDuplicateServer)
}

func TestDuration_Forms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{"integer seconds", `30`, 30 * time.Second},
		{"fractional seconds", `1.5`, 1500 * time.Millisecond},
		{"duration string", `"2m30s"`, 2*time.Minute + 30*time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			require.NoError(t, json.Unmarshal([]byte(tt.raw), &d))
			require.Equal(t, tt.want, d.Std())
		})
	}
}

func TestDuration_Invalid(t *testing.T) {
	for _, raw := range []string{`-5`, `"-5s"`, `"soon"`, `true`} {
		var d Duration

		require.Error(t, json.Unmarshal([]byte(raw), &d), "raw=%s", raw)
	}
}

func TestTimeoutFor(t *testing.T) {
	cfg, err := New([]*ServerSpec{
		{Name: "fast", Command: "x", Timeout: Duration(5 * time.Second)},
		{Name: "plain", Command: "y"},
	})
	require.NoError(t, err)

	require.Equal(t, 5*time.Second, cfg.TimeoutFor(cfg.Servers["fast"]))
	require.Equal(t, DefaultTimeout, cfg.TimeoutFor(cfg.Servers["plain"]))
	require.Equal(t, DefaultTimeout, cfg.TimeoutFor(nil))
}

func TestNames_Sorted(t *testing.T) {
	cfg, err := New([]*ServerSpec{
		{Name: "zeta", Command: "z"},
		{Name: "alpha", Command: "a"},
		{Name: "mid", Command: "m"},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"alpha", "mid", "zeta"}, cfg.Names())
}
