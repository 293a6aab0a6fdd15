package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultTCPAddr, cfg.TCPAddr)
	assert.Equal(t, 1000, cfg.BusCapacity)
	assert.Equal(t, 1<<20, cfg.MaxFrameSize)
}

func TestLoad_FileThenEnv(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/etc/sigrelay.yaml", []byte(`
tcp_addr: "0.0.0.0:9000"
unix_path: /tmp/relay.sock
bus_capacity: 64
shutdown_timeout: 3s
tracing:
  enabled: false
  service_name: relay-test
`), 0o644))

	t.Setenv("RELAY_BUS_CAPACITY", "128")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(fsys, "/etc/sigrelay.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9000", cfg.TCPAddr)
	assert.Equal(t, "/tmp/relay.sock", cfg.UnixPath)
	assert.Equal(t, 128, cfg.BusCapacity, "environment overrides the file")
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "relay-test", cfg.Tracing.ServiceName)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "relay.yaml", []byte("max_frame_size: 4096\n"), 0o644))
	t.Setenv("RELAY_CONFIG", "relay.yaml")

	cfg, err := Load(fsys, "")
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.MaxFrameSize)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(afero.NewMemMapFs(), "nope.yaml")
		assert.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "c.yaml", []byte("tcp_adr: x\n"), 0o644))
		_, err := Load(fsys, "c.yaml")
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("bad integer", func(t *testing.T) {
		t.Setenv("RELAY_MAX_FRAME_SIZE", "lots")
		_, err := Load(afero.NewMemMapFs(), "")
		assert.ErrorContains(t, err, "RELAY_MAX_FRAME_SIZE")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("RELAY_SHUTDOWN_TIMEOUT", "soon")
		_, err := Load(afero.NewMemMapFs(), "")
		assert.ErrorContains(t, err, "RELAY_SHUTDOWN_TIMEOUT")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unix only", mutate: func(c *Config) { c.TCPAddr = ""; c.UnixPath = "/tmp/r.sock" }},
		{name: "ephemeral port", mutate: func(c *Config) { c.TCPAddr = "127.0.0.1:0" }},
		{name: "port only", mutate: func(c *Config) { c.TCPAddr = ":7070" }},
		{name: "no listeners", mutate: func(c *Config) { c.TCPAddr = "" }, wantErr: "required_without"},
		{name: "missing port", mutate: func(c *Config) { c.TCPAddr = "localhost" }, wantErr: "listen_addr"},
		{name: "port out of range", mutate: func(c *Config) { c.TCPAddr = "localhost:70000" }, wantErr: "listen_addr"},
		{name: "zero capacity", mutate: func(c *Config) { c.BusCapacity = 0 }, wantErr: "BusCapacity"},
		{name: "tiny frames", mutate: func(c *Config) { c.MaxFrameSize = 8 }, wantErr: "MaxFrameSize"},
		{name: "log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LogFormat"},
		{name: "zipkin url", mutate: func(c *Config) { c.Tracing.ZipkinURL = "not a url" }, wantErr: "ZipkinURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
