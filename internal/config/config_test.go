package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/telemetry/pkg/logging"
	"github.com/vjranagit/telemetry/pkg/storage"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telemetry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, storage.BackendBadger, cfg.Storage.Backend)
	assert.True(t, cfg.Catalog)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  listen_addr: ":9000"
  timeout: 5s
storage:
  path: /var/lib/telemetry
  compression_level: 4
logging:
  level: debug
  json: true
catalog: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 20*time.Second, cfg.Server.EvalTimeout, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/telemetry", cfg.Storage.Path)
	assert.Equal(t, 4, cfg.Storage.CompressionLevel)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())
	assert.True(t, cfg.Logging.JSON)
	assert.False(t, cfg.Catalog)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server:\n  listen_addr: \":9000\"\n")
	t.Setenv("TELEMETRY_LISTEN_ADDR", ":7000")
	t.Setenv("TELEMETRY_COMPRESSION_LEVEL", "3")
	t.Setenv("TELEMETRY_STORAGE_IN_MEMORY", "true")
	t.Setenv("TELEMETRY_EVAL_TIMEOUT", "1m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, 3, cfg.Storage.CompressionLevel)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, time.Minute, cfg.Server.EvalTimeout)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "server: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("bad env int", func(t *testing.T) {
		t.Setenv("TELEMETRY_COMPRESSION_LEVEL", "high")
		_, err := Load("")
		assert.ErrorContains(t, err, "TELEMETRY_COMPRESSION_LEVEL")
	})

	t.Run("bad env bool", func(t *testing.T) {
		t.Setenv("TELEMETRY_CATALOG", "sometimes")
		_, err := Load("")
		assert.ErrorContains(t, err, "TELEMETRY_CATALOG")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }, true},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }, true},
		{"compression too low", func(c *Config) { c.Storage.CompressionLevel = 0 }, true},
		{"compression too high", func(c *Config) { c.Storage.CompressionLevel = 5 }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "sqlite" }, true},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"badger without path", func(c *Config) { c.Storage.Path = "" }, true},
		{"in-memory badger without path", func(c *Config) {
			c.Storage.Path = ""
			c.Storage.InMemory = true
		}, false},
		{"influx without bucket", func(c *Config) {
			c.Storage.Backend = storage.BackendInflux
			c.Storage.Influx = InfluxConfig{URL: "http://localhost:8086", Org: "hackystat"}
		}, true},
		{"influx bad url", func(c *Config) {
			c.Storage.Backend = storage.BackendInflux
			c.Storage.Influx = InfluxConfig{URL: "not a url", Org: "o", Bucket: "b"}
		}, true},
		{"influx complete", func(c *Config) {
			c.Storage.Backend = storage.BackendInflux
			c.Storage.Influx = InfluxConfig{URL: "http://localhost:8086", Org: "o", Bucket: "b"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToStorageConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = storage.BackendInflux
	cfg.Storage.Influx = InfluxConfig{URL: "http://influx:8086", Token: "tok", Org: "o", Bucket: "b"}

	sc := cfg.ToStorageConfig()
	assert.Equal(t, storage.BackendInflux, sc.Backend)
	assert.Equal(t, "./data", sc.Path)
	assert.Equal(t, 2, sc.CompressionLevel)
	assert.Equal(t, storage.InfluxConfig{URL: "http://influx:8086", Token: "tok", Org: "o", Bucket: "b"}, sc.Influx)
}
