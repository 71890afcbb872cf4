package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	d := Defaults()
	assert.Equal(t, d.Store, cfg.Store)
	assert.Equal(t, d.Server, cfg.Server)
	assert.Equal(t, d.Cache, cfg.Cache)
	assert.Equal(t, d.Suffix, cfg.Suffix)
	assert.Equal(t, []string{"10.5072"}, cfg.TestPrefixes)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "doi-events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Precedence)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doiregistry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: sqlite
  path: /var/lib/doiregistry/doi.db
cache:
  ttl: 90s
test_prefixes:
  - "10.5072"
  - "10.80225"
precedence: [references, citations]
`), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/doiregistry/doi.db", cfg.Store.Path)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"10.5072", "10.80225"}, cfg.TestPrefixes)
	assert.Equal(t, []string{"references", "citations"}, cfg.Precedence)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DOIREGISTRY_STORE_DRIVER", "postgres")
	t.Setenv("DOIREGISTRY_STORE_DSN", "postgres://doi@localhost/doi")
	t.Setenv("DOIREGISTRY_SERVER_ADDR", ":9090")
	t.Setenv("DOIREGISTRY_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://doi@localhost/doi", cfg.Store.DSN)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"sqlite without path", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.Path = "" }, true},
		{"bad test prefix", func(c *Config) { c.TestPrefixes = []string{"11.5072"} }, true},
		{"no retries", func(c *Config) { c.Suffix.Retries = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
