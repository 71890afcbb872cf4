// Package config loads doiregistry settings from flags, the environment
// and an optional doiregistry.yaml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// EnvPrefix prefixes every environment variable, e.g. DOIREGISTRY_STORE_DRIVER.
const EnvPrefix = "DOIREGISTRY"

// Config holds all configuration options for doiregistry.
type Config struct {
	Store        StoreConfig  `mapstructure:"store"`
	Server       ServerConfig `mapstructure:"server"`
	Cache        CacheConfig  `mapstructure:"cache"`
	Kafka        KafkaConfig  `mapstructure:"kafka"`
	TestPrefixes []string     `mapstructure:"test_prefixes"`
	Vocabulary   string       `mapstructure:"vocabulary"` // YAML file overriding the embedded vocabulary
	Precedence   []string     `mapstructure:"precedence"` // relation family order
	Suffix       SuffixConfig `mapstructure:"suffix"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "memory", "sqlite" or "postgres"
	Path   string `mapstructure:"path"`   // sqlite database file
	DSN    string `mapstructure:"dsn"`    // postgres connection string
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CacheConfig configures the aggregate cache. With RedisAddr empty an
// in-process cache is used.
type CacheConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
}

// KafkaConfig configures event ingestion. Ingestion is off without brokers.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Group   string   `mapstructure:"group"`
}

// SuffixConfig configures DOI suffix minting.
type SuffixConfig struct {
	Retries int `mapstructure:"retries"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Driver: "memory",
			Path:   "doiregistry.db",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic: "doi-events",
			Group: "doiregistry-events",
		},
		TestPrefixes: []string{hub.DefaultTestPrefix},
		Suffix: SuffixConfig{
			Retries: 10,
		},
	}
}

// SetDefaults registers every key with v so environment variables can
// override keys missing from the config file.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("kafka.group", d.Kafka.Group)
	v.SetDefault("test_prefixes", d.TestPrefixes)
	v.SetDefault("vocabulary", d.Vocabulary)
	v.SetDefault("precedence", d.Precedence)
	v.SetDefault("suffix.retries", d.Suffix.Retries)
}

// Load reads configuration into a Config. With file empty, doiregistry.yaml
// is looked up in the working directory and a missing file is not an error.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("doiregistry")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks option values that would otherwise fail later.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	for _, p := range c.TestPrefixes {
		if !hub.ValidPrefix(p) {
			return fmt.Errorf("invalid test prefix %q", p)
		}
	}
	if c.Suffix.Retries < 1 {
		return errors.New("suffix.retries must be at least 1")
	}
	return nil
}
