// Package config loads configd's environment-backed configuration using
// spf13/viper: a struct with mapstructure tags, defaults set once, then
// AutomaticEnv
// overlays the server variables directly (ENV, HOST, PORT,
// STORAGE, SQLITE_FILENAME, POSTGRES_URL) plus a few ambient additions.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Environment is the deployment profile; it is validated and logged at
// startup and never changes domain behavior.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvStg  Environment = "stg"
	EnvProd Environment = "prod"
)

// Storage selects which SchemaRepository backend the server wires up.
type Storage string

const (
	StorageMemory   Storage = "in-mem"
	StorageSQLite   Storage = "sqlite"
	StoragePostgres Storage = "postgres"
)

// Config is configd's full runtime configuration.
type Config struct {
	Env  Environment `mapstructure:"env"`
	Host string      `mapstructure:"host"`
	Port string      `mapstructure:"port"`

	Storage        Storage `mapstructure:"storage"`
	SQLiteFilename string  `mapstructure:"sqlite_filename"`
	PostgresURL    string  `mapstructure:"postgres_url"`

	Log   LogConfig   `mapstructure:"log"`
	Cache CacheConfig `mapstructure:"cache"`
}

// LogConfig mirrors pkg/logger.Config's knobs.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// CacheConfig configures the read-through schema cache in front of
// SchemaRepository.FindByID (internal/infrastructure/cache).
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	MaxKeys  int    `mapstructure:"max_keys"`
	Backend  string `mapstructure:"backend"` // "lru" or "redis"
	RedisURL string `mapstructure:"redis_url"`
}

// Load reads configuration from the environment, falling back to the
// defaults below for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// AutomaticEnv only binds keys it already knows about; bind the
	// spec's exact env var names to their mapstructure keys so e.g.
	// STORAGE maps to "storage".
	bindings := map[string]string{
		"env":             "ENV",
		"host":            "HOST",
		"port":            "PORT",
		"storage":         "STORAGE",
		"sqlite_filename": "SQLITE_FILENAME",
		"postgres_url":    "POSTGRES_URL",
		"log.level":       "LOG_LEVEL",
		"log.format":      "LOG_FORMAT",
		"log.output":      "LOG_OUTPUT",
		"log.filename":    "LOG_FILENAME",
		"cache.enabled":   "CACHE_ENABLED",
		"cache.max_keys":  "CACHE_MAX_KEYS",
		"cache.backend":   "CACHE_BACKEND",
		"cache.redis_url": "CACHE_REDIS_URL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", string(EnvDev))
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", "8080")
	v.SetDefault("storage", string(StorageMemory))
	v.SetDefault("sqlite_filename", "configd.db")
	v.SetDefault("postgres_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.filename", "configd.log")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.max_keys", 512)
	v.SetDefault("cache.backend", "lru")
	v.SetDefault("cache.redis_url", "")
}

// Validate rejects combinations that would fail at bootstrap anyway,
// surfacing the mistake before a connection is attempted.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDev, EnvStg, EnvProd:
	default:
		return fmt.Errorf("invalid ENV %q: must be dev, stg or prod", c.Env)
	}

	switch c.Storage {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("invalid STORAGE %q: must be in-mem, sqlite or postgres", c.Storage)
	}

	if c.Storage == StorageSQLite && c.SQLiteFilename == "" {
		return fmt.Errorf("SQLITE_FILENAME must be set when STORAGE=sqlite")
	}
	if c.Storage == StoragePostgres && c.PostgresURL == "" {
		return fmt.Errorf("POSTGRES_URL must be set when STORAGE=postgres")
	}

	return nil
}

// Addr is the host:port pair net/http.Server listens on.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
