// Package config loads flexschema settings from flags, environment,
// an optional config file and defaults, in that order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/backend/memory"
	"github.com/roach88/flexschema/internal/backend/mongo"
	"github.com/roach88/flexschema/internal/backend/sqlite"
	"github.com/roach88/flexschema/internal/orm"
)

// EnvPrefix prefixes every environment override: FLEXSCHEMA_SQLITE_PATH
// sets sqlite.path.
const EnvPrefix = "FLEXSCHEMA"

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// Config is the resolved configuration.
type Config struct {
	Backend       string       `mapstructure:"backend"`
	SQLite        SQLiteConfig `mapstructure:"sqlite"`
	Mongo         MongoConfig  `mapstructure:"mongo"`
	Schemas       string       `mapstructure:"schemas"`
	PageSize      int          `mapstructure:"page_size"`
	LogLevel      string       `mapstructure:"log_level"`
	DocumentGuard bool         `mapstructure:"document_guard"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// MongoConfig configures the document-store backend.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// New returns a viper instance with defaults and environment binding.
//
// CRITICAL: every key needs a default. AutomaticEnv only consults the
// environment for keys viper already knows, and Unmarshal only sees those.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("sqlite.path", "flexschema.db")
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "flexschema")
	v.SetDefault("schemas", "schemas")
	v.SetDefault("page_size", orm.DefaultPageSize)
	v.SetDefault("log_level", "info")
	v.SetDefault("document_guard", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file and resolves v into a Config.
//
// An explicit file must exist. Without one, flexschema.yaml is searched in
// the working directory and in $HOME/.config/flexschema; not finding it is
// not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("flexschema")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/flexschema")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks option values. A page size of zero means the default.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("config: sqlite.path is required for the sqlite backend")
		}
	case BackendMemory:
	case BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("config: mongo.uri is required for the mongo backend")
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("config: mongo.database is required for the mongo backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want %s, %s or %s)", c.Backend, BackendSQLite, BackendMemory, BackendMongo)
	}

	if c.PageSize < 0 {
		return fmt.Errorf("config: page_size must not be negative, got %d", c.PageSize)
	}
	if c.PageSize == 0 {
		c.PageSize = orm.DefaultPageSize
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses log_level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	return level, nil
}

// OpenBackend opens the configured backend.
func (c *Config) OpenBackend(ctx context.Context) (backend.Backend, error) {
	switch c.Backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendMongo:
		store, err := mongo.Open(ctx, c.Mongo.URI, c.Mongo.Database)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendSQLite:
		store, err := sqlite.Open(c.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("config: unknown backend %q", c.Backend)
}

// ORMOptions returns the orm options implied by the configuration.
func (c *Config) ORMOptions(logger *slog.Logger) []orm.Option {
	opts := []orm.Option{orm.WithLogger(logger)}
	if c.DocumentGuard {
		opts = append(opts, orm.WithDocumentGuard())
	}
	return opts
}
