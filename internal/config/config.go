// Package config resolves which backend the quarry CLI talks to.
//
// Values are layered, highest precedence first: command-line flags,
// QUARRY_* environment variables, the config file, defaults. A missing
// default config file is not an error.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Supported backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config keys.
const (
	KeyBackend       = "backend"
	KeySQLitePath    = "sqlite.path"
	KeyMongoURI      = "mongo.uri"
	KeyMongoDatabase = "mongo.database"
)

const (
	configFileName = "quarry"
	configFileType = "yaml"
	envPrefix      = "QUARRY"

	defaultBackend       = BackendSQLite
	defaultSQLitePath    = "quarry.db"
	defaultMongoDatabase = "quarry"
)

var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrSQLitePathEmpty    = errors.New("sqlite path must not be empty")
	ErrMongoURIEmpty      = errors.New("mongo uri must not be empty")
	ErrMongoDatabaseEmpty = errors.New("mongo database must not be empty")
)

var knownBackends = map[string]bool{
	BackendMemory: true,
	BackendSQLite: true,
	BackendMongo:  true,
}

// Config holds backend selection and connection parameters.
type Config struct {
	Backend string       `json:"backend" yaml:"backend"`
	SQLite  SQLiteConfig `json:"sqlite" yaml:"sqlite"`
	Mongo   MongoConfig  `json:"mongo" yaml:"mongo"`
}

// SQLiteConfig locates the SQLite database file. ":memory:" is accepted.
type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
}

// MongoConfig locates the MongoDB database.
type MongoConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	Database string `json:"database" yaml:"database"`
}

// Validate checks the parameters of the selected backend only.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w: %q", ErrBackendUnknown, c.Backend)
	}
	switch c.Backend {
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return ErrSQLitePathEmpty
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return ErrMongoURIEmpty
		}
		if c.Mongo.Database == "" {
			return ErrMongoDatabaseEmpty
		}
	}
	return nil
}

// Load resolves the configuration. When path is empty, quarry.yaml is
// looked up in the working directory and may be absent; an explicit path
// must exist. flags maps config keys to command-line flags; a flag
// overrides the other layers only when it was set.
func Load(path string, flags map[string]*pflag.Flag) (Config, error) {
	v := viper.New()
	v.SetDefault(KeyBackend, defaultBackend)
	v.SetDefault(KeySQLitePath, defaultSQLitePath)
	v.SetDefault(KeyMongoURI, "")
	v.SetDefault(KeyMongoDatabase, defaultMongoDatabase)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return Config{
		Backend: strings.ToLower(v.GetString(KeyBackend)),
		SQLite:  SQLiteConfig{Path: v.GetString(KeySQLitePath)},
		Mongo: MongoConfig{
			URI:      v.GetString(KeyMongoURI),
			Database: v.GetString(KeyMongoDatabase),
		},
	}, nil
}
