// Package config loads goalcoach settings.
//
// Settings come from, in increasing priority: built-in defaults, a
// goalcoach.yaml or goalcoach.toml file, GOALCOACH_* environment variables
// (a .env file in the working directory is loaded first) and command-line
// flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goalcoach/goalcoach/internal/remote"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "GOALCOACH"

// Config holds every setting.
type Config struct {
	DataDir     string
	DBPath      string
	SessionFile string

	Log    LogConfig
	Remote remote.Config
	Sync   SyncConfig

	Debounce   time.Duration
	ServerPort int
}

// LogConfig controls the process logger.
type LogConfig struct {
	// File is the rotating log file. Empty logs to stderr only.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SyncConfig controls the remote mirror traffic.
type SyncConfig struct {
	PushTimeout     time.Duration
	FetchTimeout    time.Duration
	PullConcurrency int
}

// DefaultDataDir returns ~/.goalcoach, or .goalcoach when the home directory
// is unknown.
func DefaultDataDir() string {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".goalcoach"
	}
	return filepath.Join(home, ".goalcoach")
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("db_path", "")
	v.SetDefault("session_file", "")

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("remote.backend", remote.BackendNone)
	v.SetDefault("remote.redis.url", "redis://localhost:6379/0")
	v.SetDefault("remote.redis.prefix", "goalcoach:")
	v.SetDefault("remote.s3.bucket", "")
	v.SetDefault("remote.s3.region", "us-east-1")
	v.SetDefault("remote.s3.endpoint", "")
	v.SetDefault("remote.s3.access_key", "")
	v.SetDefault("remote.s3.secret_key", "")
	v.SetDefault("remote.s3.prefix", "")
	v.SetDefault("remote.libsql.url", "")
	v.SetDefault("remote.libsql.auth_token", "")

	v.SetDefault("sync.push_timeout", 30*time.Second)
	v.SetDefault("sync.fetch_timeout", time.Minute)
	v.SetDefault("sync.pull_concurrency", 3)

	v.SetDefault("daemon.debounce", 200*time.Millisecond)
	v.SetDefault("server.port", 8080)
}

// New returns a viper instance with defaults, environment binding and the
// config file search path set up. The .env file, if any, is loaded into the
// process environment first; variables already set win.
func New() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("goalcoach")
	v.AddConfigPath(v.GetString("data_dir"))
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// FlagKeys maps command-line flag names onto config keys.
var FlagKeys = map[string]string{
	"data-dir": "data_dir",
	"db-path":  "db_path",
	"log-file": "log.file",
	"remote":   "remote.backend",
	"port":     "server.port",
}

// Load binds the flags in flags named in FlagKeys, reads the config file if
// one exists and returns the resolved settings.
func Load(v *viper.Viper, flags *pflag.FlagSet) (Config, error) {
	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper resolves the settings held by v.
func FromViper(v *viper.Viper) (Config, error) {
	c := Config{
		DataDir:     v.GetString("data_dir"),
		DBPath:      v.GetString("db_path"),
		SessionFile: v.GetString("session_file"),
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Remote: remote.Config{
			Backend: v.GetString("remote.backend"),
			Redis: remote.RedisConfig{
				URL:    v.GetString("remote.redis.url"),
				Prefix: v.GetString("remote.redis.prefix"),
			},
			S3: remote.S3Config{
				Bucket:    v.GetString("remote.s3.bucket"),
				Region:    v.GetString("remote.s3.region"),
				Endpoint:  v.GetString("remote.s3.endpoint"),
				AccessKey: v.GetString("remote.s3.access_key"),
				SecretKey: v.GetString("remote.s3.secret_key"),
				Prefix:    v.GetString("remote.s3.prefix"),
			},
			LibSQL: remote.LibSQLConfig{
				URL:       v.GetString("remote.libsql.url"),
				AuthToken: v.GetString("remote.libsql.auth_token"),
			},
		},
		Sync: SyncConfig{
			PushTimeout:     v.GetDuration("sync.push_timeout"),
			FetchTimeout:    v.GetDuration("sync.fetch_timeout"),
			PullConcurrency: v.GetInt("sync.pull_concurrency"),
		},
		Debounce:   v.GetDuration("daemon.debounce"),
		ServerPort: v.GetInt("server.port"),
	}

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "goalcoach.db")
	}
	if c.SessionFile == "" {
		c.SessionFile = filepath.Join(c.DataDir, "session.toml")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	switch c.Remote.Backend {
	case "", remote.BackendNone, remote.BackendMemory, remote.BackendRedis, remote.BackendS3, remote.BackendLibSQL:
	default:
		return fmt.Errorf("%w: %q", remote.ErrUnknownBackend, c.Remote.Backend)
	}
	if c.Remote.Backend == remote.BackendS3 && c.Remote.S3.Bucket == "" {
		return errors.New("remote.s3.bucket is required for the s3 backend")
	}
	if c.Remote.Backend == remote.BackendLibSQL && c.Remote.LibSQL.URL == "" {
		return errors.New("remote.libsql.url is required for the libsql backend")
	}
	if c.Sync.PullConcurrency < 0 {
		return fmt.Errorf("sync.pull_concurrency must not be negative (got %d)", c.Sync.PullConcurrency)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server.port out of range (got %d)", c.ServerPort)
	}
	return nil
}
