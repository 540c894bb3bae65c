package remote

import (
	"context"
	"errors"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendS3     = "s3"
	BackendLibSQL = "libsql"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown remote backend")

// Config selects and configures a Backend.
type Config struct {
	Backend string
	Redis   RedisConfig
	S3      S3Config
	LibSQL  LibSQLConfig
}

// Open creates the configured Backend. An empty name means "none".
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return None{}, nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		b, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendS3:
		b, err := NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendLibSQL:
		b, err := NewLibSQL(ctx, cfg.LibSQL)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// None is a Backend that keeps nothing. Writes succeed and lists are
// empty, so records stay local.
type None struct{}

func (None) Put(context.Context, string, string, string, []byte) error { return nil }

func (None) Delete(context.Context, string, string, string) error { return nil }

func (None) List(context.Context, string, string) ([]Document, error) { return nil, nil }

func (None) Close() error { return nil }
