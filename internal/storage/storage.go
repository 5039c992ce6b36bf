// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"

	"github.com/newthinker/comicshrink/internal/core"
)

// Storage publishes finished archives to a secondary location.
type Storage interface {
	// Write stores data under key. Keys use forward slashes.
	Write(ctx context.Context, key string, data []byte) error

	// Exists reports whether key has already been published.
	Exists(ctx context.Context, key string) (bool, error)

	// String names the destination for logs, e.g. "s3://bucket/prefix".
	String() string
}

// Backend types accepted by New.
const (
	TypeNone    = ""
	TypeLocalFS = "localfs"
	TypeS3      = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Type string
	Path string
	S3   S3Config
}

// New builds the configured backend. TypeNone yields a nil Storage.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeNone:
		return nil, nil
	case TypeLocalFS:
		fs, err := NewLocalFS(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case TypeS3:
		s3, err := NewS3(cfg.S3)
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", cfg.Type))
	}
}
