package storage

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownStorage = errors.New("unknown storage type")

// Storage publishes finished outputs. Publish returns where the file ended
// up: a local path or an object name.
type Storage interface {
	Publish(ctx context.Context, localPath string) (string, error)

	Close() error
}

// Storage types
const (
	TypeLocal = "local"
	TypeGCS   = "gcs"
)

// Config selects and configures a Storage.
type Config struct {
	Type            string `yaml:"type" toml:"type"`
	Dir             string `yaml:"dir" toml:"dir"`
	Bucket          string `yaml:"bucket" toml:"bucket"`
	Prefix          string `yaml:"prefix" toml:"prefix"`
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
}

// New creates the Storage described by cfg. Published paths are laid out
// relative to baseDir.
func New(ctx context.Context, cfg Config, baseDir string) (Storage, error) {
	switch cfg.Type {
	case "", TypeLocal:
		return NewLocalFileStorage(cfg.Dir, baseDir)
	case TypeGCS:
		return NewGCSStorage(ctx, cfg.Bucket, cfg.Prefix, baseDir, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorage, cfg.Type)
	}
}
