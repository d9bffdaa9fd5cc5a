// Package repository stores opaque autosave payloads under string keys.
// Every backend is last-write-wins and treats deleting an absent key as success.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/config"
	"github.com/debemdeboas/draftroom/internal/db"
	"github.com/debemdeboas/draftroom/internal/util/compression"
)

var ErrNotFound = errors.New("key not found")

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendS3     = "s3"
)

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Repository, error) {
	compressor, err := compression.ByName(cfg.Compression)
	if err != nil {
		return nil, err
	}

	repoLogger.Debug().Str("backend", cfg.Backend).Str("compression", cfg.Compression).Msg("Opening slot store")

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryRepository(), nil
	case BackendSQLite:
		database := db.NewSQLite(cfg.Path)
		if err := database.InitDB(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
		}
		return NewDBRepository(database, compressor), nil
	case BackendFile:
		return NewFSRepository(cfg.Path, compressor)
	case BackendRedis:
		return NewRedisRepository(cfg.Redis), nil
	case BackendS3:
		return NewS3Repository(ctx, cfg.S3)
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
}
