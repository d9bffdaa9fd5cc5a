package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/debemdeboas/draftroom/internal/util/compression"
)

const slotFileMode = 0o600

// FSRepository keeps one file per key inside a directory.
type FSRepository struct { // implements Repository
	dir        string
	compressor compression.Compressor
}

func NewFSRepository(dir string, compressor compression.Compressor) (*FSRepository, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("error creating slot directory: %w", err)
	}
	if compressor == nil {
		compressor = compression.NoneCompressor{}
	}
	return &FSRepository{dir: dir, compressor: compressor}, nil
}

// path escapes the key so namespace separators never reach the filesystem.
func (r *FSRepository) path(key string) string {
	return filepath.Join(r.dir, url.QueryEscape(key)+".slot")
}

func (r *FSRepository) Get(_ context.Context, key string) ([]byte, error) {
	packed, err := os.ReadFile(r.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.compressor.Decompress(packed)
}

func (r *FSRepository) Set(_ context.Context, key string, value []byte) error {
	packed, err := r.compressor.Compress(value)
	if err != nil {
		return fmt.Errorf("error compressing slot %s: %w", key, err)
	}
	return writeFileAtomic(r.path(key), packed, slotFileMode)
}

func (r *FSRepository) Delete(_ context.Context, key string) error {
	err := os.Remove(r.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (r *FSRepository) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
