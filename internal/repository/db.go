package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/debemdeboas/draftroom/internal/db"
	"github.com/debemdeboas/draftroom/internal/util"
	"github.com/debemdeboas/draftroom/internal/util/compression"
)

const (
	selectSlot = `SELECT value FROM autosave_slots WHERE key = ?`
	selectHash = `SELECT hash FROM autosave_slots WHERE key = ?`
	upsertSlot = `INSERT INTO autosave_slots (key, value, hash, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, hash = excluded.hash, updated_at = excluded.updated_at`
	deleteSlot = `DELETE FROM autosave_slots WHERE key = ?`
)

type DBRepository struct { // implements Repository
	db         db.DB
	compressor compression.Compressor
}

func NewDBRepository(db db.DB, compressor compression.Compressor) *DBRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBRepository{db: db, compressor: compressor}
}

func (r *DBRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var packed []byte
	err := r.db.QueryRow(ctx, selectSlot, key).Scan(&packed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading slot %s: %w", key, err)
	}

	value, err := r.compressor.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing slot %s: %w", key, err)
	}
	return value, nil
}

// Set skips the write when the stored hash already matches value.
func (r *DBRepository) Set(ctx context.Context, key string, value []byte) error {
	hash := util.ContentHash(value)

	var current string
	err := r.db.QueryRow(ctx, selectHash, key).Scan(&current)
	if err == nil && current == hash {
		repoLogger.Debug().Str("key", key).Msg("Slot unchanged, skipping write")
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("error reading slot hash %s: %w", key, err)
	}

	packed, err := r.compressor.Compress(value)
	if err != nil {
		return fmt.Errorf("error compressing slot %s: %w", key, err)
	}
	if _, err := r.db.Exec(ctx, upsertSlot, key, packed, hash); err != nil {
		return fmt.Errorf("error writing slot %s: %w", key, err)
	}
	return nil
}

func (r *DBRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, deleteSlot, key); err != nil {
		return fmt.Errorf("error deleting slot %s: %w", key, err)
	}
	return nil
}

func (r *DBRepository) Close() error {
	return r.db.Close()
}
