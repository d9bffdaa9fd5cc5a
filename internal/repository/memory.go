package repository

import (
	"context"

	"github.com/debemdeboas/draftroom/internal/cache"
)

type MemoryRepository struct { // implements Repository
	items *cache.Cache[string, []byte]
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: cache.NewCache[string, []byte]()}
}

func (r *MemoryRepository) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := r.items.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (r *MemoryRepository) Set(_ context.Context, key string, value []byte) error {
	r.items.Set(key, append([]byte(nil), value...))
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.items.Delete(key)
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
