package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/config"
	"github.com/debemdeboas/draftroom/internal/db"
	"github.com/debemdeboas/draftroom/internal/util/compression"
)

const testKey = "@drafts:autosave:twitter"

// fakeObjectAPI is an in-memory stand-in for the S3 client.
type fakeObjectAPI struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: make(map[string][]byte)}
}

func (f *fakeObjectAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newSQLiteRepository(t *testing.T, c compression.Compressor) *DBRepository {
	t.Helper()
	database := db.NewSQLite(":memory:")
	if err := database.InitDB(context.Background()); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	return NewDBRepository(database, c)
}

func backends(t *testing.T) map[string]Repository {
	t.Helper()
	SetLogger(zerolog.Nop())
	db.SetLogger(zerolog.Nop())

	fsRepo, err := NewFSRepository(t.TempDir(), compression.GzipCompressor{})
	if err != nil {
		t.Fatal(err)
	}

	mr := miniredis.RunT(t)

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": newSQLiteRepository(t, compression.ZstdCompressor{}),
		"file":   fsRepo,
		"redis":  NewRedisRepositoryWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0),
		"s3":     NewS3RepositoryWithClient(newFakeObjectAPI(), "bucket", "autosave/"),
	}
}

func TestRepositoryContract(t *testing.T) {
	ctx := context.Background()

	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer repo.Close()

			if _, err := repo.Get(ctx, testKey); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Expected ErrNotFound for a missing key, got %v", err)
			}

			if err := repo.Set(ctx, testKey, []byte(`{"content":"v1"}`)); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := repo.Set(ctx, testKey, []byte(`{"content":"v2"}`)); err != nil {
				t.Fatalf("Second Set failed: %v", err)
			}

			got, err := repo.Get(ctx, testKey)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(got) != `{"content":"v2"}` {
				t.Errorf("Expected last write to win, got %s", got)
			}

			if err := repo.Set(ctx, "@drafts:autosave:linkedin", []byte("other")); err != nil {
				t.Fatal(err)
			}

			if err := repo.Delete(ctx, testKey); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := repo.Get(ctx, testKey); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound after Delete, got %v", err)
			}
			if err := repo.Delete(ctx, testKey); err != nil {
				t.Errorf("Expected deleting an absent key to succeed, got %v", err)
			}

			if got, err := repo.Get(ctx, "@drafts:autosave:linkedin"); err != nil || string(got) != "other" {
				t.Errorf("Expected neighbouring key to survive, got %q (%v)", got, err)
			}
		})
	}
}

func TestMemoryRepositoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	value := []byte("abc")
	repo.Set(ctx, "k", value)
	value[0] = 'z'

	got, _ := repo.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Expected stored value to be isolated from caller, got %q", got)
	}
}

func TestDBRepositoryCompressesAndHashes(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t, compression.ZstdCompressor{})
	defer repo.Close()

	payload := []byte(strings.Repeat("scheduled launch post ", 100))
	if err := repo.Set(ctx, testKey, payload); err != nil {
		t.Fatal(err)
	}

	var stored []byte
	var updated string
	row := repo.db.QueryRow(ctx, `SELECT value, updated_at FROM autosave_slots WHERE key = ?`, testKey)
	if err := row.Scan(&stored, &updated); err != nil {
		t.Fatal(err)
	}
	if len(stored) >= len(payload) {
		t.Errorf("Expected compressed storage, got %d bytes for %d input", len(stored), len(payload))
	}

	// An identical write is skipped, so updated_at stays put.
	if _, err := repo.db.Exec(ctx, `UPDATE autosave_slots SET updated_at = '2000-01-01 00:00:00' WHERE key = ?`, testKey); err != nil {
		t.Fatal(err)
	}
	if err := repo.Set(ctx, testKey, payload); err != nil {
		t.Fatal(err)
	}
	row = repo.db.QueryRow(ctx, `SELECT updated_at FROM autosave_slots WHERE key = ?`, testKey)
	if err := row.Scan(&updated); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(updated, "2000-01-01") {
		t.Errorf("Expected unchanged payload to skip the write, updated_at=%s", updated)
	}
}

func TestFSRepositoryEscapesKeys(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFSRepository(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.Set(context.Background(), "../escape:attempt", []byte("x")); err != nil {
		t.Fatal(err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.slot"))
	if len(matches) != 1 {
		t.Fatalf("Expected one slot file inside the directory, got %v", matches)
	}
	if strings.ContainsAny(filepath.Base(matches[0]), "/:") {
		t.Errorf("Expected escaped file name, got %s", matches[0])
	}
}

func TestRedisRepositoryTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := NewRedisRepositoryWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	defer repo.Close()

	if err := repo.Set(context.Background(), testKey, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(testKey); ttl != time.Hour {
		t.Errorf("Expected 1h TTL, got %s", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := repo.Get(context.Background(), testKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected slot to expire, got %v", err)
	}
}

func TestS3RepositoryObjectKey(t *testing.T) {
	api := newFakeObjectAPI()
	repo := NewS3RepositoryWithClient(api, "drafts", "autosave/")

	if err := repo.Set(context.Background(), "@drafts:autosave:x/y", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, ok := api.objects["drafts/autosave/@drafts:autosave:x%2Fy"]; !ok {
		t.Errorf("Expected escaped object key under prefix, have %v", api.objects)
	}
}

func TestOpen(t *testing.T) {
	SetLogger(zerolog.Nop())
	db.SetLogger(zerolog.Nop())
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := Open(ctx, config.StorageConfig{Backend: BackendMemory})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := repo.(*MemoryRepository); !ok {
			t.Errorf("Expected *MemoryRepository, got %T", repo)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		repo, err := Open(ctx, config.StorageConfig{
			Backend:     BackendSQLite,
			Path:        filepath.Join(t.TempDir(), "slots.db"),
			Compression: compression.NameZstd,
		})
		if err != nil {
			t.Fatal(err)
		}
		defer repo.Close()
		if _, ok := repo.(*DBRepository); !ok {
			t.Errorf("Expected *DBRepository, got %T", repo)
		}
	})

	t.Run("file", func(t *testing.T) {
		repo, err := Open(ctx, config.StorageConfig{Backend: BackendFile, Path: t.TempDir()})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := repo.(*FSRepository); !ok {
			t.Errorf("Expected *FSRepository, got %T", repo)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := Open(ctx, config.StorageConfig{Backend: "floppy"}); err == nil {
			t.Error("Expected error for unknown backend")
		}
	})

	t.Run("unknown compression", func(t *testing.T) {
		if _, err := Open(ctx, config.StorageConfig{Backend: BackendMemory, Compression: "lz4"}); err == nil {
			t.Error("Expected error for unknown compression")
		}
	})
}
