package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/storage"
)

// FileCacheRepository keeps snapshot payloads as JSON files. It is used when Redis is disabled
// or unreachable at startup.
type FileCacheRepository struct {
	store *storage.LocalStorage
}

func NewFileCacheRepository(store *storage.LocalStorage) *FileCacheRepository {
	return &FileCacheRepository{store: store}
}

func (r *FileCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	raw, err := r.store.Read(fileName(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return appErrors.ErrCacheMiss
		}
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache file for %s: %w", key, err)
	}
	return nil
}

// Set ignores ttl; freshness is decided from the payload timestamp and Prune clears old files.
func (r *FileCacheRepository) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	return r.store.Save(fileName(key), payload)
}

func (r *FileCacheRepository) Delete(_ context.Context, key string) error {
	return r.store.Delete(fileName(key))
}

// Prune removes files not rewritten within olderThan and returns how many were deleted.
func (r *FileCacheRepository) Prune(olderThan time.Duration) (int, error) {
	deleted, err := r.store.CleanupOlderThan(olderThan)
	if err != nil {
		return 0, err
	}
	return len(deleted), nil
}

func fileName(key string) string {
	return key + ".json"
}
