package database

import (
	"context"
	"fmt"
	"time"

	"github.com/docfiler/docfiler/internal/kvstore"
)

const storeTimeout = 5 * time.Second

// Store adapts the kv table to kvstore.Store.
type Store struct {
	repo *KVRepository
}

var _ kvstore.Store = (*Store)(nil)

func NewStore(dbCtx *Context) *Store {
	return &Store{repo: NewKVRepository(dbCtx)}
}

func (s *Store) Read(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	record, err := s.repo.Find(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if record == nil {
		return "", false, nil
	}
	if calculateHash(record.Value) != record.Hash {
		return "", false, fmt.Errorf("read %s: %w", key, kvstore.ErrCorrupt)
	}
	return record.Value, true, nil
}

func (s *Store) Write(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := s.repo.Upsert(ctx, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if _, err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}
