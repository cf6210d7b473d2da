package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	sqldb "github.com/docfiler/docfiler/internal/database/sqlc"
)

// ValueRecord is one row of the kv table.
type ValueRecord struct {
	Key       string
	Value     string
	Hash      string
	UpdatedAt time.Time
}

type KVRepository struct {
	ctx *Context
}

func NewKVRepository(dbCtx *Context) *KVRepository {
	return &KVRepository{ctx: dbCtx}
}

// Find returns nil without error when the key is absent.
func (r *KVRepository) Find(ctx context.Context, key string) (*ValueRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("kv repository: missing database context")
	}

	row, err := queries.FindValue(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &ValueRecord{
		Key:       row.Key,
		Value:     row.Value,
		Hash:      row.Hash,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (r *KVRepository) Upsert(ctx context.Context, key, value string) error {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return fmt.Errorf("kv repository: missing database context")
	}

	return queries.UpsertValue(ctx, sqldb.UpsertValueParams{
		Key:   key,
		Value: value,
		Hash:  calculateHash(value),
	})
}

func (r *KVRepository) Delete(ctx context.Context, key string) (bool, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return false, fmt.Errorf("kv repository: missing database context")
	}

	affected, err := queries.DeleteValue(ctx, key)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *KVRepository) Count(ctx context.Context) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("kv repository: missing database context")
	}
	return queries.CountValues(ctx)
}

func calculateHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
