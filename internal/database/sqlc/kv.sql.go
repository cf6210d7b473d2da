package sqldb

import (
	"context"
	"time"
)

type KV struct {
	Key       string
	Value     string
	Hash      string
	UpdatedAt time.Time
}

const findValue = `SELECT key, value, hash, updated_at FROM kv WHERE key = ?`

func (q *Queries) FindValue(ctx context.Context, key string) (KV, error) {
	row := q.db.QueryRowContext(ctx, findValue, key)
	var i KV
	err := row.Scan(&i.Key, &i.Value, &i.Hash, &i.UpdatedAt)
	return i, err
}

const upsertValue = `INSERT INTO kv (key, value, hash, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, hash = excluded.hash, updated_at = CURRENT_TIMESTAMP`

type UpsertValueParams struct {
	Key   string
	Value string
	Hash  string
}

func (q *Queries) UpsertValue(ctx context.Context, arg UpsertValueParams) error {
	_, err := q.db.ExecContext(ctx, upsertValue, arg.Key, arg.Value, arg.Hash)
	return err
}

const deleteValue = `DELETE FROM kv WHERE key = ?`

func (q *Queries) DeleteValue(ctx context.Context, key string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteValue, key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countValues = `SELECT COUNT(*) FROM kv`

func (q *Queries) CountValues(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countValues)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteAllValues = `DELETE FROM kv`

func (q *Queries) DeleteAllValues(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllValues)
	return err
}
