package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/growthvault/internal/dbx"
)

const (
	selectValueSQL = `SELECT value FROM metadata WHERE key = ?`
	upsertValueSQL = `INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	deleteValueSQL = `DELETE FROM metadata WHERE key = ?`
	totalSizeSQL   = `SELECT COALESCE(SUM(LENGTH(value)), 0) FROM metadata`
)

// SQLiteRepository is the large local cache backend. It runs on a *sql.DB
// or inside a *sql.Tx.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, selectValueSQL, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("metadata get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value. The value
// column is NOT NULL, so a nil value is written as an empty one.
func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}
	if _, err := r.db.ExecContext(ctx, upsertValueSQL, key, value); err != nil {
		return fmt.Errorf("metadata set %q: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, deleteValueSQL, key); err != nil {
		return fmt.Errorf("metadata delete %q: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Size(ctx context.Context) (int64, error) {
	var size int64
	if err := r.db.QueryRowContext(ctx, totalSizeSQL).Scan(&size); err != nil {
		return 0, fmt.Errorf("metadata size: %w", err)
	}
	return size, nil
}
