package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/growthvault/internal/common"
	"github.com/dmitrijs2005/growthvault/internal/dbx"
	"github.com/dmitrijs2005/growthvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Put(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (user_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, doc.UserID, string(doc.Data), doc.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Document, error) {
	query := `
		SELECT data, updated_at
		FROM documents
		WHERE user_id = $1
	`
	doc := &models.Document{UserID: userID}
	var data string
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&data, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	doc.Data = []byte(data)
	return doc, nil
}
