// Package documents stores one JSON document per user, either in
// PostgreSQL or in an S3 bucket.
package documents

import (
	"context"

	"github.com/dmitrijs2005/growthvault/internal/server/models"
)

type Repository interface {
	// Put replaces the user's document.
	Put(ctx context.Context, doc *models.Document) error
	// Get returns common.ErrorNotFound when the user has no document yet.
	Get(ctx context.Context, userID string) (*models.Document, error)
}
