// Package refreshtokens stores the refresh tokens handed out at login.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/server/models"
)

type Repository interface {
	// Create stores token for userID, valid until expires.
	Create(ctx context.Context, userID string, token string, expires time.Time) error

	// Find returns common.ErrorNotFound when the token is unknown.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired drops the user's tokens that expired before now and
	// reports how many were removed.
	DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error)
}
