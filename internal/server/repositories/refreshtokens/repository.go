// Package refreshtokens declares the repository contract for refresh tokens
// issued at login.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tentech/internal/server/models"
)

type Repository interface {
	// Create stores a refresh token for userID expiring at now+validity.
	Create(ctx context.Context, userID int64, token string, validity time.Duration) error

	// Find returns common.ErrorNotFound for an unknown token.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete is a no-op for an unknown token.
	Delete(ctx context.Context, token string) error
}
