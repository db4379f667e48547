// Package users declares the repository contract for user accounts.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tentech/internal/server/models"
)

type Repository interface {
	// Create inserts a not yet activated user and fills in its ID.
	// Duplicate usernames or emails yield common.ErrConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Activate marks a pending user as activated at the given time.
	// A user that is already active yields common.ErrAlreadyActivated.
	Activate(ctx context.Context, id int64, at time.Time) (*models.User, error)
}
