// Package products declares the repository contract for catalog product rows.
// Tag associations live in the producttags repository.
package products

import (
	"context"

	"github.com/dmitrijs2005/tentech/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the product row and fills in its ID.
	Create(ctx context.Context, p *models.Product) error
	// UpdateByUUID replaces the mutable columns and the owner of the product
	// with the given uuid and returns its internal ID. A missing row yields
	// common.ErrorNotFound.
	UpdateByUUID(ctx context.Context, id uuid.UUID, fields models.ProductFields, userID int64) (int64, error)
	// FindByUUID returns the product row without tags.
	FindByUUID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// DeleteByUUID returns the number of removed rows (0 or 1).
	DeleteByUUID(ctx context.Context, id uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Product, error)
}
