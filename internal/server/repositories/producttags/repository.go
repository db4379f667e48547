// Package producttags declares the repository contract for the
// product/tag association rows.
package producttags

import "context"

type Repository interface {
	// Add inserts one association row per tag id.
	Add(ctx context.Context, productID int64, tags []int32) error
	// DeleteByProductID removes every association of the product and returns
	// the number of removed rows.
	DeleteByProductID(ctx context.Context, productID int64) (int64, error)
	// ListByProductID returns the associated tag ids in ascending order.
	ListByProductID(ctx context.Context, productID int64) ([]int32, error)
}
