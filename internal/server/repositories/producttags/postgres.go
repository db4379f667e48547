// Package producttags provides the PostgreSQL-backed association repository.
package producttags

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/dbx"
)

// PostgresRepository implements product/tag associations over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add associates every tag in tags with productID.
func (r *PostgresRepository) Add(ctx context.Context, productID int64, tags []int32) error {
	query := `
		INSERT INTO product_tags (product_id, tag_id)
		VALUES ($1, $2)
	`
	for _, tag := range tags {
		if _, err := r.db.ExecContext(ctx, query, productID, tag); err != nil {
			if dbx.IsUniqueViolation(err) {
				return fmt.Errorf("tag %d: %w", tag, common.ErrConflict)
			}
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// DeleteByProductID removes all associations of productID and returns how
// many were removed.
func (r *PostgresRepository) DeleteByProductID(ctx context.Context, productID int64) (int64, error) {
	query := `
		DELETE FROM product_tags
		WHERE product_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, productID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// ListByProductID returns the tag ids of productID in ascending order.
func (r *PostgresRepository) ListByProductID(ctx context.Context, productID int64) ([]int32, error) {
	query := `
		SELECT tag_id
		FROM product_tags
		WHERE product_id = $1
		ORDER BY tag_id
	`
	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	tags := []int32{}
	for rows.Next() {
		var tag int32
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tags, nil
}
