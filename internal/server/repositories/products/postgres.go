// Package products provides the PostgreSQL-backed product repository.
package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/dbx"
	"github.com/dmitrijs2005/tentech/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements product storage over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts p and fills in its generated ID.
func (r *PostgresRepository) Create(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (uuid, title, body, img, duration, kind, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		p.UUID, p.Title, p.Body, p.Img, p.Duration, p.Kind, p.UserID).Scan(&p.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateByUUID overwrites the replaceable fields of the product with the
// given uuid and returns its row id. If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) UpdateByUUID(ctx context.Context, id uuid.UUID, f models.ProductFields, userID int64) (int64, error) {
	query := `
		UPDATE products
		SET title = $2, body = $3, img = $4, duration = $5, kind = $6, user_id = $7
		WHERE uuid = $1
		RETURNING id
	`
	var productID int64
	err := r.db.QueryRowContext(ctx, query,
		id, f.Title, f.Body, f.Img, f.Duration, f.Kind, userID).Scan(&productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return productID, nil
}

// FindByUUID returns the product with the given uuid, without tags.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FindByUUID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := `
		SELECT id, uuid, title, body, img, duration, kind, user_id
		FROM products
		WHERE uuid = $1
	`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// DeleteByUUID removes the product with the given uuid and returns the
// number of deleted rows.
func (r *PostgresRepository) DeleteByUUID(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `
		DELETE FROM products
		WHERE uuid = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// ListByUser returns the products owned by userID.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Product, error) {
	query := `
		SELECT id, uuid, title, body, img, duration, kind, user_id
		FROM products
		WHERE user_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.UUID, &p.Title, &p.Body, &p.Img, &p.Duration, &p.Kind, &p.UserID); err != nil {
		return nil, err
	}
	return &p, nil
}
