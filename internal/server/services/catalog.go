// Package services contains server-side business logic.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/dbx"
	"github.com/dmitrijs2005/tentech/internal/logging"
	"github.com/dmitrijs2005/tentech/internal/server/metrics"
	"github.com/dmitrijs2005/tentech/internal/server/models"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// readTx gives multi-statement reads a single snapshot.
var readTx = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// CatalogService manages products and their tag associations. Every
// operation that touches both tables runs in one transaction, so after a
// commit the stored tag set equals the supplied one.
type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	metrics     metrics.Recorder
	newUUID     func() uuid.UUID
}

func NewCatalogService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, rec metrics.Recorder) *CatalogService {
	return &CatalogService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "catalog"),
		metrics:     rec,
		newUUID:     uuid.New,
	}
}

// Create inserts a product with a fresh uuid and its tag set.
func (s *CatalogService) Create(ctx context.Context, fields models.ProductFields, tags []int32, userID int64) (*models.Product, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	p := &models.Product{
		UUID:          s.newUUID(),
		UserID:        userID,
		ProductFields: fields,
		Tags:          models.NormalizeTags(tags),
	}

	err := s.inTx(ctx, "create", nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Products(tx).Create(ctx, p); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		if err := s.repomanager.ProductTags(tx).Add(ctx, p.ID, p.Tags); err != nil {
			return fmt.Errorf("insert tags: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "product created", "uuid", p.UUID, "tags", len(p.Tags))
	return p, nil
}

// Update replaces the fields, owner and tag set of the product with the
// given uuid. On any failure the previous state is kept.
func (s *CatalogService) Update(ctx context.Context, fields models.ProductFields, tags []int32, userID int64, id uuid.UUID) (*models.Product, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	p := &models.Product{
		UUID:          id,
		UserID:        userID,
		ProductFields: fields,
		Tags:          models.NormalizeTags(tags),
	}

	err := s.inTx(ctx, "update", nil, func(ctx context.Context, tx dbx.DBTX) error {
		productID, err := s.repomanager.Products(tx).UpdateByUUID(ctx, id, fields, userID)
		if err != nil {
			return err
		}
		p.ID = productID

		tagRepo := s.repomanager.ProductTags(tx)
		if _, err := tagRepo.DeleteByProductID(ctx, productID); err != nil {
			return fmt.Errorf("delete tags: %w", err)
		}
		if err := tagRepo.Add(ctx, productID, p.Tags); err != nil {
			return fmt.Errorf("insert tags: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "product updated", "uuid", p.UUID, "tags", len(p.Tags))
	return p, nil
}

// Find returns the product with the given uuid and its tags in ascending
// order, or common.ErrorNotFound.
func (s *CatalogService) Find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p *models.Product
	err := dbx.WithTx(ctx, s.db, readTx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		p, err = s.repomanager.Products(tx).FindByUUID(ctx, id)
		if err != nil {
			return err
		}
		p.Tags, err = s.repomanager.ProductTags(tx).ListByProductID(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the product with the given uuid together with its tag
// associations and returns the number of removed products. A missing uuid
// is not an error.
func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := s.inTx(ctx, "delete", nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.repomanager.Products(tx).FindByUUID(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return err
		}
		if _, err := s.repomanager.ProductTags(tx).DeleteByProductID(ctx, p.ID); err != nil {
			return fmt.Errorf("delete tags: %w", err)
		}
		n, err = s.repomanager.Products(tx).DeleteByUUID(ctx, id)
		return err
	})
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info(ctx, "product deleted", "uuid", id)
	}
	return n, nil
}

// ListByUser returns the products owned by userID with their tags.
func (s *CatalogService) ListByUser(ctx context.Context, userID int64) ([]*models.Product, error) {
	var result []*models.Product
	err := dbx.WithTx(ctx, s.db, readTx, func(ctx context.Context, tx dbx.DBTX) error {
		items, err := s.repomanager.Products(tx).ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		tagRepo := s.repomanager.ProductTags(tx)
		for _, p := range items {
			if p.Tags, err = tagRepo.ListByProductID(ctx, p.ID); err != nil {
				return err
			}
		}
		result = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CatalogService) inTx(ctx context.Context, op string, opts *sql.TxOptions, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if err := dbx.WithTx(ctx, s.db, opts, fn); err != nil {
		s.metrics.TxRolledBack(op)
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "catalog transaction aborted", "op", op, "error", err)
		}
		return err
	}
	s.metrics.TxCommitted(op)
	return nil
}

func validateFields(f models.ProductFields) error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("%w: title is required", common.ErrorValidation)
	}
	if f.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", common.ErrorValidation)
	}
	return nil
}
