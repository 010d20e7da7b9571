package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"motorlist-chat/internal/domain"
)

// ProductRepository implements domain.ProductRepository for PostgreSQL
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new PostgreSQL product repository
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID retrieves a listing and its author
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, author_id, title
		FROM products
		WHERE id = $1
	`
	product := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.AuthorID,
		&product.Title,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// PurchaseRepository implements domain.PurchaseRepository for PostgreSQL
type PurchaseRepository struct {
	db *sql.DB
}

// NewPurchaseRepository creates a new PostgreSQL purchase repository
func NewPurchaseRepository(db *sql.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// GetByID retrieves a purchase with its buyer and seller
func (r *PurchaseRepository) GetByID(ctx context.Context, id string) (*domain.Purchase, error) {
	query := `
		SELECT id, product_id, buyer_id, seller_id
		FROM purchases
		WHERE id = $1
	`
	purchase := &domain.Purchase{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&purchase.ID,
		&purchase.ProductID,
		&purchase.BuyerID,
		&purchase.SellerID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return purchase, nil
}
