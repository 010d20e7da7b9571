package domain

import (
	"context"
	"errors"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
)

// Product is a motor listing; AuthorID is the seller
type Product struct {
	ID       int64
	AuthorID int64
	Title    string
}

// Purchase binds a buyer and a seller around a product
type Purchase struct {
	ID        string
	ProductID int64
	BuyerID   int64
	SellerID  int64
}

// ProductRepository defines read access to listings
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
}

// PurchaseRepository defines read access to purchases
type PurchaseRepository interface {
	GetByID(ctx context.Context, id string) (*Purchase, error)
}
