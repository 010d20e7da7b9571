package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"motorlist-chat/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, author_id, title\s+FROM products`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "author_id", "title"}).AddRow(int64(10), int64(5), "Yamaha MT-07"))

		product, err := NewProductRepository(db).GetByID(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, int64(5), product.AuthorID)
		assert.Equal(t, "Yamaha MT-07", product.Title)
	})

	t.Run("not_found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("FROM products").WillReturnError(sql.ErrNoRows)

		_, err = NewProductRepository(db).GetByID(context.Background(), 10)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})
}

func TestPurchaseRepository_GetByID(t *testing.T) {
	const purchaseID = "8f14e45f-ceea-4e7a-9c0b-123456789abc"

	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, product_id, buyer_id, seller_id\s+FROM purchases`).
			WithArgs(purchaseID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "buyer_id", "seller_id"}).
				AddRow(purchaseID, int64(10), int64(3), int64(5)))

		purchase, err := NewPurchaseRepository(db).GetByID(context.Background(), purchaseID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), purchase.BuyerID)
		assert.Equal(t, int64(5), purchase.SellerID)
	})

	t.Run("not_found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("FROM purchases").WillReturnError(sql.ErrNoRows)

		_, err = NewPurchaseRepository(db).GetByID(context.Background(), purchaseID)
		assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)
	})

	t.Run("database_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("FROM purchases").WillReturnError(errors.New("boom"))

		_, err = NewPurchaseRepository(db).GetByID(context.Background(), purchaseID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get purchase")
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, display_name, avatar_url\s+FROM users`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "avatar_url"}).
				AddRow(int64(3), "Bea", "https://cdn.example.com/bea.png"))

		user, err := NewUserRepository(db).GetByID(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, "Bea", user.DisplayName)
		assert.Equal(t, "https://cdn.example.com/bea.png", user.AvatarURL)
	})

	t.Run("not_found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("FROM users").WillReturnError(sql.ErrNoRows)

		_, err = NewUserRepository(db).GetByID(context.Background(), 3)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}
