package service

import (
	"testing"

	"motorlist-chat/internal/domain"

	"github.com/stretchr/testify/assert"
)

type stubVerifier map[string]bool

func (s stubVerifier) Verify(id string) bool { return s[id] }

func TestAccessResolver_CanAccessProductRoom(t *testing.T) {
	product := &domain.Product{ID: 10, AuthorID: 5}

	tests := []struct {
		name     string
		strict   bool
		viewerID string
		actor    domain.Actor
		want     bool
	}{
		{"author_reads_any_room", false, "7", domain.Actor{UserID: 5}, true},
		{"author_reads_guest_room", false, "guest_abc123", domain.Actor{UserID: 5}, true},
		{"viewer_reads_own_room", false, "7", domain.Actor{UserID: 7}, true},
		{"viewer_denied_other_room", false, "8", domain.Actor{UserID: 7}, false},
		{"user_denied_guest_room", false, "guest_abc123", domain.Actor{UserID: 7}, false},
		{"guest_admitted_by_possession", false, "guest_abc123", domain.Actor{}, true},
		{"guest_possession_of_numeric_room", false, "7", domain.Actor{}, true},
		{"strict_guest_with_signed_id", true, "gsigned", domain.Actor{}, true},
		{"strict_guest_with_unsigned_id", true, "guest_abc123", domain.Actor{}, false},
		{"strict_guest_with_numeric_id", true, "7", domain.Actor{}, false},
		{"strict_mode_keeps_member_rules", true, "7", domain.Actor{UserID: 7}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewAccessResolver(tt.strict, stubVerifier{"gsigned": true})
			key := domain.NewProductRoomKey(product.ID, tt.viewerID)
			assert.Equal(t, tt.want, r.CanAccessProductRoom(product, key, tt.actor))
		})
	}
}

func TestAccessResolver_StrictWithoutVerifierDeniesGuests(t *testing.T) {
	r := NewAccessResolver(true, nil)
	product := &domain.Product{ID: 10, AuthorID: 5}

	assert.False(t, r.CanAccessProductRoom(product, domain.NewProductRoomKey(10, "gsigned"), domain.Actor{}))
}

func TestAccessResolver_CanAccessPurchase(t *testing.T) {
	purchase := &domain.Purchase{ID: "p", BuyerID: 3, SellerID: 5}
	r := NewAccessResolver(false, nil)

	assert.True(t, r.CanAccessPurchase(purchase, domain.Actor{UserID: 3}))
	assert.True(t, r.CanAccessPurchase(purchase, domain.Actor{UserID: 5}))
	assert.False(t, r.CanAccessPurchase(purchase, domain.Actor{UserID: 9}))
	assert.False(t, r.CanAccessPurchase(purchase, domain.Actor{}))
}

func TestAccessResolver_Roles(t *testing.T) {
	r := NewAccessResolver(false, nil)

	product := &domain.Product{ID: 10, AuthorID: 5}
	assert.Equal(t, domain.RoleSeller, r.ProductRole(product, domain.Actor{UserID: 5}))
	assert.Equal(t, domain.RoleViewer, r.ProductRole(product, domain.Actor{UserID: 7}))
	assert.Equal(t, domain.RoleViewer, r.ProductRole(product, domain.Actor{}))

	purchase := &domain.Purchase{ID: "p", BuyerID: 3, SellerID: 5}
	assert.Equal(t, domain.RoleSeller, r.PurchaseRole(purchase, domain.Actor{UserID: 5}))
	assert.Equal(t, domain.RoleBuyer, r.PurchaseRole(purchase, domain.Actor{UserID: 3}))
}
