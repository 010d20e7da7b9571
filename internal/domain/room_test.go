package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProductRoomKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		productID int64
		viewerID  string
		wantErr   bool
	}{
		{"numeric_viewer", "pub-42-viewer-7", 42, "7", false},
		{"guest_viewer", "pub-42-viewer-g123", 42, "g123", false},
		{"signed_guest_viewer", "pub-9-viewer-gabc.def01", 9, "gabc.def01", false},
		{"missing_viewer", "pub-42-viewer-", 0, "", true},
		{"zero_product", "pub-0-viewer-7", 0, "", true},
		{"non_numeric_product", "pub-x-viewer-7", 0, "", true},
		{"purchase_uuid", "2c1b1b8e-5d2e-4a55-9a3c-1f3c0b7d9a10", 0, "", true},
		{"injection", "pub-42-viewer-7;drop", 0, "", true},
		{"empty", "", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseProductRoomKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRoomKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.productID, key.ProductID)
			assert.Equal(t, tt.viewerID, key.ViewerID)
			assert.Equal(t, tt.key, key.String())
		})
	}
}

func TestProductRoomKey_ViewerUserID(t *testing.T) {
	id, ok := NewProductRoomKey(42, "7").ViewerUserID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	_, ok = NewProductRoomKey(42, "g123").ViewerUserID()
	assert.False(t, ok)

	_, ok = NewProductRoomKey(42, "0").ViewerUserID()
	assert.False(t, ok)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleSeller.Valid())
	assert.True(t, RoleBuyer.Valid())
	assert.True(t, RoleViewer.Valid())
	assert.False(t, Role("admin").Valid())
}
